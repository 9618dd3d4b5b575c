// Package traceio serializes decoded traces to delimited text or NumPy
// array files, with the four-line header block carried as comment lines
// in the text format
package traceio

import (
	"bufio"
	"io"
	"os"

	"github.com/omclab/oscacq/oscilloscope"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// commentPrefix marks header lines in the text format
const commentPrefix = "# "

// WriteCSV writes the header block as comment lines followed by the trace
// data, one row per sample: time, then one voltage per channel
func WriteCSV(w io.Writer, h oscilloscope.FileHeader, t *oscilloscope.Trace) error {
	bw := bufio.NewWriter(w)
	for _, line := range h.Lines() {
		_, err := bw.WriteString(commentPrefix + line + "\n")
		if err != nil {
			return err
		}
	}
	err := t.EncodeCSV(bw)
	if err != nil {
		return err
	}
	return bw.Flush()
}

// WriteNPY writes the trace as a 2-D float64 array of shape
// (points, 1+channels): the time vector in column zero, then one column
// per channel in capture order.  The header block has no home in the NPY
// format and is dropped, the same as the original text header would be by
// a numeric loader.
func WriteNPY(w io.Writer, t *oscilloscope.Trace) error {
	rows := t.Points()
	cols := 1 + t.NumChannels()
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		m.Set(i, 0, t.Time[i])
		for j, col := range t.Values {
			m.Set(i, j+1, col[i])
		}
	}
	return npyio.Write(w, m)
}

// SaveCSV writes the trace and header to the named file
func SaveCSV(fname string, h oscilloscope.FileHeader, t *oscilloscope.Trace) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	err = WriteCSV(f, h, t)
	if err != nil {
		return err
	}
	return f.Sync()
}

// SaveNPY writes the trace to the named file in NumPy format
func SaveNPY(fname string, t *oscilloscope.Trace) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	err = WriteNPY(f, t)
	if err != nil {
		return err
	}
	return f.Sync()
}
