package oscilloscope

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/omclab/oscacq/util"
)

// Trace is one decoded capture: a time vector shared by every channel and
// one voltage column per captured channel.  A Trace is created fresh per
// capture and must not be mutated after it is returned.
type Trace struct {
	// Time is the time axis, length Points()
	Time []float64

	// Values holds one voltage slice per channel, Values[i] belonging to
	// Channels[i], each of length Points()
	Values [][]float64

	// Channels is the ordered list of captured channel numbers
	Channels []int
}

// NumChannels returns the number of channels in the capture
func (t *Trace) NumChannels() int {
	return len(t.Channels)
}

// Points returns the number of samples per channel
func (t *Trace) Points() int {
	return len(t.Time)
}

// EncodeCSV writes the trace as delimited text in streaming fashion, one
// row per sample: time, then one voltage per channel.  Column labels
// belong to the file header (see FileHeader) and are not written here.
func (t *Trace) EncodeCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	row := make([]string, 1+len(t.Values))
	for i := 0; i < len(t.Time); i++ {
		row[0] = strconv.FormatFloat(t.Time[i], 'G', -1, 64)
		for j := 0; j < len(t.Values); j++ {
			row[j+1] = strconv.FormatFloat(t.Values[j][i], 'G', -1, 64)
		}
		err := cw.Write(row)
		if err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// FileHeader is the four-line textual header block that accompanies a
// persisted trace:
//
//	<instrument identity>
//	<acquisition mode>,<averages or N/A>
//	<ISO-8601 timestamp>
//	time,<channel>,<channel>,...
type FileHeader struct {
	// ID is the instrument identity string from *IDN?
	ID string

	// AcqType is the acquisition mode the capture used
	AcqType AcqType

	// Averages is the averaging count; only meaningful in AVERage mode
	Averages int

	// Timestamp is when the capture completed
	Timestamp time.Time

	// Channels is the ordered captured channel list
	Channels []int
}

// Lines renders the header as its four lines, without comment prefixes
func (h FileHeader) Lines() []string {
	avg := "N/A"
	if h.AcqType == AcqAverage {
		avg = strconv.Itoa(h.Averages)
	}
	labels := "time"
	if len(h.Channels) > 0 {
		labels += "," + util.IntSliceToCSV(h.Channels)
	}
	return []string{
		h.ID,
		h.AcqType.Short() + "," + avg,
		h.Timestamp.Format(time.RFC3339Nano),
		labels,
	}
}
