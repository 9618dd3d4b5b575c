package oscilloscope

import (
	"strconv"
	"strings"
)

// Preamble is the instrument-reported descriptor of the just-configured
// waveform transfer.  It is immutable once parsed and describes both the
// layout of the payload (format, point count) and the affine maps from raw
// sample index/value to seconds and volts.
//
// The descriptor on the wire is ten comma-separated fields:
//
//	<format>,<type>,<points>,<count>,
//	<xincrement>,<xorigin>,<xreference>,
//	<yincrement>,<yorigin>,<yreference>
type Preamble struct {
	// Format is the wave format of the payload this preamble describes.
	// Decoding is only defined when it matches the format actually used
	// for the transfer.
	Format WaveFormat

	// AcqType is the acquisition mode the instrument reports it used.
	// It is informational; capture configuration is driven by the session,
	// not by what the preamble echoes back.
	AcqType AcqType

	// Points is the number of samples in the payload
	Points int

	// Count is the averaging count used in the acquisition
	Count int

	// XIncrement is the time step between samples in seconds
	XIncrement float64

	// XOrigin is the time of the first sample in seconds
	XOrigin float64

	// XReference is the index of the sample considered time zero
	XReference int

	// YIncrement is the voltage step of one raw count.  The instrument
	// reports it in single precision; it is held as float64 so the
	// per-sample arithmetic does not compound rounding error.
	YIncrement float64

	// YOrigin is the voltage offset
	YOrigin float64

	// YReference is the raw value corresponding to zero volts
	YReference int
}

// number of comma separated fields in a preamble descriptor
const preambleFields = 10

// ParsePreamble decodes the descriptor string returned by
// :WAVeform:PREamble? into a Preamble.  It is a pure function over the
// input string and performs no I/O.
func ParsePreamble(raw string) (Preamble, error) {
	var p Preamble
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) != preambleFields {
		return p, MalformedPreambleError{
			Raw:    raw,
			Field:  -1,
			Reason: "expected " + strconv.Itoa(preambleFields) + " fields, got " + strconv.Itoa(len(fields)),
		}
	}
	// every field is numeric; integers may arrive in scientific notation
	// (e.g. "+1.0E+3" for 1000 points) so all are parsed as floats first
	vals := make([]float64, preambleFields)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return p, MalformedPreambleError{Raw: raw, Field: i, Reason: err.Error()}
		}
		vals[i] = v
	}
	format, err := formatFromCode(int(vals[0]))
	if err != nil {
		return p, err
	}
	p.Format = format
	p.AcqType = AcqType(int(vals[1]))
	p.Points = int(vals[2])
	p.Count = int(vals[3])
	p.XIncrement = vals[4]
	p.XOrigin = vals[5]
	p.XReference = int(vals[6])
	p.YIncrement = vals[7]
	p.YOrigin = vals[8]
	p.YReference = int(vals[9])
	if p.Points <= 0 {
		return p, MalformedPreambleError{Raw: raw, Field: 2, Reason: "point count must be positive"}
	}
	return p, nil
}

// TimeVector computes the time axis for a capture described by p,
// time[i] = (i - XReference)*XIncrement + XOrigin.  It is shared by all
// channels within one capture and should be computed once per capture.
func (p Preamble) TimeVector() []float64 {
	t := make([]float64, p.Points)
	for i := 0; i < p.Points; i++ {
		t[i] = (float64(i)-float64(p.XReference))*p.XIncrement + p.XOrigin
	}
	return t
}
