package oscilloscope

import "fmt"

// MalformedPreambleError indicates the preamble descriptor from the
// instrument could not be parsed.  This is fatal and points to a protocol
// mismatch; retrying will not help.
type MalformedPreambleError struct {
	// Raw is the descriptor string as received
	Raw string

	// Field is the zero-based index of the offending field, or -1 when the
	// field count itself is wrong
	Field int

	// Reason describes what was wrong with the field
	Reason string
}

func (e MalformedPreambleError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("malformed preamble %q: %s", e.Raw, e.Reason)
	}
	return fmt.Sprintf("malformed preamble %q: field %d: %s", e.Raw, e.Field, e.Reason)
}

// UnsupportedFormatError indicates the preamble declared a wave format code
// this decoder does not implement
type UnsupportedFormatError struct {
	Code int
}

func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported wave format code %d, supported codes are 0 (BYTE), 1 (WORD), 4 (ASCii)", e.Code)
}

// PayloadLengthMismatchError indicates the decoded sample count disagrees
// with the point count declared by the preamble.  This strongly suggests a
// corrupted transfer; no partial data is returned.
type PayloadLengthMismatchError struct {
	Expected int
	Actual   int
}

func (e PayloadLengthMismatchError) Error() string {
	return fmt.Sprintf("payload length mismatch: preamble declares %d points, payload decodes to %d", e.Expected, e.Actual)
}

// InvalidChannelError indicates a channel number outside the range the
// instrument supports
type InvalidChannelError struct {
	Channel int
	Max     int
}

func (e InvalidChannelError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("invalid channel %d, channels are numbered 1..%d", e.Channel, e.Max)
	}
	return fmt.Sprintf("invalid channel %d, channel numbers are positive", e.Channel)
}

// InvalidFormatError indicates a wave format that is not one of
// BYTE, WORD, ASCii
type InvalidFormatError struct {
	Format string
}

func (e InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid wave format %q, must be one of BYTE, WORD, ASCii", e.Format)
}

// InvalidAveragesError indicates an averaging count outside [2, 65536]
type InvalidAveragesError struct {
	Averages int
}

func (e InvalidAveragesError) Error() string {
	return fmt.Sprintf("invalid averaging count %d, must be in [2, 65536]", e.Averages)
}

// CaptureError wraps a transport failure during an in-progress capture.
// InstrumentErrors carries the instrument's self-reported error queue when
// it could be drained before surfacing.
type CaptureError struct {
	// Op is the capture step that failed
	Op string

	// InstrumentErrors is the newline-joined error queue from the
	// instrument, or empty if it could not be retrieved
	InstrumentErrors string

	// Err is the underlying transport error
	Err error
}

func (e *CaptureError) Error() string {
	if e.InstrumentErrors == "" {
		return fmt.Sprintf("capture failed while %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("capture failed while %s: %v; instrument reports: %s", e.Op, e.Err, e.InstrumentErrors)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
