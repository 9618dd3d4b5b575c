// Package oscilloscope provides the waveform transfer and decoding pipeline
// for digital storage oscilloscopes: preamble parsing, payload decoding to
// calibrated time/voltage samples, and the session state carried across
// captures on one connection.
//
// Everything in this package is free of instrument I/O so that decoding can
// be exercised against synthetic payloads; the keysight package performs
// the actual communication.
package oscilloscope

import "strings"

// WaveFormat is the transfer encoding of sample data on the wire
type WaveFormat int

const (
	// WaveByte is signed 8-bit binary transfer
	WaveByte WaveFormat = iota

	// WaveWord is signed 16-bit little-endian binary transfer
	WaveWord

	// WaveASCII is comma-separated decimal text, already in volts
	WaveASCII
)

// wave format codes as reported in the first preamble field
const (
	formatCodeByte  = 0
	formatCodeWord  = 1
	formatCodeASCII = 4
)

// String returns the SCPI mnemonic for the format
func (f WaveFormat) String() string {
	switch f {
	case WaveByte:
		return "BYTE"
	case WaveWord:
		return "WORD"
	case WaveASCII:
		return "ASCii"
	}
	return "unknown"
}

// ParseWaveFormat converts a mnemonic such as "WORD", "byte" or "ASCii"
// to a WaveFormat.  Matching is on the first three letters, case
// insensitive, the same way the instrument abbreviates its mnemonics.
func ParseWaveFormat(s string) (WaveFormat, error) {
	if len(s) < 3 {
		return 0, InvalidFormatError{Format: s}
	}
	switch strings.ToUpper(s[:3]) {
	case "BYT":
		return WaveByte, nil
	case "WOR":
		return WaveWord, nil
	case "ASC":
		return WaveASCII, nil
	}
	return 0, InvalidFormatError{Format: s}
}

// formatFromCode maps the preamble's integer format code to a WaveFormat
func formatFromCode(code int) (WaveFormat, error) {
	switch code {
	case formatCodeByte:
		return WaveByte, nil
	case formatCodeWord:
		return WaveWord, nil
	case formatCodeASCII:
		return WaveASCII, nil
	}
	return 0, UnsupportedFormatError{Code: code}
}

// AcqType is the acquisition mode of the instrument
type AcqType int

const (
	// AcqNormal is the ordinary sampling mode
	AcqNormal AcqType = iota

	// AcqPeak is peak-detect mode; it appears in preambles but is not a
	// configurable capture mode in this package
	AcqPeak

	// AcqAverage averages 2..65536 triggers per displayed point
	AcqAverage

	// AcqHighRes is the high resolution (smoothing) mode
	AcqHighRes
)

// String returns the SCPI mnemonic for the acquisition type
func (a AcqType) String() string {
	switch a {
	case AcqNormal:
		return "NORMal"
	case AcqPeak:
		return "PEAK"
	case AcqAverage:
		return "AVERage"
	case AcqHighRes:
		return "HRESolution"
	}
	return "unknown"
}

// Short returns the four-letter form of the mnemonic, as the instrument
// echoes it back from :ACQuire:TYPE?
func (a AcqType) Short() string {
	s := a.String()
	if len(s) > 4 {
		s = s[:4]
	}
	return strings.ToUpper(s)
}

// ParseAcqType converts a mnemonic such as "HRESolution" or "aver" to an
// AcqType, matching on the first four letters, case insensitive
func ParseAcqType(s string) (AcqType, error) {
	if len(s) < 4 {
		return 0, InvalidFormatError{Format: s}
	}
	switch strings.ToUpper(s[:4]) {
	case "NORM":
		return AcqNormal, nil
	case "PEAK":
		return AcqPeak, nil
	case "AVER":
		return AcqAverage, nil
	case "HRES":
		return AcqHighRes, nil
	}
	return 0, InvalidFormatError{Format: s}
}
