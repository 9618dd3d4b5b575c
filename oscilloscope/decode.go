package oscilloscope

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Decode converts one channel's raw payload into physical voltages of
// length p.Points, dispatching on the preamble's wave format
func Decode(p Preamble, payload []byte) ([]float64, error) {
	if p.Format == WaveASCII {
		return DecodeASCII(p, string(payload))
	}
	return DecodeBinary(p, payload)
}

// DecodeBinary reinterprets a binary payload as signed integers of the
// width given by the preamble's format (8-bit for BYTE, 16-bit
// little-endian for WORD) and applies
//
//	voltage = (raw - YReference)*YIncrement + YOrigin
//
// element-wise in double precision.  The values are signed regardless of
// the wave format name; the instrument is configured for signed transfer
// at connect time, and treating them as unsigned corrupts every sample
// below the vertical center.
func DecodeBinary(p Preamble, payload []byte) ([]float64, error) {
	var (
		yref = float64(p.YReference)
		out  []float64
	)
	switch p.Format {
	case WaveByte:
		if len(payload) != p.Points {
			return nil, PayloadLengthMismatchError{Expected: p.Points, Actual: len(payload)}
		}
		out = make([]float64, p.Points)
		for i := 0; i < p.Points; i++ {
			raw := int8(payload[i])
			out[i] = (float64(raw)-yref)*p.YIncrement + p.YOrigin
		}
	case WaveWord:
		if len(payload)%2 != 0 || len(payload)/2 != p.Points {
			return nil, PayloadLengthMismatchError{Expected: p.Points, Actual: len(payload) / 2}
		}
		out = make([]float64, p.Points)
		for i := 0; i < p.Points; i++ {
			raw := int16(binary.LittleEndian.Uint16(payload[2*i:]))
			out[i] = (float64(raw)-yref)*p.YIncrement + p.YOrigin
		}
	default:
		return nil, InvalidFormatError{Format: p.Format.String()}
	}
	return out, nil
}

// DecodeASCII parses a comma-separated decimal payload.  The values are
// already physical voltages; no preamble scaling is applied.
func DecodeASCII(p Preamble, payload string) ([]float64, error) {
	// some instrument families leave a trailing comma or terminator on the
	// block; strip before splitting
	payload = strings.Trim(payload, "\r\n,")
	tokens := strings.Split(payload, ",")
	if len(tokens) != p.Points {
		return nil, PayloadLengthMismatchError{Expected: p.Points, Actual: len(tokens)}
	}
	out := make([]float64, p.Points)
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, fmt.Errorf("ascii payload: sample %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
