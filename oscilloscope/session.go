package oscilloscope

import (
	"fmt"
	"time"
)

// Config holds the default acquisition options applied to a new Session.
// It replaces what used to be package-level constants so that programs can
// carry their defaults in a configuration file.
type Config struct {
	// WaveFormat is the transfer encoding, one of BYTE, WORD, ASCii
	WaveFormat string `yaml:"format" koanf:"format"`

	// Points is the number of samples to transfer; 0 means the maximum
	// available for the points mode
	Points int `yaml:"points" koanf:"points"`

	// PointsMode is NORMal (up to 62,500 points), RAW (up to 1e6), or
	// MAXimum
	PointsMode string `yaml:"points-mode" koanf:"points-mode"`

	// AcqType is the acquisition mode, one of HRESolution, NORMal, AVERage
	AcqType string `yaml:"acq-type" koanf:"acq-type"`

	// Averages is the averaging count, used only in AVERage mode
	Averages int `yaml:"averages" koanf:"averages"`

	// Channels is the explicit channel list; empty means capture whatever
	// channels are active on the instrument at capture time
	Channels []int `yaml:"channels" koanf:"channels"`

	// Timeout bounds each transport operation.  It must be longer than
	// the acquisition time.
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}

// DefaultConfig returns the stock acquisition options: 16-bit transfer of
// the maximum number of raw points in high resolution mode from the active
// channels
func DefaultConfig() Config {
	return Config{
		WaveFormat: "WORD",
		Points:     0,
		PointsMode: "RAW",
		AcqType:    "HRESolution",
		Averages:   2,
		Channels:   nil,
		Timeout:    15 * time.Second,
	}
}

// Session is the acquisition state carried across repeated captures on one
// open connection.  It is mutated only through its setters, performs no
// instrument I/O, and is treated as read-only input by a capture in
// progress.  It is not reset between captures, which is what lets looping
// programs skip re-resolving active channels every iteration.
type Session struct {
	format     WaveFormat
	points     int
	pointsMode string
	acqType    AcqType
	averages   int
	channels   []int
	timeout    time.Duration
}

// NewSession builds a Session from cfg, validating every option through
// the same setters callers use
func NewSession(cfg Config) (*Session, error) {
	s := &Session{}
	format, err := ParseWaveFormat(cfg.WaveFormat)
	if err != nil {
		return nil, err
	}
	if err := s.SetWaveFormat(format); err != nil {
		return nil, err
	}
	if err := s.SetPointCount(cfg.Points); err != nil {
		return nil, err
	}
	if err := s.SetPointsMode(cfg.PointsMode); err != nil {
		return nil, err
	}
	acq, err := ParseAcqType(cfg.AcqType)
	if err != nil {
		return nil, err
	}
	if err := s.SetAcquisitionType(acq, cfg.Averages); err != nil {
		return nil, err
	}
	if err := s.SetChannels(cfg.Channels); err != nil {
		return nil, err
	}
	s.SetTimeout(cfg.Timeout)
	return s, nil
}

// SetWaveFormat selects the transfer encoding for subsequent captures
func (s *Session) SetWaveFormat(f WaveFormat) error {
	switch f {
	case WaveByte, WaveWord, WaveASCII:
		s.format = f
		return nil
	}
	return InvalidFormatError{Format: f.String()}
}

// WaveFormat returns the configured transfer encoding
func (s *Session) WaveFormat() WaveFormat {
	return s.format
}

// SetPointCount sets the number of samples to transfer per channel.
// Zero means use the instrument maximum for the points mode.
func (s *Session) SetPointCount(n int) error {
	if n < 0 {
		return fmt.Errorf("point count must be a non-negative integer, got %d", n)
	}
	s.points = n
	return nil
}

// PointCount returns the configured sample count, 0 meaning maximum
func (s *Session) PointCount() int {
	return s.points
}

// SetPointsMode sets the instrument points mode, one of NORMal, RAW,
// MAXimum (matched on the first three letters)
func (s *Session) SetPointsMode(mode string) error {
	if len(mode) < 3 {
		return fmt.Errorf("invalid points mode %q, must be one of NORMal, RAW, MAXimum", mode)
	}
	switch mode[:3] {
	case "NOR", "nor", "RAW", "raw", "MAX", "max":
		s.pointsMode = mode
		return nil
	}
	return fmt.Errorf("invalid points mode %q, must be one of NORMal, RAW, MAXimum", mode)
}

// PointsMode returns the configured points mode
func (s *Session) PointsMode() string {
	return s.pointsMode
}

// SetAcquisitionType selects the acquisition mode.  averages is required
// and validated to [2, 65536] only in AVERage mode and ignored otherwise.
func (s *Session) SetAcquisitionType(t AcqType, averages int) error {
	switch t {
	case AcqNormal, AcqAverage, AcqHighRes:
	default:
		return InvalidFormatError{Format: t.String()}
	}
	if t == AcqAverage {
		if averages < 2 || averages > 65536 {
			return InvalidAveragesError{Averages: averages}
		}
		s.averages = averages
	}
	s.acqType = t
	return nil
}

// AcquisitionType returns the configured mode and averaging count
func (s *Session) AcquisitionType() (AcqType, int) {
	return s.acqType, s.averages
}

// SetChannels selects an explicit ordered channel list.  An empty or nil
// list selects whatever channels are active on the instrument at capture
// time.  Channel numbers must be positive; range validation against the
// connected instrument happens at capture time.
func (s *Session) SetChannels(channels []int) error {
	for _, ch := range channels {
		if ch < 1 {
			return InvalidChannelError{Channel: ch}
		}
	}
	if len(channels) == 0 {
		s.channels = nil
		return nil
	}
	s.channels = append([]int(nil), channels...)
	return nil
}

// UseActiveChannels switches the session to capture the channels active on
// the instrument at capture time
func (s *Session) UseActiveChannels() {
	s.channels = nil
}

// Channels returns the explicit channel list, or nil when the session
// captures the active channels
func (s *Session) Channels() []int {
	return s.channels
}

// CaptureActive reports whether the channel set is resolved from the
// instrument at capture time
func (s *Session) CaptureActive() bool {
	return s.channels == nil
}

// SetTimeout bounds each transport operation of a capture
func (s *Session) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Timeout returns the per-operation transport timeout
func (s *Session) Timeout() time.Duration {
	return s.timeout
}
