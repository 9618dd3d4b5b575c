// Package keysight provides access to their oscilloscopes in Go.
// It drives the acquisition sequence of the InfiniiVision DSO/MSO family
// and hands raw transfers to the oscilloscope package for decoding.
package keysight

import (
	"fmt"
	"time"

	"github.com/omclab/oscacq/comm"
	"github.com/omclab/oscacq/oscilloscope"
	"github.com/omclab/oscacq/scpi"
	"github.com/omclab/oscacq/usbtmc"
	"github.com/tarm/serial"
)

// maxChannel is the highest analog channel number on the supported
// (InfiniiVision) family
const maxChannel = 4

// Scope is an interface to a keysight oscilloscope
type Scope struct {
	scpi.SCPI
}

// NewScope creates a new scope instance speaking raw SCPI over TCP,
// usually to port 5025
func NewScope(addr string) *Scope {
	maker := comm.BackingOffTCPConnMaker(addr, 1*time.Second)
	pool := comm.NewPool(1, time.Hour, maker)
	return &Scope{scpi.SCPI{Pool: pool}}
}

// NewScopeUSB creates a new scope instance attached over USB, using
// USB Test & Measurement Class bulk transfers
func NewScopeUSB(vid, pid uint16) *Scope {
	maker := usbtmc.ConnMaker(vid, pid)
	pool := comm.NewPool(1, time.Hour, maker)
	return &Scope{scpi.SCPI{Pool: pool}}
}

// NewScopeSerial creates a new scope instance attached over RS-232
func NewScopeSerial(conf *serial.Config) *Scope {
	maker := comm.SerialConnMaker(conf)
	pool := comm.NewPool(1, time.Hour, maker)
	return &Scope{scpi.SCPI{Pool: pool}}
}

// Initialize clears the status registers and error queue and configures
// binary transfers as signed integers, least significant byte first.
// WORD decoding is undefined without the byte order override; the
// instrument default is MSB first.
func (s *Scope) Initialize() error {
	err := s.Write("*CLS")
	if err != nil {
		return err
	}
	err = s.Write(":WAVeform:UNSigned OFF")
	if err != nil {
		return err
	}
	return s.Write(":WAVeform:BYTeorder LSBFirst")
}

// ID returns the maker, model, serial and firmware version of the scope,
// e.g. "KEYSIGHT TECHNOLOGIES,MSO-X 3024A,MY12345678,06.30.00609"
func (s *Scope) ID() (string, error) {
	return s.ReadString("*IDN?")
}

// Run sets the oscilloscope to running mode
func (s *Scope) Run() error {
	return s.Write(":RUN")
}

// Stop stops the oscilloscope
func (s *Scope) Stop() error {
	return s.Write(":STOP")
}

// IsRunning reports whether the instrument is acquiring.  The third bit
// of the operation status register is set while running.
func (s *Scope) IsRunning() (bool, error) {
	reg, err := s.ReadInt(":OPERegister:CONDition?")
	if err != nil {
		return false, err
	}
	return reg&8 == 8, nil
}

// ActiveChannels returns the channels currently displayed on the
// instrument, in ascending channel number order
func (s *Scope) ActiveChannels() ([]int, error) {
	var chans []int
	for i := 1; i <= maxChannel; i++ {
		on, err := s.ReadBool(fmt.Sprintf(":CHANnel%d:DISPlay?", i))
		if err != nil {
			return nil, err
		}
		if on {
			chans = append(chans, i)
		}
	}
	return chans, nil
}

// SetActiveChannels displays exactly the given channels on the instrument
func (s *Scope) SetActiveChannels(channels []int) error {
	on := map[int]bool{}
	for _, ch := range channels {
		if ch < 1 || ch > maxChannel {
			return oscilloscope.InvalidChannelError{Channel: ch, Max: maxChannel}
		}
		on[ch] = true
	}
	for i := 1; i <= maxChannel; i++ {
		v := 0
		if on[i] {
			v = 1
		}
		err := s.Write(fmt.Sprintf(":CHANnel%d:DISPlay %d", i, v))
		if err != nil {
			return err
		}
	}
	return nil
}

// SetWaveFormat selects the transfer encoding for waveform readout
func (s *Scope) SetWaveFormat(f oscilloscope.WaveFormat) error {
	return s.Write(":WAVeform:FORMat", f.String())
}

// GetWaveFormat returns the transfer encoding the instrument reports
func (s *Scope) GetWaveFormat() (oscilloscope.WaveFormat, error) {
	str, err := s.ReadString(":WAVeform:FORMat?")
	if err != nil {
		return 0, err
	}
	return oscilloscope.ParseWaveFormat(str)
}

// SetAcqType configures the acquisition mode, and the averaging count
// when the mode is AVERage
func (s *Scope) SetAcqType(t oscilloscope.AcqType, averages int) error {
	err := s.Write(":ACQuire:TYPE", t.Short())
	if err != nil {
		return err
	}
	if t == oscilloscope.AcqAverage {
		return s.Write(fmt.Sprintf(":ACQuire:COUNt %d", averages))
	}
	return nil
}

// GetAcqType returns the acquisition mode the instrument reports
func (s *Scope) GetAcqType() (oscilloscope.AcqType, error) {
	str, err := s.ReadString(":ACQuire:TYPE?")
	if err != nil {
		return 0, err
	}
	return oscilloscope.ParseAcqType(str)
}

// GetNumAverages returns the averaging count used in AVERage mode
func (s *Scope) GetNumAverages() (int, error) {
	return s.ReadInt(":ACQuire:COUNt?")
}

// SetPointsMode selects the points mode; NORMal is capped at 62,500
// points, RAW allows the full record
func (s *Scope) SetPointsMode(mode string) error {
	return s.Write(":WAVeform:POINts:MODE", mode)
}

// SetNumPoints requests a number of samples per transfer; zero requests
// the maximum for the current points mode
func (s *Scope) SetNumPoints(n int) error {
	if n == 0 {
		return s.Write(":WAVeform:POINts MAXimum")
	}
	return s.Write(fmt.Sprintf(":WAVeform:POINts %d", n))
}

// GetNumPoints returns the number of points the next transfer will carry.
// The instrument only reports the stopped-state figure while stopped, so
// it is stopped and set running again around the query.
func (s *Scope) GetNumPoints() (int, error) {
	err := s.Stop()
	if err != nil {
		return 0, err
	}
	n, err := s.ReadInt(":WAVeform:POINts?")
	if err != nil {
		return 0, err
	}
	return n, s.Run()
}

// GetPreamble queries and parses the transfer descriptor for the
// currently selected waveform source
func (s *Scope) GetPreamble() (oscilloscope.Preamble, error) {
	str, err := s.ReadString(":WAVeform:PREamble?")
	if err != nil {
		return oscilloscope.Preamble{}, err
	}
	return oscilloscope.ParsePreamble(str)
}
