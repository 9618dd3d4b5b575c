package keysight

import (
	"fmt"
	"strings"
	"time"

	"github.com/omclab/oscacq/oscilloscope"
	"github.com/omclab/oscacq/util"
)

// captureErr wraps a transport failure in a CaptureError, enriching it
// with the instrument's own error queue when it can still be drained
func (s *Scope) captureErr(op string, err error) *oscilloscope.CaptureError {
	instErrs, _ := s.AllErrorsString()
	return &oscilloscope.CaptureError{Op: op, InstrumentErrors: instErrs, Err: err}
}

// resolveChannels turns the session's channel selection into an explicit
// ordered list.  The active-channel sentinel resolves in ascending channel
// order; an explicit list is validated against the supported range and
// deduplicated, preserving order.
func (s *Scope) resolveChannels(sess *oscilloscope.Session) ([]int, error) {
	if sess.CaptureActive() {
		chans, err := s.ActiveChannels()
		if err != nil {
			return nil, s.captureErr("resolving active channels", err)
		}
		return chans, nil
	}
	chans := util.UniqueInt(sess.Channels())
	for _, ch := range chans {
		if ch < 1 || ch > maxChannel {
			return nil, oscilloscope.InvalidChannelError{Channel: ch, Max: maxChannel}
		}
	}
	return chans, nil
}

// applySession pushes the session's acquisition options to the instrument
func (s *Scope) applySession(sess *oscilloscope.Session) error {
	err := s.SetWaveFormat(sess.WaveFormat())
	if err != nil {
		return err
	}
	acq, averages := sess.AcquisitionType()
	err = s.SetAcqType(acq, averages)
	if err != nil {
		return err
	}
	err = s.SetPointsMode(sess.PointsMode())
	if err != nil {
		return err
	}
	return s.SetNumPoints(sess.PointCount())
}

// Capture obtains one trace from the channels the session selects.
//
// If the instrument is running, a single :DIGitize command covering every
// requested channel triggers a fresh acquisition under the configured
// settings and stops the instrument.  If it is already stopped, the trace
// currently displayed is read out without re-triggering; in that branch
// the session's acquisition mode and point count are not guaranteed to
// apply.  This is a limitation of the instrument, not of this package.
//
// Whatever happens after acquisition starts, the instrument is set back to
// running before Capture returns, so a failed transfer does not leave the
// scope stopped as a side effect.
func (s *Scope) Capture(sess *oscilloscope.Session) (*oscilloscope.Trace, error) {
	if sess.Timeout() > 0 {
		s.SCPI.Timeout = sess.Timeout()
	}
	chans, err := s.resolveChannels(sess)
	if err != nil {
		return nil, err
	}
	if len(chans) == 0 {
		return nil, fmt.Errorf("no channels to capture: none requested and none active")
	}
	err = s.applySession(sess)
	if err != nil {
		return nil, s.captureErr("configuring acquisition", err)
	}
	running, err := s.IsRunning()
	if err != nil {
		return nil, s.captureErr("querying run state", err)
	}
	// from here on the instrument may be left stopped by :DIGitize, so the
	// restore must happen no matter how the transfer goes
	defer s.Run()
	trace, err := s.transfer(sess, chans, running)
	if err != nil {
		return nil, err
	}
	return trace, nil
}

// transfer runs the digitize-and-read sequence for an already resolved,
// validated channel list
func (s *Scope) transfer(sess *oscilloscope.Session, chans []int, running bool) (*oscilloscope.Trace, error) {
	sources := make([]string, len(chans))
	for i, ch := range chans {
		sources[i] = fmt.Sprintf("CHANnel%d", ch)
	}
	if running {
		// one command for the whole source list, so the acquisition is
		// consistent across channels
		err := s.Write(":DIGitize " + strings.Join(sources, ", "))
		if err != nil {
			return nil, s.captureErr("digitizing", err)
		}
	}

	trace := &oscilloscope.Trace{
		Channels: append([]int(nil), chans...),
		Values:   make([][]float64, 0, len(chans)),
	}
	var (
		pre     oscilloscope.Preamble
		havePre bool
	)
	for _, src := range sources {
		err := s.Write(":WAVeform:SOURce " + src)
		if err != nil {
			return nil, s.captureErr("selecting source "+src, err)
		}
		if !havePre {
			// format and point count are shared by every channel in the
			// capture, so the preamble is queried once
			raw, err := s.ReadString(":WAVeform:PREamble?")
			if err != nil {
				return nil, s.captureErr("reading preamble", err)
			}
			pre, err = oscilloscope.ParsePreamble(raw)
			if err != nil {
				return nil, err
			}
			havePre = true
			trace.Time = pre.TimeVector()
		}
		payload, err := s.ReadBlock(":WAVeform:DATA?")
		if err != nil {
			return nil, s.captureErr("transferring "+src, err)
		}
		samples, err := oscilloscope.Decode(pre, payload)
		if err != nil {
			return nil, err
		}
		trace.Values = append(trace.Values, samples)
	}
	return trace, nil
}

// FileHeader assembles the four-line header block describing the given
// trace, querying the instrument for its identity
func (s *Scope) FileHeader(sess *oscilloscope.Session, t *oscilloscope.Trace) (oscilloscope.FileHeader, error) {
	id, err := s.ID()
	if err != nil {
		return oscilloscope.FileHeader{}, err
	}
	acq, averages := sess.AcquisitionType()
	return oscilloscope.FileHeader{
		ID:        id,
		AcqType:   acq,
		Averages:  averages,
		Timestamp: time.Now(),
		Channels:  append([]int(nil), t.Channels...),
	}, nil
}
