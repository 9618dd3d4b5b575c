// Package scope provides an HTTP interface to oscilloscopes
package scope

import (
	"encoding/json"
	"net/http"

	"github.com/omclab/oscacq/generichttp"
	"github.com/omclab/oscacq/oscilloscope"
	"github.com/omclab/oscacq/server"

	"goji.io/pat"
)

// Oscilloscope describes the capture-facing surface of a scope driver
type Oscilloscope interface {
	// ID returns the instrument identity string
	ID() (string, error)

	// Run sets the instrument to running mode
	Run() error

	// Stop halts the instrument
	Stop() error

	// IsRunning reports whether the instrument is acquiring
	IsRunning() (bool, error)

	// ActiveChannels lists the channels currently displayed
	ActiveChannels() ([]int, error)

	// Capture obtains one trace under the session's configuration
	Capture(*oscilloscope.Session) (*oscilloscope.Trace, error)

	// FileHeader describes a captured trace
	FileHeader(*oscilloscope.Session, *oscilloscope.Trace) (oscilloscope.FileHeader, error)
}

// HTTPScope wraps an Oscilloscope and a Session in a route table.
// Setter routes mutate the session, not the instrument; the instrument
// sees the accumulated configuration at the next capture.
type HTTPScope struct {
	Scope Oscilloscope

	Session *oscilloscope.Session

	RouteTable server.RouteTable
}

// NewHTTPScope builds the route table for a scope and session
func NewHTTPScope(s Oscilloscope, sess *oscilloscope.Session) HTTPScope {
	h := HTTPScope{Scope: s, Session: sess}
	rt := server.RouteTable{
		pat.Get("/id"):           generichttp.GetString(s.ID),
		pat.Get("/running"):      generichttp.GetBool(s.IsRunning),
		pat.Post("/running"):     generichttp.SetBool(s.Run, s.Stop),
		pat.Get("/wave-format"):  generichttp.GetString(h.getWaveFormat),
		pat.Post("/wave-format"): generichttp.SetString(h.setWaveFormat),
		pat.Get("/points"):       generichttp.GetInt(h.getPoints),
		pat.Post("/points"):      generichttp.SetInt(sess.SetPointCount),
		pat.Get("/acq-type"):     generichttp.GetString(h.getAcqType),
		pat.Post("/acq-type"):    generichttp.SetString(h.setAcqType),
		pat.Get("/averages"):     generichttp.GetInt(h.getAverages),
		pat.Post("/averages"):    generichttp.SetInt(h.setAverages),
		pat.Get("/channels"):     http.HandlerFunc(h.getChannels),
		pat.Post("/channels"):    http.HandlerFunc(h.setChannels),
		pat.Get("/capture.csv"):  http.HandlerFunc(h.capture),
	}
	h.RouteTable = rt
	return h
}

func (h HTTPScope) getWaveFormat() (string, error) {
	return h.Session.WaveFormat().String(), nil
}

func (h HTTPScope) setWaveFormat(s string) error {
	f, err := oscilloscope.ParseWaveFormat(s)
	if err != nil {
		return err
	}
	return h.Session.SetWaveFormat(f)
}

func (h HTTPScope) getPoints() (int, error) {
	return h.Session.PointCount(), nil
}

func (h HTTPScope) getAcqType() (string, error) {
	t, _ := h.Session.AcquisitionType()
	return t.String(), nil
}

func (h HTTPScope) setAcqType(s string) error {
	t, err := oscilloscope.ParseAcqType(s)
	if err != nil {
		return err
	}
	_, averages := h.Session.AcquisitionType()
	return h.Session.SetAcquisitionType(t, averages)
}

func (h HTTPScope) getAverages() (int, error) {
	_, averages := h.Session.AcquisitionType()
	return averages, nil
}

func (h HTTPScope) setAverages(n int) error {
	// setting a count only makes sense when averaging, so it implies the mode
	return h.Session.SetAcquisitionType(oscilloscope.AcqAverage, n)
}

// getChannels returns the session's channel selection, resolving the
// active-channel sentinel against the instrument
func (h HTTPScope) getChannels(w http.ResponseWriter, r *http.Request) {
	chans := h.Session.Channels()
	if chans == nil {
		var err error
		chans, err = h.Scope.ActiveChannels()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(chans)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// setChannels accepts a JSON list of channel numbers; an empty list
// selects the active channels at capture time
func (h HTTPScope) setChannels(w http.ResponseWriter, r *http.Request) {
	var chans []int
	err := json.NewDecoder(r.Body).Decode(&chans)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Session.SetChannels(chans)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// capture runs one acquisition and streams the result as CSV with the
// header block in comment lines
func (h HTTPScope) capture(w http.ResponseWriter, r *http.Request) {
	t, err := h.Scope.Capture(h.Session)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hdr, err := h.Scope.FileHeader(h.Session, t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=trace.csv")
	for _, line := range hdr.Lines() {
		_, err = w.Write([]byte("# " + line + "\n"))
		if err != nil {
			return
		}
	}
	// the status line is already written; an encode error here can only
	// truncate the body
	t.EncodeCSV(w)
}
