// Package server contains misc HTTP server utilities shared by the
// generichttp wrappers
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"

	"goji.io"
	"goji.io/pat"
)

// HumanPayload is a struct that holds the various types of data that can be
// returned by a route, and a type flag saying which is populated
type HumanPayload struct {
	// T holds the type of data actually contained in the payload
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an int
	Int int

	// Float holds a float64
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond writes the payload to w as JSON with the appropriate key
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var err error
	switch hp.T {
	case types.Bool:
		err = json.NewEncoder(w).Encode(BoolT{Bool: hp.Bool})
	case types.Int:
		err = json.NewEncoder(w).Encode(IntT{Int: hp.Int})
	case types.Float64:
		err = json.NewEncoder(w).Encode(FloatT{F64: hp.Float})
	case types.String:
		err = json.NewEncoder(w).Encode(StrT{Str: hp.String})
	default:
		err = fmt.Errorf("unknown payload type %v", hp.T)
	}
	if err != nil {
		fstr := fmt.Sprintf("error encoding response to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// FloatT is a strongly typed float64 for JSON encoding as {"f64": v}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a strongly typed int for JSON encoding as {"int": v}
type IntT struct {
	Int int `json:"int"`
}

// StrT is a strongly typed string for JSON encoding as {"str": v}
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a strongly typed bool for JSON encoding as {"bool": v}
type BoolT struct {
	Bool bool `json:"bool"`
}

// RouteTable maps goji patterns to handlers
type RouteTable map[*pat.Pattern]http.Handler

// Bind attaches every route in the table to the mux
func (rt RouteTable) Bind(m *goji.Mux) {
	for ptrn, handler := range rt {
		m.Handle(ptrn, handler)
	}
}

// Endpoints lists the patterns in the table
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k.String())
	}
	return routes
}
