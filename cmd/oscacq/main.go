// Command oscacq captures oscilloscope traces to delimited text or NumPy
// files, either one-shot, in a loop on one open connection, or served
// over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"
	"golang.org/x/time/rate"

	"goji.io"

	yml "gopkg.in/yaml.v2"

	"github.com/omclab/oscacq/generichttp/scope"
	"github.com/omclab/oscacq/keysight"
	"github.com/omclab/oscacq/oscilloscope"
	"github.com/omclab/oscacq/traceio"
	"github.com/omclab/oscacq/util"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "oscacq.yml"
	k              = koanf.New(".")
)

// Config is the flat configuration for the program; acquisition options
// mirror oscilloscope.Config with durations in seconds for the yaml file
type Config struct {
	// Addr is the scope's raw SCPI socket, e.g. 192.168.100.152:5025
	Addr string `koanf:"addr" yaml:"addr"`

	// HTTPAddr is the listen address for the serve command
	HTTPAddr string `koanf:"http-addr" yaml:"http-addr"`

	Format     string  `koanf:"format" yaml:"format"`
	Points     int     `koanf:"points" yaml:"points"`
	PointsMode string  `koanf:"points-mode" yaml:"points-mode"`
	AcqType    string  `koanf:"acq-type" yaml:"acq-type"`
	Averages   int     `koanf:"averages" yaml:"averages"`
	Channels   []int   `koanf:"channels" yaml:"channels"`
	Timeout    float64 `koanf:"timeout" yaml:"timeout"`

	// Filename is the output base name, Filetype .csv or .npy
	Filename string `koanf:"filename" yaml:"filename"`
	Filetype string `koanf:"filetype" yaml:"filetype"`

	// Period is the pause between captures in loop mode, seconds
	Period float64 `koanf:"period" yaml:"period"`
}

func defaults() Config {
	acq := oscilloscope.DefaultConfig()
	return Config{
		Addr:       "192.168.100.152:5025",
		HTTPAddr:   ":8000",
		Format:     acq.WaveFormat,
		Points:     acq.Points,
		PointsMode: acq.PointsMode,
		AcqType:    acq.AcqType,
		Averages:   acq.Averages,
		Timeout:    acq.Timeout.Seconds(),
		Filename:   "data",
		Filetype:   ".csv",
		Period:     1,
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func loadconfig() Config {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func (c Config) acquisition() oscilloscope.Config {
	return oscilloscope.Config{
		WaveFormat: c.Format,
		Points:     c.Points,
		PointsMode: c.PointsMode,
		AcqType:    c.AcqType,
		Averages:   c.Averages,
		Channels:   c.Channels,
		Timeout:    util.SecsToDuration(c.Timeout),
	}
}

func root() {
	str := `oscacq captures calibrated traces from Keysight InfiniiVision scopes

Usage:
	oscacq <command>

Commands:
	single
	loop
	serve
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `oscacq is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

single captures one trace and saves it to <filename><filetype>.
loop captures repeatedly on one open connection, saving numbered files,
until interrupted.  The channel selection is resolved once per capture,
so toggling channels on the scope front panel between iterations is
picked up; everything else is carried across captures.
serve exposes the scope over HTTP (GET /capture.csv and friends).

Options of note:
- format: BYTE, WORD or ASCii transfer encoding; WORD is the default
- points: 0 transfers the maximum record for the points mode
- channels: an explicit list such as [2, 1, 4]; empty captures whatever
  is active on the instrument
- timeout: seconds per transport operation, must exceed the acquisition
  time (averaging at slow sweep speeds can take minutes)`
	fmt.Println(str)
}

func mkconf() {
	c := loadconfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadconfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("oscacq version %v\n", Version)
}

func connect(c Config) (*keysight.Scope, *oscilloscope.Session) {
	sess, err := oscilloscope.NewSession(c.acquisition())
	if err != nil {
		log.Fatal(err)
	}
	s := keysight.NewScope(c.Addr)
	err = s.Initialize()
	if err != nil {
		log.Fatal(err)
	}
	return s, sess
}

func spinner(suffix string) *yacspin.Spinner {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " " + suffix,
		SuffixAutoColon: true,
		StopCharacter:   "done",
	}
	spin, err := yacspin.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	return spin
}

func save(c Config, fname string, hdr oscilloscope.FileHeader, t *oscilloscope.Trace) error {
	if c.Filetype == ".npy" {
		return traceio.SaveNPY(fname+c.Filetype, t)
	}
	return traceio.SaveCSV(fname+c.Filetype, hdr, t)
}

func single() {
	c := loadconfig()
	s, sess := connect(c)
	defer s.Run()
	spin := spinner("acquiring")
	spin.Start()
	trace, err := s.Capture(sess)
	if err != nil {
		spin.StopFail()
		log.Fatal(err)
	}
	hdr, err := s.FileHeader(sess, trace)
	if err != nil {
		spin.StopFail()
		log.Fatal(err)
	}
	err = save(c, c.Filename, hdr, trace)
	if err != nil {
		spin.StopFail()
		log.Fatal(err)
	}
	spin.Stop()
	log.Printf("saved %d points x %d channels to %s%s", trace.Points(), trace.NumChannels(), c.Filename, c.Filetype)
}

func loop() {
	c := loadconfig()
	s, sess := connect(c)
	defer s.Run()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	limiter := rate.NewLimiter(rate.Every(util.SecsToDuration(c.Period)), 1)
	for i := 0; ; i++ {
		err := limiter.Wait(ctx)
		if err != nil {
			log.Printf("stopping after %d captures", i)
			return
		}
		trace, err := s.Capture(sess)
		if err != nil {
			log.Fatal(err)
		}
		hdr, err := s.FileHeader(sess, trace)
		if err != nil {
			log.Fatal(err)
		}
		fname := fmt.Sprintf("%s-%04d", c.Filename, i)
		err = save(c, fname, hdr, trace)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("saved %s%s", fname, c.Filetype)
	}
}

func serve() {
	c := loadconfig()
	s, sess := connect(c)
	httper := scope.NewHTTPScope(s, sess)
	mux := goji.NewMux()
	httper.RouteTable.Bind(mux)
	log.Println("endpoints:", httper.RouteTable.Endpoints())
	log.Println("now listening for requests at", c.HTTPAddr)
	log.Fatal(http.ListenAndServe(c.HTTPAddr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "single":
		single()
	case "loop":
		loop()
	case "serve":
		serve()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
