package main

import (
	"context"
	"database/sql"
	"flag"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/ohleck/gr-analyzer/control"
	"github.com/ohleck/gr-analyzer/export"
	"github.com/ohleck/gr-analyzer/filter"
	"github.com/ohleck/gr-analyzer/pipeline"
	"github.com/ohleck/gr-analyzer/rtlsdr"
	"github.com/ohleck/gr-analyzer/sdr"
	"github.com/ohleck/gr-analyzer/sim"
	"github.com/ohleck/gr-analyzer/sweep"

	// Blind import support for sqlite3 used by sqlite.go.
	_ "github.com/mattn/go-sqlite3"
)

// Flags
var (
	identifier = flag.String("id", "", "unique identifier of this run (defaults to a random UUID)")

	// Spectrum region
	centerFreq = flag.Float64("centerFreq", 0, "center frequency of the span in Hz (required)")
	span       = flag.Float64("span", 0, "width to scan around centerFreq in Hz (0 covers a single tuning)")
	sampleRate = flag.Float64("sampleRate", 2e6, "device sample rate in samples/s")
	fftSize    = flag.Int("fftSize", 1024, "number of bins per tuning, multiple of 32")
	overlap    = flag.Int("overlap", 25, "percentage of each tuning overlapped with its neighbors")
	loOffset   = flag.Float64("loOffset", 0, "local oscillator offset in Hz applied to every tune")

	// Sweep timing (in samples)
	skipInitial = flag.Int("skipInitial", 1000000, "samples to discard before the first frequency step")
	tuneDelay   = flag.Int("tuneDelay", 100000, "samples to discard after each retune")
	nframes     = flag.Int("nframes", 30, "frames of fftSize samples to capture per frequency step")

	continuous = flag.Bool("continuous", false, "keep sweeping until an exit is requested via the control API")
	noTune     = flag.Bool("noTune", false, "suppress hardware tune commands (state machine runs normally)")

	sdrType       = flag.String("sdr", "", "SDR to use (one of: rtlsdr, sim)")
	output        = flag.String("output", "", "Export mechanism to use (one of: csv, sqlite, server)")
	controlListen = flag.String("controlListen", ":8080", "address for the sweep control API (empty disables it)")

	// Journal filtering
	journalLowFreq  = flag.Float64("journalLowFreq", 0, "drop journal records below this frequency in Hz (0 disables)")
	journalHighFreq = flag.Float64("journalHighFreq", 0, "drop journal records above this frequency in Hz (0 disables)")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/analyzer", "File path of the sqlite DB file to use.")

	// Analyzer server
	analyzerServer        = flag.String("analyzerServer", "https://localhost:8443", "URL scheme, address and port of the journal server.")
	analyzerServerRecords = flag.Int("analyzerServerRecords", 0, "Defines how many journal records should be sent to the server at once.")
)

func main() {
	ctx := context.Background()
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()

	if *identifier == "" {
		*identifier = uuid.NewString()
	}

	plan, err := sweep.NewPlan(sweep.PlanConfig{
		CenterHz:   *centerFreq,
		SpanHz:     *span,
		SampleRate: *sampleRate,
		FFTSize:    *fftSize,
		Overlap:    float64(*overlap) / 100.0,
	})
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("sweeping %d center frequencies, %.0f Hz to %.0f Hz in steps of %.0f Hz",
		len(plan.Centers), plan.MinHz, plan.MaxHz, plan.FreqStep)

	// SDR setup
	var radio sdr.Device
	switch strings.ToLower(*sdrType) {
	case rtlsdr.SourceName:
		dev := &rtlsdr.SDR{SampleRate: int(*sampleRate)}
		if err := dev.Open(); err != nil {
			glog.Exit(err)
		}
		radio = dev
	case sim.SourceName:
		radio = &sim.SDR{SampleRate: *sampleRate}
	default:
		glog.Exitf("%q is not a supported SDR type, pick one of: rtlsdr, sim", *sdrType)
	}
	defer radio.Close()

	// Exporter setup
	var exporter export.Exporter
	switch strings.ToLower(*output) {
	case "csv":
		exporter = &export.CSV{}
	case "sqlite":
		db, err := sql.Open("sqlite3", *sqliteFile)
		if err != nil {
			glog.Exitf("unable to open sqlite DB %q: %s", *sqliteFile, err)
		}
		exporter = &export.SQLite{
			DB: db,
		}
	case "server":
		exporter = &export.AnalyzerServer{
			Server:          *analyzerServer,
			SendBatchAmount: *analyzerServerRecords,
		}
	default:
		glog.Exitf("%q is not a supported export method, pick one of: csv, sqlite, server", *output)
	}

	// Controller setup
	var opts []sweep.Option
	if *noTune {
		opts = append(opts, sweep.WithoutHardwareTune())
	}
	ncopy := *nframes * *fftSize
	ctrl, err := sweep.New(radio, plan.Centers, *loOffset, *skipInitial, *tuneDelay, ncopy, opts...)
	if err != nil {
		glog.Exit(err)
	}
	if !*continuous {
		// Single sweep: stop at the first segment boundary.
		ctrl.SetExitAfterComplete()
	}

	// Control API
	if *controlListen != "" {
		router := control.NewRouter(ctrl)
		go func() {
			if err := router.Run(*controlListen); err != nil {
				glog.Errorf("control API: %s", err)
			}
		}()
	}

	// Journal plumbing: pipeline -> (optional filter) -> exporter.
	records := make(chan sdr.StepRecord, 1000)
	exportIn := records
	if *journalLowFreq > 0 || *journalHighFreq > 0 {
		high := *journalHighFreq
		if high == 0 {
			high = plan.MaxHz
		}
		filtered := make(chan sdr.StepRecord, 1000)
		go filter.Filter(records, filtered, []filter.Filterer{
			&filter.FreqRange{LowHz: *journalLowFreq, HighHz: high},
		})
		exportIn = filtered
	}
	exportDone := make(chan struct{})
	go func() {
		defer close(exportDone)
		if err := exporter.Write(ctx, exportIn); err != nil {
			glog.Fatal(err)
		}
	}()

	// Run
	p := &pipeline.Pipeline{
		Device:     radio,
		Controller: ctrl,
		Sink:       pipeline.Null{},
		Identifier: *identifier,
		Records:    records,
	}
	if err := p.Run(ctx); err != nil {
		glog.Fatal(err)
	}
	close(records)
	<-exportDone

	glog.Flush()
}
