package sweep

import (
	"fmt"
	"math"
)

// PlanConfig describes the spectrum region to sweep. The FFT size and
// overlap only shape the plan geometry: the step between center frequencies
// is reduced so that the outer overlap fraction of each tuning can be
// discarded by whatever consumes the samples.
type PlanConfig struct {
	// CenterHz is the center of the overall span.
	CenterHz float64
	// SpanHz is the total width to cover. Zero means "whatever one tuning
	// covers", i.e. a single center frequency.
	SpanHz float64
	// SampleRate is the device sample rate in samples/s.
	SampleRate float64
	// FFTSize is the number of bins a tuning is divided into for plan
	// rounding. Must be a positive multiple of 32.
	FFTSize int
	// Overlap is the fraction (0 <= o < 1) of each tuning considered
	// unusable due to filter rolloff and overlapped with its neighbors.
	Overlap float64
}

func (c PlanConfig) validate() error {
	if c.CenterHz <= 0 {
		return fmt.Errorf("sweep: center frequency must be positive, got %f", c.CenterHz)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sweep: sample rate must be positive, got %f", c.SampleRate)
	}
	if c.FFTSize <= 0 || c.FFTSize%32 != 0 {
		return fmt.Errorf("sweep: fft size must be a positive multiple of 32, got %d", c.FFTSize)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("sweep: overlap must be in [0,1), got %f", c.Overlap)
	}
	if c.SpanHz < 0 {
		return fmt.Errorf("sweep: span must be non-negative, got %f", c.SpanHz)
	}
	return nil
}

// Plan is an ordered, immutable list of center frequencies covering a span,
// plus the geometry it was derived from.
type Plan struct {
	// Centers are the frequencies to tune, in sweep order.
	Centers []float64
	// DeltaF is the width of one plan bin in Hz.
	DeltaF float64
	// FreqStep is the spacing between consecutive center frequencies.
	FreqStep float64
	// SpanHz is the effective span (may differ from the request when it is
	// widened to a whole number of steps or defaulted to one tuning).
	SpanHz float64
	// MinHz and MaxHz bound the covered region.
	MinHz float64
	MaxHz float64
}

// NewPlan computes the center frequencies needed to cover the configured
// span. The step between tunings is the sample rate reduced by the overlap
// fraction and rounded to a whole number of bins, so neighboring tunings
// share their rolloff-affected edges.
func NewPlan(cfg PlanConfig) (*Plan, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	deltaF := cfg.SampleRate / float64(cfg.FFTSize)
	usable := 1.0 - cfg.Overlap
	freqStep := math.Round(cfg.SampleRate*usable/deltaF) * deltaF

	span := cfg.SpanHz
	if span == 0 {
		span = freqStep
	}

	minHz := cfg.CenterHz - span/2 + deltaF/2
	maxHz := minHz + span - deltaF

	minFc := minHz + freqStep/2
	var centers []float64
	if span <= freqStep {
		centers = []float64{minFc}
	} else {
		nSteps := int(math.Floor(span / freqStep))
		for i := 0; i <= nSteps; i++ {
			centers = append(centers, minFc+float64(i)*freqStep)
		}
	}

	return &Plan{
		Centers:  centers,
		DeltaF:   deltaF,
		FreqStep: freqStep,
		SpanHz:   span,
		MinHz:    minHz,
		MaxHz:    maxHz,
	}, nil
}
