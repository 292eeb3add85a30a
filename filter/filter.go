// Package filter drops journal records on their way to an exporter.
package filter

import "github.com/ohleck/gr-analyzer/sdr"

type Filterer interface {
	ShouldIgnore(*sdr.StepRecord) bool
}

func Filter(input <-chan sdr.StepRecord, output chan<- sdr.StepRecord, filters []Filterer) error {
	for r := range input {
		skip := false
		for _, f := range filters {
			if f.ShouldIgnore(&r) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		output <- r
	}
	close(output)
	return nil
}

// FreqRange keeps only steps whose center frequency lies inside the range.
type FreqRange struct {
	LowHz  float64
	HighHz float64
}

func (f *FreqRange) ShouldIgnore(r *sdr.StepRecord) bool {
	if r.FreqCenterHz < f.LowHz {
		return true
	}
	if r.FreqCenterHz > f.HighHz {
		return true
	}
	return false
}

// Segments keeps only every Nth segment, thinning long continuous runs.
type Segments struct {
	KeepEvery int64
}

func (f *Segments) ShouldIgnore(r *sdr.StepRecord) bool {
	if f.KeepEvery <= 1 {
		return false
	}
	return r.Segment%f.KeepEvery != 0
}
