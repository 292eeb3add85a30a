// Package sim provides a software stand-in for a radio front-end. It
// synthesizes a complex tone at a configurable chunk size so the sweep
// pipeline can run, and be tested, without hardware attached.
package sim

import (
	"context"
	"math"
	"sync"
)

const SourceName = "sim"

// SDR generates IQ chunks and accepts tune commands. Tune calls are
// recorded so tests can assert on the retune sequence.
type SDR struct {
	// ToneHz is the baseband offset of the synthesized tone.
	ToneHz float64
	// SampleRate in samples/s. Defaults to 2 Msps.
	SampleRate float64
	// ChunkSize is the number of samples per emitted chunk. Defaults to 1024.
	ChunkSize int
	// MaxChunks, when positive, bounds how many chunks Stream emits before
	// returning. Zero streams until the context is canceled.
	MaxChunks int

	mu    sync.Mutex
	tunes []Tune
	phase float64
}

// Tune is one recorded tune command.
type Tune struct {
	CenterHz   float64
	LOOffsetHz float64
}

func (s *SDR) Name() string { return SourceName }

func (s *SDR) Tune(centerHz, loOffsetHz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tunes = append(s.tunes, Tune{CenterHz: centerHz, LOOffsetHz: loOffsetHz})
	return nil
}

// Tunes returns a copy of all tune commands received so far.
func (s *SDR) Tunes() []Tune {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tune, len(s.tunes))
	copy(out, s.tunes)
	return out
}

func (s *SDR) Close() error { return nil }

// Stream emits synthesized chunks until the context is canceled or
// MaxChunks is reached. The tone phase is continuous across chunks.
func (s *SDR) Stream(ctx context.Context, chunks chan<- []complex64) error {
	rate := s.SampleRate
	if rate == 0 {
		rate = 2e6
	}
	size := s.ChunkSize
	if size == 0 {
		size = 1024
	}
	step := 2 * math.Pi * s.ToneHz / rate

	for n := 0; s.MaxChunks == 0 || n < s.MaxChunks; n++ {
		chunk := make([]complex64, size)
		for i := range chunk {
			chunk[i] = complex64(complex(math.Cos(s.phase), math.Sin(s.phase)))
			s.phase += step
		}
		s.phase = math.Mod(s.phase, 2*math.Pi)
		select {
		case chunks <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
