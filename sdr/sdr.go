package sdr

import (
	"context"
	"time"
)

// StepRecord describes one completed frequency step of a sweep. It carries
// timing and count metadata only, never the captured samples.
type StepRecord struct {
	// Metadata
	Identifier string
	Source     string

	// Sweep position
	Segment   int64
	StepIndex int64

	// Radio data
	FreqCenterHz float64
	LOOffsetHz   float64

	// Sample accounting
	SettleCount int64
	CopyCount   int64

	Start time.Time
	End   time.Time
}

// Device is the radio front-end boundary. Tune is fire-and-forget: settling
// behavior is modeled downstream in sample counts, not by blocking here.
type Device interface {
	Name() string
	Tune(centerHz, loOffsetHz float64) error
	// Stream delivers chunks of complex baseband samples until ctx is
	// canceled or the device fails. Chunk sizes are device dependent and
	// callers must not rely on them.
	Stream(ctx context.Context, chunks chan<- []complex64) error
	Close() error
}
