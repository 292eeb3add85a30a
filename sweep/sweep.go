// Package sweep drives a radio front-end through an ordered list of center
// frequencies while samples stream through it. It decides when to retune and
// when the surrounding pipeline may stop; it does not touch sample contents.
package sweep

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrEmptyPlan is returned by New when no center frequencies are given.
	ErrEmptyPlan = errors.New("sweep: frequency plan is empty")
	// ErrNoCopyLen is returned by New when fewer than one sample per step
	// is requested, which would make the sweep unable to progress.
	ErrNoCopyLen = errors.New("sweep: samples per step must be >= 1")
)

// TuneError wraps a device failure during a retune. It is fatal for the
// sweep: sample timing has already advanced, so a retry would leave forwarded
// samples attributed to the wrong frequency.
type TuneError struct {
	FreqHz float64
	Err    error
}

func (e *TuneError) Error() string {
	return fmt.Sprintf("sweep: tune to %.0f Hz failed: %s", e.FreqHz, e.Err)
}

func (e *TuneError) Unwrap() error { return e.Err }

// Tuner is the single operation the controller needs from the front-end.
// The call is assumed non-blocking; hardware settle time is modeled by the
// tune delay in samples, never by waiting on this call.
type Tuner interface {
	Tune(centerHz, loOffsetHz float64) error
}

// StepInfo is handed to the OnStep hook after each completed frequency step.
type StepInfo struct {
	Segment     int64
	StepIndex   int64
	FreqHz      float64
	LOOffsetHz  float64
	SettleCount int64
	CopyCount   int64
	Start       time.Time
	End         time.Time
}

type phase int

const (
	settling phase = iota
	copying
)

// Status is a point-in-time snapshot of the sweep position, safe to read
// concurrently with Process.
type Status struct {
	StepIndex int64
	Segment   int64
	FreqHz    float64
	Done      bool
}

// Controller walks the frequency plan. Each step consumes a settling period
// (dropped) followed by a copy period (forwarded), retuning the device
// between steps. One pass over the plan is a segment; the sweep loops over
// segments until an exit is requested, which is honored only at segment
// boundaries so a started segment always completes.
//
// Process must be driven from a single goroutine. The exit flag and Status
// are safe from other goroutines.
type Controller struct {
	tuner        Tuner
	freqs        []float64
	loOffsetHz   float64
	initialDelay int
	tuneDelay    int
	ncopy        int
	noTune       bool

	// OnStep, when set, is called synchronously from Process after every
	// completed frequency step. Must not call back into the controller.
	OnStep func(StepInfo)

	phase        phase
	settleTarget int
	settled      int
	copied       int
	stepStart    time.Time

	// Mirrored atomically for Status readers.
	idx      atomic.Int64
	segments atomic.Int64
	done     atomic.Bool
	exit     atomic.Bool
}

// Option adjusts controller construction.
type Option func(*Controller)

// WithoutHardwareTune suppresses the device tune call while leaving the
// state machine untouched. Sample counting and phase transitions are
// identical to normal operation, which makes the controller deterministic
// without hardware attached.
func WithoutHardwareTune() Option {
	return func(c *Controller) { c.noTune = true }
}

// New builds a controller positioned at frequency index 0 in the
// initial-delay settling phase with the exit flag cleared. The initial tune
// to freqs[0] is issued here; a device failure aborts construction.
//
// The tuner reference is borrowed: the caller keeps ownership and must keep
// the device alive for the controller's lifetime, and must not retune it
// while a sweep is active.
func New(tuner Tuner, freqs []float64, loOffsetHz float64, initialDelay, tuneDelay, ncopy int, opts ...Option) (*Controller, error) {
	if len(freqs) == 0 {
		return nil, ErrEmptyPlan
	}
	if ncopy < 1 {
		return nil, ErrNoCopyLen
	}
	c := &Controller{
		tuner:        tuner,
		freqs:        freqs,
		loOffsetHz:   loOffsetHz,
		initialDelay: initialDelay,
		tuneDelay:    tuneDelay,
		ncopy:        ncopy,
		phase:        settling,
		settleTarget: initialDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.tune(freqs[0]); err != nil {
		return nil, err
	}
	return c, nil
}

// ExitAfterComplete reports whether the sweep will stop at the next segment
// boundary.
func (c *Controller) ExitAfterComplete() bool { return c.exit.Load() }

// SetExitAfterComplete requests a stop at the end of the current segment.
// Idempotent; the in-progress segment always completes first.
func (c *Controller) SetExitAfterComplete() { c.exit.Store(true) }

// ClearExitAfterComplete withdraws a stop request. Idempotent and callable
// mid-sweep; it does not otherwise disturb the sweep position.
func (c *Controller) ClearExitAfterComplete() { c.exit.Store(false) }

// Status returns the current sweep position.
func (c *Controller) Status() Status {
	idx := c.idx.Load()
	return Status{
		StepIndex: idx,
		Segment:   c.segments.Load(),
		FreqHz:    c.freqs[idx],
		Done:      c.done.Load(),
	}
}

// NumFrequencies returns the length of the frequency plan.
func (c *Controller) NumFrequencies() int { return len(c.freqs) }

// Process consumes up to len(in) freshly arrived samples and forwards the
// ones captured during copy phases into out, preserving order. It returns
// how many input samples were consumed, how many were produced into out, and
// whether the sweep finished (only ever at a segment boundary with an exit
// requested). Zero-length input is a no-op.
//
// A phase boundary inside a single call is handled without losing or
// double-processing samples: leftover input budget continues in the next
// phase within the same call. Production additionally stops early if out has
// no room left.
func (c *Controller) Process(in, out []complex64) (consumed, produced int, done bool, err error) {
	if c.done.Load() {
		return 0, 0, true, nil
	}
	if c.stepStart.IsZero() && len(in) > 0 {
		c.stepStart = time.Now()
	}
	for consumed < len(in) {
		switch c.phase {
		case settling:
			n := c.settleTarget - c.settled
			if rem := len(in) - consumed; n > rem {
				n = rem
			}
			c.settled += n
			consumed += n
			if c.settled < c.settleTarget {
				return consumed, produced, false, nil
			}
			c.phase = copying
			c.copied = 0

		case copying:
			n := c.ncopy - c.copied
			if rem := len(in) - consumed; n > rem {
				n = rem
			}
			if room := len(out) - produced; n > room {
				n = room
			}
			if n == 0 && c.copied < c.ncopy {
				// Out of output room mid-step.
				return consumed, produced, false, nil
			}
			copy(out[produced:produced+n], in[consumed:consumed+n])
			consumed += n
			produced += n
			c.copied += n
			if c.copied < c.ncopy {
				return consumed, produced, false, nil
			}
			stop, err := c.finishStep()
			if err != nil {
				return consumed, produced, false, err
			}
			if stop {
				return consumed, produced, true, nil
			}
		}
	}
	return consumed, produced, false, nil
}

// finishStep records the completed step, advances the frequency index
// (wrapping into a new segment when the plan is exhausted) and re-arms the
// settling phase for the next step. When the segment wrapped with an exit
// pending the sweep is marked done instead: no retune, no re-arm. The exit
// flag is sampled exactly once so a concurrent clear cannot split the
// decision.
func (c *Controller) finishStep() (stop bool, err error) {
	idx := c.idx.Load()
	if c.OnStep != nil {
		settled := int64(c.settled)
		c.OnStep(StepInfo{
			Segment:     c.segments.Load(),
			StepIndex:   idx,
			FreqHz:      c.freqs[idx],
			LOOffsetHz:  c.loOffsetHz,
			SettleCount: settled,
			CopyCount:   int64(c.copied),
			Start:       c.stepStart,
			End:         time.Now(),
		})
	}

	idx++
	wrapped := false
	if idx == int64(len(c.freqs)) {
		idx = 0
		wrapped = true
		c.segments.Add(1)
	}
	c.idx.Store(idx)
	if wrapped && c.exit.Load() {
		c.done.Store(true)
		return true, nil
	}

	if err := c.tune(c.freqs[idx]); err != nil {
		return false, err
	}
	c.phase = settling
	c.settleTarget = c.tuneDelay
	c.settled = 0
	c.copied = 0
	c.stepStart = time.Now()
	return false, nil
}

func (c *Controller) tune(freqHz float64) error {
	if c.noTune {
		return nil
	}
	if err := c.tuner.Tune(freqHz, c.loOffsetHz); err != nil {
		return &TuneError{FreqHz: freqHz, Err: err}
	}
	return nil
}
