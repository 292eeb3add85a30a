// Package pipeline wires a radio front-end, the sweep controller and a
// downstream sample sink into a running capture loop, and reports completed
// frequency steps as journal records.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/ohleck/gr-analyzer/sdr"
	"github.com/ohleck/gr-analyzer/sweep"
)

// Sink receives the samples the controller forwards during copy phases.
type Sink interface {
	Consume([]complex64) error
}

// Null discards all forwarded samples.
type Null struct{}

func (Null) Consume([]complex64) error { return nil }

// Counting discards samples but keeps a running total.
type Counting struct {
	n atomic.Int64
}

func (c *Counting) Consume(s []complex64) error {
	c.n.Add(int64(len(s)))
	return nil
}

// Total returns the number of samples consumed so far.
func (c *Counting) Total() int64 { return c.n.Load() }

// Pipeline drives one sweep over one device. Chunk sizes arriving from the
// device are passed to the controller as-is, so the controller sees whatever
// fragmentation the hardware produces.
type Pipeline struct {
	Device     sdr.Device
	Controller *sweep.Controller
	Sink       Sink
	// Identifier tags journal records; defaults to a random UUID.
	Identifier string
	// Records, when set, receives one record per completed frequency step.
	// Sends block, so the consumer must keep up (or buffer).
	Records chan<- sdr.StepRecord
}

// Run streams samples through the controller until the sweep reports done,
// the context is canceled, or the device or controller fails. A sample
// stream that dries up before the sweep completes is an error.
func (p *Pipeline) Run(ctx context.Context) error {
	sink := p.Sink
	if sink == nil {
		sink = Null{}
	}
	if p.Identifier == "" {
		p.Identifier = uuid.NewString()
	}
	if p.Records != nil {
		p.Controller.OnStep = func(si sweep.StepInfo) {
			p.Records <- sdr.StepRecord{
				Identifier:   p.Identifier,
				Source:       p.Device.Name(),
				Segment:      si.Segment,
				StepIndex:    si.StepIndex,
				FreqCenterHz: si.FreqHz,
				LOOffsetHz:   si.LOOffsetHz,
				SettleCount:  si.SettleCount,
				CopyCount:    si.CopyCount,
				Start:        si.Start,
				End:          si.End,
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []complex64, 4)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- p.Device.Stream(ctx, chunks)
	}()

	start := time.Now()
	var pending []complex64
	var out []complex64
	process := func() (bool, error) {
		for len(pending) > 0 {
			if cap(out) < len(pending) {
				out = make([]complex64, len(pending))
			}
			out = out[:len(pending)]
			n, produced, done, err := p.Controller.Process(pending, out)
			if err != nil {
				return false, err
			}
			if produced > 0 {
				if err := sink.Consume(out[:produced]); err != nil {
					return false, fmt.Errorf("pipeline: sink: %w", err)
				}
			}
			pending = pending[n:]
			if done {
				return true, nil
			}
			if n == 0 {
				break
			}
		}
		return false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-chunks:
			pending = append(pending, chunk...)
			done, err := process()
			if err != nil {
				return err
			}
			if done {
				glog.V(1).Infof("sweep %s complete after %s (%d segments)",
					p.Identifier, time.Since(start).Round(time.Millisecond), p.Controller.Status().Segment)
				return nil
			}
		case err := <-streamErr:
			// Flush whatever arrived before the stream ended.
			for {
				select {
				case chunk := <-chunks:
					pending = append(pending, chunk...)
				default:
					done, perr := process()
					if perr != nil {
						return perr
					}
					if done {
						return nil
					}
					if err != nil {
						return fmt.Errorf("pipeline: device stream: %w", err)
					}
					return fmt.Errorf("pipeline: sample stream ended before sweep completion")
				}
			}
		}
	}
}
