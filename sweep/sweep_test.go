package sweep

import (
	"errors"
	"fmt"
	"testing"
)

type tuneCall struct {
	freqHz     float64
	loOffsetHz float64
}

type fakeTuner struct {
	calls  []tuneCall
	failAt int // 1-based index of the call that should fail, 0 = never
}

func (f *fakeTuner) Tune(centerHz, loOffsetHz float64) error {
	f.calls = append(f.calls, tuneCall{centerHz, loOffsetHz})
	if f.failAt != 0 && len(f.calls) == f.failAt {
		return fmt.Errorf("synth unlocked")
	}
	return nil
}

// ramp returns n distinguishable samples so forwarded output can be mapped
// back to input positions.
func ramp(n int) []complex64 {
	s := make([]complex64, n)
	for i := range s {
		s[i] = complex(float32(i), -float32(i))
	}
	return s
}

// feed pushes input through the controller in chunks of the given size and
// returns everything forwarded plus the total consumed count.
func feed(t *testing.T, c *Controller, input []complex64, chunk int) (out []complex64, consumed int, done bool) {
	t.Helper()
	for consumed < len(input) && !done {
		end := consumed + chunk
		if end > len(input) {
			end = len(input)
		}
		in := input[consumed:end]
		buf := make([]complex64, len(in))
		n, p, d, err := c.Process(in, buf)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		out = append(out, buf[:p]...)
		consumed += n
		done = d
		if n == 0 && !d {
			t.Fatalf("Process consumed nothing and is not done (consumed=%d)", consumed)
		}
	}
	return out, consumed, done
}

func TestNewValidation(t *testing.T) {
	tuner := &fakeTuner{}
	for _, tc := range []struct {
		name  string
		freqs []float64
		ncopy int
		want  error
	}{
		{"empty plan", nil, 4, ErrEmptyPlan},
		{"zero ncopy", []float64{100e6}, 0, ErrNoCopyLen},
		{"negative ncopy", []float64{100e6}, -3, ErrNoCopyLen},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tuner, tc.freqs, 0, 0, 0, tc.ncopy); !errors.Is(err, tc.want) {
				t.Fatalf("New() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewIssuesInitialTune(t *testing.T) {
	tuner := &fakeTuner{}
	if _, err := New(tuner, []float64{100e6, 200e6}, 125e3, 2, 3, 4); err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []tuneCall{{100e6, 125e3}}
	if len(tuner.calls) != 1 || tuner.calls[0] != want[0] {
		t.Fatalf("initial tunes = %v, want %v", tuner.calls, want)
	}
}

// TestSingleCallSegment walks the worked example: freqs [100,200],
// initial delay 2, tune delay 3, ncopy 4, all 18 samples in one call.
func TestSingleCallSegment(t *testing.T) {
	tuner := &fakeTuner{}
	c, err := New(tuner, []float64{100, 200}, 0, 2, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := ramp(18)
	out := make([]complex64, 18)
	consumed, produced, done, err := c.Process(in, out)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if consumed != 18 || produced != 10 || done {
		t.Fatalf("Process = (%d, %d, %v), want (18, 10, false)", consumed, produced, done)
	}

	// 2 settle, copy 2..5 at 100, 3 settle, copy 9..12 at 200, then the
	// wrap retunes to 100 and the last 5 samples are 3 settle + 2 copied.
	wantIdx := []int{2, 3, 4, 5, 9, 10, 11, 12, 16, 17}
	for i, idx := range wantIdx {
		if out[i] != in[idx] {
			t.Errorf("out[%d] = %v, want in[%d] = %v", i, out[i], idx, in[idx])
		}
	}

	// Initial tune plus mid-segment retune plus exactly one at the wrap.
	want := []tuneCall{{100, 0}, {200, 0}, {100, 0}}
	if len(tuner.calls) != len(want) {
		t.Fatalf("tunes = %v, want %v", tuner.calls, want)
	}
	for i := range want {
		if tuner.calls[i] != want[i] {
			t.Fatalf("tunes = %v, want %v", tuner.calls, want)
		}
	}
}

// TestFragmentationInvariance checks that output and tune sequence do not
// depend on how input is chunked across calls.
func TestFragmentationInvariance(t *testing.T) {
	const total = 157
	freqs := []float64{100, 200, 300}

	run := func(chunk int) ([]complex64, []tuneCall) {
		tuner := &fakeTuner{}
		c, err := New(tuner, freqs, 0, 5, 3, 7)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, _, _ := feed(t, c, ramp(total), chunk)
		return out, tuner.calls
	}

	refOut, refTunes := run(total)
	for _, chunk := range []int{1, 2, 3, 5, 11, 64} {
		out, tunes := run(chunk)
		if len(out) != len(refOut) {
			t.Fatalf("chunk %d: produced %d samples, want %d", chunk, len(out), len(refOut))
		}
		for i := range out {
			if out[i] != refOut[i] {
				t.Fatalf("chunk %d: out[%d] = %v, want %v", chunk, i, out[i], refOut[i])
			}
		}
		if len(tunes) != len(refTunes) {
			t.Fatalf("chunk %d: %d tunes, want %d", chunk, len(tunes), len(refTunes))
		}
	}
}

// TestSegmentSampleIdentity checks the per-segment accounting: the first
// segment consumes exactly initialDelay + (n-1)*tuneDelay + n*ncopy samples
// (the initial delay replaces the tune delay for the very first step) and
// forwards exactly n*ncopy of them.
func TestSegmentSampleIdentity(t *testing.T) {
	const (
		initialDelay = 9
		tuneDelay    = 4
		ncopy        = 6
	)
	freqs := []float64{10, 20, 30, 40}
	n := len(freqs)

	tuner := &fakeTuner{}
	c, err := New(tuner, freqs, 0, initialDelay, tuneDelay, ncopy)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SetExitAfterComplete()

	segmentLen := initialDelay + (n-1)*tuneDelay + n*ncopy
	out, consumed, done := feed(t, c, ramp(segmentLen), 13)
	if !done {
		t.Fatalf("sweep not done after %d samples", consumed)
	}
	if consumed != segmentLen {
		t.Fatalf("consumed %d samples, want %d", consumed, segmentLen)
	}
	if len(out) != n*ncopy {
		t.Fatalf("forwarded %d samples, want %d", len(out), n*ncopy)
	}
}

func TestExitOnlyAtSegmentBoundary(t *testing.T) {
	tuner := &fakeTuner{}
	c, err := New(tuner, []float64{100, 200}, 0, 2, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Consume into the middle of the first copy phase, then request exit.
	in := ramp(100)
	out := make([]complex64, 100)
	n, p, done, err := c.Process(in[:4], out)
	if err != nil || done {
		t.Fatalf("Process = (%d, %d, %v, %v)", n, p, done, err)
	}
	c.SetExitAfterComplete()

	// The rest of the segment (9 more samples) must still complete and
	// retune mid-segment as usual.
	n, p, done, err = c.Process(in[4:13], out)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n != 9 || !done {
		t.Fatalf("Process = (%d, %d, %v), want (9, _, true)", n, p, done)
	}
	// Initial tune + the single mid-segment retune; none at the wrap.
	if len(tuner.calls) != 2 {
		t.Fatalf("tunes = %v, want initial + one mid-segment retune", tuner.calls)
	}

	// The controller stays done and consumes nothing further.
	n, p, done, err = c.Process(in[13:], out)
	if n != 0 || p != 0 || !done || err != nil {
		t.Fatalf("Process after done = (%d, %d, %v, %v), want (0, 0, true, nil)", n, p, done, err)
	}
}

func TestClearExitResumesSweep(t *testing.T) {
	tuner := &fakeTuner{}
	c, err := New(tuner, []float64{100, 200}, 0, 2, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SetExitAfterComplete()
	if !c.ExitAfterComplete() {
		t.Fatal("exit flag not set")
	}
	c.ClearExitAfterComplete()
	if c.ExitAfterComplete() {
		t.Fatal("exit flag not cleared")
	}

	// Two full segments worth of input keep flowing: no step skipped, a
	// retune issued at each boundary including both wraps.
	const twoSegments = 2 + 4 + 3 + 4 + (3 + 4 + 3 + 4)
	out, consumed, done := feed(t, c, ramp(twoSegments), 5)
	if done {
		t.Fatal("sweep reported done with exit flag cleared")
	}
	if consumed != twoSegments || len(out) != 16 {
		t.Fatalf("consumed %d / forwarded %d, want %d / 16", consumed, len(out), twoSegments)
	}
	if c.Status().Segment != 2 {
		t.Fatalf("segments = %d, want 2", c.Status().Segment)
	}
}

// TestNoHardwareTuneMode checks that suppressing device tunes leaves the
// state machine bit-identical given identical chunking.
func TestNoHardwareTuneMode(t *testing.T) {
	run := func(opts ...Option) []complex64 {
		tuner := &fakeTuner{}
		c, err := New(tuner, []float64{100, 200, 300}, 0, 2, 3, 4, opts...)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, _, _ := feed(t, c, ramp(90), 7)
		if len(opts) > 0 && len(tuner.calls) != 0 {
			t.Fatalf("tune calls issued in no-hardware mode: %v", tuner.calls)
		}
		return out
	}

	hw := run()
	sw := run(WithoutHardwareTune())
	if len(hw) != len(sw) {
		t.Fatalf("forwarded %d samples without hardware, want %d", len(sw), len(hw))
	}
	for i := range hw {
		if hw[i] != sw[i] {
			t.Fatalf("out[%d] = %v without hardware, want %v", i, sw[i], hw[i])
		}
	}
}

func TestZeroInputIsNoop(t *testing.T) {
	c, err := New(&fakeTuner{}, []float64{100}, 0, 2, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, p, done, err := c.Process(nil, nil)
	if n != 0 || p != 0 || done || err != nil {
		t.Fatalf("Process(nil) = (%d, %d, %v, %v), want (0, 0, false, nil)", n, p, done, err)
	}
}

func TestTuneErrorIsFatal(t *testing.T) {
	tuner := &fakeTuner{failAt: 2} // initial tune fine, first retune fails
	c, err := New(tuner, []float64{100, 200}, 0, 0, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := ramp(20)
	out := make([]complex64, 20)
	_, _, _, err = c.Process(in, out)
	var te *TuneError
	if !errors.As(err, &te) {
		t.Fatalf("Process error = %v, want *TuneError", err)
	}
	if te.FreqHz != 200 {
		t.Fatalf("failed tune frequency = %f, want 200", te.FreqHz)
	}
}

func TestTuneErrorAtConstruction(t *testing.T) {
	tuner := &fakeTuner{failAt: 1}
	c, err := New(tuner, []float64{100}, 0, 0, 0, 1)
	if c != nil {
		t.Fatal("controller returned despite tune failure")
	}
	var te *TuneError
	if !errors.As(err, &te) {
		t.Fatalf("New error = %v, want *TuneError", err)
	}
}

func TestOutputBufferSmallerThanInput(t *testing.T) {
	tuner := &fakeTuner{}
	c, err := New(tuner, []float64{100}, 0, 0, 0, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := ramp(8)
	out := make([]complex64, 3)
	n, p, done, err := c.Process(in, out)
	if err != nil || done {
		t.Fatalf("Process = (%d, %d, %v, %v)", n, p, done, err)
	}
	if n != 3 || p != 3 {
		t.Fatalf("Process = (%d, %d), want (3, 3) when out has room for 3", n, p)
	}
	// Remaining budget flows once there is room again.
	out = make([]complex64, 8)
	n, p, _, err = c.Process(in[3:], out)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n != 5 || p != 5 {
		t.Fatalf("Process = (%d, %d), want (5, 5)", n, p)
	}
}

func TestOnStepReporting(t *testing.T) {
	tuner := &fakeTuner{}
	c, err := New(tuner, []float64{100, 200}, 50, 2, 3, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var steps []StepInfo
	c.OnStep = func(si StepInfo) { steps = append(steps, si) }

	// One full segment plus the next settle and copy phase.
	feed(t, c, ramp(2+4+3+4+3+4), 6)

	want := []struct {
		segment, idx           int64
		freq                   float64
		settleCount, copyCount int64
	}{
		{0, 0, 100, 2, 4},
		{0, 1, 200, 3, 4},
		{1, 0, 100, 3, 4},
	}
	if len(steps) != len(want) {
		t.Fatalf("got %d step reports, want %d", len(steps), len(want))
	}
	for i, w := range want {
		s := steps[i]
		if s.Segment != w.segment || s.StepIndex != w.idx || s.FreqHz != w.freq ||
			s.SettleCount != w.settleCount || s.CopyCount != w.copyCount {
			t.Errorf("step %d = %+v, want %+v", i, s, w)
		}
		if s.LOOffsetHz != 50 {
			t.Errorf("step %d LO offset = %f, want 50", i, s.LOOffsetHz)
		}
	}
}
