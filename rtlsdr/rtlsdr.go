// Package rtlsdr adapts an RTL2832U dongle to the sdr.Device interface
// using the librtlsdr bindings.
package rtlsdr

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	rtl "github.com/jpoirier/gortlsdr"
)

const SourceName = "rtlsdr"

// readChunkBytes is the ReadAsync buffer length in bytes (two bytes per
// IQ sample). librtlsdr requires a multiple of 512.
const readChunkBytes = 16384

// SDR wraps one RTL-SDR dongle.
type SDR struct {
	// DeviceIndex selects the dongle when several are attached.
	DeviceIndex int
	// SampleRate in samples/s.
	SampleRate int

	mu  sync.Mutex
	dev *rtl.Context
}

func (s *SDR) Name() string { return SourceName }

// Open claims the dongle and applies sample rate and automatic gain.
func (s *SDR) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return nil
	}
	if rtl.GetDeviceCount() == 0 {
		return fmt.Errorf("rtlsdr: no device found")
	}
	dev, err := rtl.Open(s.DeviceIndex)
	if err != nil {
		return fmt.Errorf("rtlsdr: open device %d: %w", s.DeviceIndex, err)
	}
	if err := dev.SetSampleRate(s.SampleRate); err != nil {
		dev.Close()
		return fmt.Errorf("rtlsdr: set sample rate %d: %w", s.SampleRate, err)
	}
	if err := dev.SetTunerGainMode(false); err != nil {
		dev.Close()
		return fmt.Errorf("rtlsdr: enable auto gain: %w", err)
	}
	if err := dev.ResetBuffer(); err != nil {
		dev.Close()
		return fmt.Errorf("rtlsdr: reset buffer: %w", err)
	}
	s.dev = dev
	return nil
}

// Tune retunes the dongle. The E4000/R820T tuners have no LO offset knob,
// so the offset is folded into the center frequency.
func (s *SDR) Tune(centerHz, loOffsetHz float64) error {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("rtlsdr: device not open")
	}
	freq := int(centerHz + loOffsetHz)
	if err := dev.SetCenterFreq(freq); err != nil {
		return fmt.Errorf("rtlsdr: set center freq %d: %w", freq, err)
	}
	glog.V(2).Infof("rtlsdr: tuned to %d Hz", freq)
	return nil
}

// Stream reads interleaved uint8 IQ from the dongle and emits complex64
// chunks until ctx is canceled or the device read loop fails.
func (s *SDR) Stream(ctx context.Context, chunks chan<- []complex64) error {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("rtlsdr: device not open")
	}

	done := make(chan error, 1)
	cb := func(buf []byte) {
		chunk := make([]complex64, len(buf)/2)
		for i := range chunk {
			// Offset binary: 127.5 is zero.
			re := (float32(buf[2*i]) - 127.5) / 127.5
			im := (float32(buf[2*i+1]) - 127.5) / 127.5
			chunk[i] = complex(re, im)
		}
		select {
		case chunks <- chunk:
		case <-ctx.Done():
		}
	}
	go func() {
		done <- dev.ReadAsync(cb, nil, 0, readChunkBytes)
	}()

	select {
	case <-ctx.Done():
		if err := dev.CancelAsync(); err != nil {
			glog.Warningf("rtlsdr: cancel async read: %s", err)
		}
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("rtlsdr: async read: %w", err)
		}
		return nil
	}
}

func (s *SDR) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	return err
}
