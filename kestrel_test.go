package kestrel

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/kerr"
	"github.com/kestrelaudio/kestrel/internal/sound"
)

// fakeDriver is a no-op Driver: Start discards the pull function, so
// Backend.Process never runs in these tests and nothing drains the
// command queue.
type fakeDriver struct {
	sampleRate int
	channels   int
	closed     bool
}

func (d *fakeDriver) SampleRate() int { return d.sampleRate }
func (d *fakeDriver) Channels() int   { return d.channels }
func (d *fakeDriver) Start(pull func(out []float32)) error { return nil }
func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(&fakeDriver{sampleRate: 100, channels: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNewRejectsNonStereoDriver(t *testing.T) {
	_, err := New(&fakeDriver{sampleRate: 100, channels: 1})
	if err == nil {
		t.Fatalf("expected ErrUnsupportedChannelConfiguration for a mono driver")
	}
}

func TestPlaySoundAndMetronomeCommandsAreAccepted(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	samples := make([]frame.Frame, 1000)
	for i := range samples {
		samples[i] = frame.Frame{Left: 1, Right: 1}
	}
	sid, err := m.LoadDecodedSound(sound.New(100, samples, sound.Metadata{}))
	if err != nil {
		t.Fatalf("LoadDecodedSound: %v", err)
	}
	if _, err := m.PlaySound(sid, DefaultInstanceSettings()); err != nil {
		t.Fatalf("PlaySound: %v", err)
	}

	if err := m.StartMetronome(); err != nil {
		t.Fatalf("StartMetronome: %v", err)
	}
	if err := m.SetMetronomeTempo(60); err != nil {
		t.Fatalf("SetMetronomeTempo: %v", err)
	}
}

func TestCommandQueueFullIsReported(t *testing.T) {
	m, err := New(&fakeDriver{sampleRate: 100, channels: 2}, WithMaxInstances(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	// Nothing drains the default command queue (100 entries, rounded up to
	// 128 slots), so pushing past that forces Push to fail.
	var lastErr error
	for i := 0; i < 10000; i++ {
		_, lastErr = m.PlaySound(sound.NewId(), DefaultInstanceSettings())
		if lastErr != nil {
			break
		}
	}
	if lastErr == nil {
		t.Fatalf("expected CommandQueueFull once the command queue saturates")
	}
}

func TestLoadSoundReportsIoErrorOnMissingFile(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	decoderCalled := false
	decoder := func(r io.Reader) (uint32, []frame.Frame, error) {
		decoderCalled = true
		return 0, nil, nil
	}
	_, err := m.LoadSound(filepath.Join(t.TempDir(), "missing.ogg"), decoder, sound.Metadata{})
	if err == nil {
		t.Fatalf("expected an error for a nonexistent path")
	}
	var ioErr *kerr.IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *kerr.IoError, got %T: %v", err, err)
	}
	if decoderCalled {
		t.Fatalf("decoder should not run when the file cannot be opened")
	}
}

func TestLoadSoundReportsDecodeErrorOnBadBitstream(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	path := filepath.Join(t.TempDir(), "tone.raw")
	if err := os.WriteFile(path, []byte("not a real bitstream"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	wantErr := errors.New("bad magic bytes")
	decoder := func(r io.Reader) (uint32, []frame.Frame, error) {
		return 0, nil, wantErr
	}
	_, err := m.LoadSound(path, decoder, sound.Metadata{})
	if err == nil {
		t.Fatalf("expected an error for a bitstream the decoder rejects")
	}
	var decErr *kerr.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *kerr.DecodeError, got %T: %v", err, err)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected DecodeError to unwrap to the decoder's error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestCloseJoinsWatchdogGoroutine(t *testing.T) {
	m := newTestManager(t)
	done := make(chan error, 1)
	go func() { done <- m.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return within 2s of the quit signal")
	}
}
