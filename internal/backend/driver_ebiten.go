package backend

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// EbitenDriver is the concrete Driver (spec.md §6 host audio driver)
// built on ebiten/v2/audio, the same pull-based stream wrapping the
// teacher's internal/audio.Player uses. ctx.NewPlayerF32 always
// negotiates exactly two float32 channels, so the
// UnsupportedChannelConfiguration case from §6 cannot occur through this
// driver; kestrel.New's rejection of a non-stereo driver is tested in
// kestrel_test.go with a driver double that reports one channel.
type EbitenDriver struct {
	sampleRate int
	ctx        *ebitaudio.Context
	player     *ebitaudio.Player
	reader     *pullReader
}

func NewEbitenDriver(sampleRate int) (*EbitenDriver, error) {
	ctx, err := sharedEbitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	return &EbitenDriver{sampleRate: sampleRate, ctx: ctx}, nil
}

func (d *EbitenDriver) SampleRate() int { return d.sampleRate }
func (d *EbitenDriver) Channels() int   { return 2 }

// Start begins pulling stereo float32 frames from pull and feeding them
// to the device. pull is expected to be Backend.Process.
func (d *EbitenDriver) Start(pull func(out []float32)) error {
	d.reader = &pullReader{pull: pull}
	player, err := d.ctx.NewPlayerF32(d.reader)
	if err != nil {
		return err
	}
	d.player = player
	d.player.Play()
	return nil
}

func (d *EbitenDriver) Close() error {
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	return d.player.Close()
}

var (
	ebitenContextOnce sync.Once
	ebitenContext     *ebitaudio.Context
	ebitenContextErr  error
	ebitenSampleRate  int
)

// sharedEbitenContext mirrors the teacher's internal/audio.sharedAudioContext:
// ebiten permits only one audio.Context process-wide.
func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenContextOnce.Do(func() {
		ebitenSampleRate = sampleRate
		ebitenContext = ebitaudio.NewContext(sampleRate)
	})
	if ebitenContextErr != nil {
		return nil, ebitenContextErr
	}
	if ebitenSampleRate != sampleRate {
		return nil, fmt.Errorf("kestrel: audio context already initialized at %d Hz (requested %d Hz)", ebitenSampleRate, sampleRate)
	}
	return ebitenContext, nil
}

// pullReader adapts a (out []float32) pull callback into the io.Reader
// ebiten's NewPlayerF32 wants, the same shape as the teacher's
// StreamReader wrapping a SampleSource (internal/audio/stream.go).
type pullReader struct {
	mu   sync.Mutex
	pull func(out []float32)
	buf  []float32
}

func (r *pullReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8 // 2 channels * 4 bytes
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.pull(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *pullReader) Close() error { return nil }
