// Package kestrel implements a real-time, dual-thread audio engine: a
// control-side Manager façade and an audio-thread Backend connected by
// lock-free SPSC channels (spec.md §1, §4.7).
package kestrel

import (
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelaudio/kestrel/internal/backend"
	"github.com/kestrelaudio/kestrel/internal/command"
	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/instance"
	"github.com/kestrelaudio/kestrel/internal/kerr"
	"github.com/kestrelaudio/kestrel/internal/sequence"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tempo"
	"github.com/kestrelaudio/kestrel/internal/tween"
)

// Re-export the value types control-side callers need, so they never
// have to import the internal packages directly.
type (
	SoundId         = sound.Id
	InstanceId      = instance.Id
	SequenceId      = sequence.Id
	SequenceHandle  = sequence.Handle
	InstanceSettings = instance.Settings
	Tween           = tween.Tween
	Event           = command.Event
	MetronomeIntervalPassed = command.MetronomeIntervalPassed
	CustomEvent     = command.Custom
	Sequence        = sequence.Sequence
)

func NewSequence() *Sequence { return sequence.New() }

func DefaultInstanceSettings() InstanceSettings { return instance.DefaultSettings() }

// Decoder parses an already-opened bitstream; Kestrel ships no sample
// decoder implementation (spec.md §1 Non-goals, §6). LoadSound owns the
// file I/O itself (opening path is an IoError, not a DecodeError) and
// only hands decoder the opened file for bitstream parsing.
type Decoder func(r io.Reader) (sampleRate uint32, frames []frame.Frame, err error)

// AudioManagerSettings configures a Manager at construction (spec.md §6).
type AudioManagerSettings struct {
	MaxSounds         int
	MaxInstances      int
	MaxSequences      int
	CommandQueueSize  int
	EventQueueSize    int
	ReclaimQueueSize  int
	MetronomeSettings tempo.Settings
}

func DefaultAudioManagerSettings() AudioManagerSettings {
	bs := backend.DefaultSettings()
	return AudioManagerSettings{
		MaxSounds:         bs.MaxSounds,
		MaxInstances:      bs.MaxInstances,
		MaxSequences:      bs.MaxSequences,
		CommandQueueSize:  bs.CommandQueueSize,
		EventQueueSize:    bs.EventQueueSize,
		ReclaimQueueSize:  bs.ReclaimQueueSize,
		MetronomeSettings: bs.MetronomeSettings,
	}
}

// ManagerOption customises AudioManagerSettings at construction, the
// same functional-option shape the teacher uses for PlayerOption.
type ManagerOption func(*AudioManagerSettings)

func WithMaxSounds(n int) ManagerOption {
	return func(s *AudioManagerSettings) { s.MaxSounds = n }
}

func WithMaxInstances(n int) ManagerOption {
	return func(s *AudioManagerSettings) { s.MaxInstances = n }
}

func WithMaxSequences(n int) ManagerOption {
	return func(s *AudioManagerSettings) { s.MaxSequences = n }
}

func WithMetronomeSettings(settings tempo.Settings) ManagerOption {
	return func(s *AudioManagerSettings) { s.MetronomeSettings = settings }
}

func (s AudioManagerSettings) toBackendSettings() backend.Settings {
	return backend.Settings{
		MaxSounds:         s.MaxSounds,
		MaxInstances:      s.MaxInstances,
		MaxSequences:      s.MaxSequences,
		CommandQueueSize:  s.CommandQueueSize,
		EventQueueSize:    s.EventQueueSize,
		ReclaimQueueSize:  s.ReclaimQueueSize,
		MetronomeSettings: s.MetronomeSettings,
	}
}

// Manager is the control-side façade (spec.md §4.7). Every public method
// is a thin wrapper that constructs a Command and pushes it onto the
// lock-free channel the Backend drains; none of them touch the audio
// thread's state directly.
type Manager struct {
	mu      sync.Mutex
	backend *backend.Backend
	driver  backend.Driver
	group   *errgroup.Group
	closed  bool
}

// New builds a Backend at driver's sample rate and starts driver pulling
// audio from it on the driver's own callback thread (spec.md §4.7).
// driver must report exactly two channels; anything else is
// ErrUnsupportedChannelConfiguration (spec.md §6).
func New(driver backend.Driver, opts ...ManagerOption) (*Manager, error) {
	if driver.Channels() != 2 {
		return nil, kerr.ErrUnsupportedChannelConfiguration
	}
	settings := DefaultAudioManagerSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	b := backend.New(uint32(driver.SampleRate()), settings.toBackendSettings())
	if err := driver.Start(b.Process); err != nil {
		return nil, err
	}

	// Real audio pull happens on the driver's own callback thread (owned
	// by the driver, not this goroutine). This watchdog goroutine, run in
	// a golang.org/x/sync/errgroup group (SPEC_FULL.md §5), is what
	// Close's quit signal joins; the real-time callback thread itself is
	// never joined.
	group := &errgroup.Group{}
	group.Go(func() error {
		for !b.ShouldQuit() {
			time.Sleep(quitPollInterval)
		}
		return nil
	})

	return &Manager{backend: b, driver: driver, group: group}, nil
}

const quitPollInterval = 5 * time.Millisecond

func (m *Manager) push(cmd command.Command) error {
	if !m.backend.Commands().Push(cmd) {
		return kerr.ErrCommandQueueFull
	}
	return nil
}

// LoadSound opens path itself (an open failure is an IoError, not a
// DecodeError), hands the opened file to decoder for bitstream parsing,
// and hands the resulting Sound to the audio thread under a freshly
// allocated id (spec.md §4.2, §6).
func (m *Manager) LoadSound(path string, decoder Decoder, meta sound.Metadata) (SoundId, error) {
	f, err := os.Open(path)
	if err != nil {
		return SoundId{}, &kerr.IoError{Path: path, Err: err}
	}
	defer f.Close()

	sampleRate, frames, err := decoder(f)
	if err != nil {
		return SoundId{}, &kerr.DecodeError{Path: path, Err: err}
	}

	id := sound.NewId()
	return id, m.push(command.LoadSound{Id: id, Sound: sound.New(sampleRate, frames, meta)})
}

// LoadDecodedSound hands already-decoded samples to the audio thread
// under a freshly allocated id, the supported entry point for callers
// who don't go through a Decoder (spec.md §6).
func (m *Manager) LoadDecodedSound(snd sound.Sound) (SoundId, error) {
	id := sound.NewId()
	return id, m.push(command.LoadSound{Id: id, Sound: snd})
}

func (m *Manager) UnloadSound(id SoundId) error {
	return m.push(command.UnloadSound{Id: id})
}

// PlaySound starts a new instance of id and returns the InstanceId the
// caller uses to address it afterwards.
func (m *Manager) PlaySound(soundID SoundId, settings InstanceSettings) (InstanceId, error) {
	id := instance.NewId()
	return id, m.push(command.PlayInstance{SoundId: soundID, Instance: id, Settings: settings})
}

func (m *Manager) SetInstanceVolume(id InstanceId, volume float64, tw *Tween) error {
	return m.push(command.SetVolume{Instance: id, Volume: volume, Tween: tw})
}

func (m *Manager) SetInstancePitch(id InstanceId, pitch float64, tw *Tween) error {
	return m.push(command.SetPitch{Instance: id, Pitch: pitch, Tween: tw})
}

func (m *Manager) PauseInstance(id InstanceId, tw *Tween) error {
	return m.push(command.Pause{Instance: id, Tween: tw})
}

func (m *Manager) ResumeInstance(id InstanceId, tw *Tween) error {
	return m.push(command.Resume{Instance: id, Tween: tw})
}

func (m *Manager) StopInstance(id InstanceId, tw *Tween) error {
	return m.push(command.Stop{Instance: id, Tween: tw})
}

func (m *Manager) PauseInstancesOfSound(id SoundId, tw *Tween) error {
	return m.push(command.PauseInstancesOfSound{Sound: id, Tween: tw})
}

func (m *Manager) ResumeInstancesOfSound(id SoundId, tw *Tween) error {
	return m.push(command.ResumeInstancesOfSound{Sound: id, Tween: tw})
}

func (m *Manager) StopInstancesOfSound(id SoundId, tw *Tween) error {
	return m.push(command.StopInstancesOfSound{Sound: id, Tween: tw})
}

func (m *Manager) SetMetronomeTempo(bpm float64) error {
	return m.push(command.SetTempo{BPM: bpm})
}

func (m *Manager) StartMetronome() error { return m.push(command.StartMetronome{}) }
func (m *Manager) PauseMetronome() error { return m.push(command.PauseMetronome{}) }
func (m *Manager) StopMetronome() error  { return m.push(command.StopMetronome{}) }

// StartSequence hands seq to the audio thread and returns the id used to
// mute/unmute it afterwards.
func (m *Manager) StartSequence(seq *Sequence) (SequenceId, error) {
	id := sequence.NewId()
	return id, m.push(command.StartSequence{Id: id, Sequence: seq})
}

func (m *Manager) MuteSequence(id SequenceId) error   { return m.push(command.MuteSequence{Id: id}) }
func (m *Manager) UnmuteSequence(id SequenceId) error { return m.push(command.UnmuteSequence{Id: id}) }

// SetBusVolume applies a scalar multiplier to every instance mixed on
// bus (SPEC_FULL.md "Supplemented features").
func (m *Manager) SetBusVolume(bus int, volume float64) error {
	return m.push(command.SetBusVolume{Bus: bus, Volume: volume})
}

// Events drains all pending audio->control events (spec.md §4.7).
func (m *Manager) Events() []Event {
	var out []Event
	for {
		ev, ok := m.backend.Events().Pop()
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out
}

// FreeUnusedResources drains the reclamation channels, dropping the
// audio thread's last references to unloaded sounds and finished
// sequences so the garbage collector can reclaim them (spec.md §4.7).
func (m *Manager) FreeUnusedResources() {
	for {
		if _, ok := m.backend.SoundsToReclaim().Pop(); !ok {
			break
		}
	}
	for {
		if _, ok := m.backend.SequencesToReclaim().Pop(); !ok {
			break
		}
	}
}

// Close signals shutdown via the one-slot quit queue, joins the watchdog
// goroutine started by New, and closes the driver (spec.md §4.7, §5
// Cancellation).
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.backend.Quit().Push(struct{}{})
	if err := m.group.Wait(); err != nil {
		return err
	}
	return m.driver.Close()
}
