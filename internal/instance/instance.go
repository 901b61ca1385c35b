// Package instance implements the set of live playing sound instances
// (spec.md §3 Instance, §4.3 Instance engine). All operations here run
// exclusively on the audio thread.
package instance

import (
	"sync/atomic"

	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tween"
)

var nextID atomic.Uint64

// Id is an opaque, globally unique identifier for a live instance.
type Id struct {
	index uint64
}

func NewId() Id {
	return Id{index: nextID.Add(1)}
}

func (id Id) Valid() bool { return id.index != 0 }

// State is one of Playing, Paused, or Stopped. A Stopped instance never
// resumes.
type State int

const (
	Playing State = iota
	Paused
	Stopped
)

// Settings configures a newly played instance.
type Settings struct {
	Volume float64
	Pitch  float64
	Bus    int // optional per-bus volume group, see SPEC_FULL.md §"Supplemented features"
}

func DefaultSettings() Settings {
	return Settings{Volume: 1, Pitch: 1}
}

// fadeKind distinguishes which lifecycle transition a state tween is
// driving, since the scale it outputs is interpreted differently
// (volume multiplier on the way out, transition trigger on completion).
type fadeKind int

const (
	fadeNone fadeKind = iota
	fadePause
	fadeResume
	fadeStop
)

// Instance is one live playback of a Sound.
type Instance struct {
	SoundId  sound.Id
	Bus      int
	state    State
	position float64
	volume   tween.Value
	pitch    tween.Value
	fade     tween.Value
	fadeKind fadeKind
}

// New creates a just-started instance per spec.md §4.3 Play: position=0,
// state=Playing, volume/pitch from settings.
func New(soundID sound.Id, settings Settings) *Instance {
	return &Instance{
		SoundId:  soundID,
		Bus:      settings.Bus,
		state:    Playing,
		position: 0,
		volume:   tween.New(settings.Volume),
		pitch:    tween.New(settings.Pitch),
		fade:     tween.New(1),
	}
}

func (in *Instance) State() State      { return in.state }
func (in *Instance) Position() float64 { return in.position }
func (in *Instance) Volume() float64   { return in.volume.Current }
func (in *Instance) Pitch() float64    { return in.pitch.Current }

// SetVolume begins (or snaps) a glide of the volume tween.
func (in *Instance) SetVolume(target float64, tw *tween.Tween) {
	in.volume.SetTween(target, tw)
}

// SetPitch begins (or snaps) a glide of the pitch tween.
func (in *Instance) SetPitch(target float64, tw *tween.Tween) {
	in.pitch.SetTween(target, tw)
}

// Pause fades the output to 0 over fade, then transitions to Paused
// (spec.md §4.3 Pause). No-op if already Paused or Stopped.
func (in *Instance) Pause(tw *tween.Tween) {
	if in.state != Playing {
		return
	}
	in.fade.SetTween(0, tw)
	in.fadeKind = fadePause
}

// Resume fades volume back in from Paused and becomes Playing
// immediately (spec.md §4.3 Resume). No-op if not Paused.
func (in *Instance) Resume(tw *tween.Tween) {
	if in.state != Paused {
		return
	}
	in.state = Playing
	in.fade.SetTween(1, tw)
	in.fadeKind = fadeResume
}

// Stop fades to 0; once the fade completes the instance transitions to
// Stopped, which is terminal (spec.md §4.3 Stop).
func (in *Instance) Stop(tw *tween.Tween) {
	if in.state == Stopped {
		return
	}
	in.fade.SetTween(0, tw)
	in.fadeKind = fadeStop
}

// Advance runs one callback's worth of per-instance work (spec.md §4.3
// "Per-callback advance") and returns the contribution to the mix.
func (in *Instance) Advance(dt float64, snd sound.Sound) (out frame.Frame, removed bool) {
	if in.state == Stopped {
		return frame.Zero, true
	}

	paused := in.state == Paused
	if !paused {
		in.volume.Advance(dt)
		in.pitch.Advance(dt)
	}
	fadeScale := in.fade.Advance(dt)
	if in.fade.Done() {
		switch in.fadeKind {
		case fadePause:
			in.state = Paused
		case fadeStop:
			in.state = Stopped
		}
		in.fadeKind = fadeNone
	}

	if in.state == Paused {
		return frame.Zero, false
	}

	in.position += in.pitch.Current * dt
	if in.position >= snd.DurationSeconds {
		return frame.Zero, true
	}

	sample := snd.SampleAt(in.position)
	scale := float32(in.volume.Current * fadeScale)
	// A Stop fade reaching completion transitions state to Stopped in
	// this very callback, but removal is deferred to the next callback
	// (spec.md §4.3): the early Stopped check above is what removes it.
	return sample.Scale(scale), false
}
