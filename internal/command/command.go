// Package command defines the tagged-union-style Command and Event
// values passed across the lock-free channels between the control
// thread and the audio thread (spec.md §3 Command, Event).
package command

import (
	"github.com/kestrelaudio/kestrel/internal/instance"
	"github.com/kestrelaudio/kestrel/internal/sequence"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tween"
)

// Command is implemented by every concrete control->audio command. The
// marker method keeps the set closed to this package's types, the
// idiomatic Go analogue of the Rust tagged enum in spec.md §3.
type Command interface {
	isCommand()
}

type base struct{}

func (base) isCommand() {}

type LoadSound struct {
	base
	Id    sound.Id
	Sound sound.Sound
}

type UnloadSound struct {
	base
	Id sound.Id
}

type PlayInstance struct {
	base
	SoundId  sound.Id
	Instance instance.Id
	Settings instance.Settings
}

type SetVolume struct {
	base
	Instance instance.Id
	Volume   float64
	Tween    *tween.Tween
}

type SetPitch struct {
	base
	Instance instance.Id
	Pitch    float64
	Tween    *tween.Tween
}

type Pause struct {
	base
	Instance instance.Id
	Tween    *tween.Tween
}

type Resume struct {
	base
	Instance instance.Id
	Tween    *tween.Tween
}

type Stop struct {
	base
	Instance instance.Id
	Tween    *tween.Tween
}

type PauseInstancesOfSound struct {
	base
	Sound sound.Id
	Tween *tween.Tween
}

type ResumeInstancesOfSound struct {
	base
	Sound sound.Id
	Tween *tween.Tween
}

type StopInstancesOfSound struct {
	base
	Sound sound.Id
	Tween *tween.Tween
}

type SetTempo struct {
	base
	BPM float64
}

type StartMetronome struct{ base }
type PauseMetronome struct{ base }
type StopMetronome struct{ base }

type StartSequence struct {
	base
	Id       sequence.Id
	Sequence *sequence.Sequence
}

type MuteSequence struct {
	base
	Id sequence.Id
}

type UnmuteSequence struct {
	base
	Id sequence.Id
}

type EmitCustom struct {
	base
	Event any
}

// SetBusVolume applies a scalar multiplier to every instance mixed on
// bus (SPEC_FULL.md "Supplemented features"; grounded on
// original_source/conductor/src/tag.rs's per-tag volume).
type SetBusVolume struct {
	base
	Bus    int
	Volume float64
}

// Event is implemented by every concrete audio->control event.
type Event interface {
	isEvent()
}

type eventBase struct{}

func (eventBase) isEvent() {}

type MetronomeIntervalPassed struct {
	eventBase
	Interval float64
}

type Custom struct {
	eventBase
	Event any
}
