package instance

import (
	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tween"
)

// Engine holds up to Capacity live instances, keyed by Id. All methods
// run on the audio thread; unknown ids are no-ops (spec.md §7, §9: a
// command may legitimately reference an instance that already finished).
type Engine struct {
	capacity  int
	instances map[Id]*Instance
}

func NewEngine(capacity int) *Engine {
	return &Engine{
		capacity:  capacity,
		instances: make(map[Id]*Instance, capacity),
	}
}

// Play creates a new instance bound to id if there is capacity. Returns
// false if the engine is already at capacity.
func (e *Engine) Play(id Id, soundID sound.Id, settings Settings) bool {
	if len(e.instances) >= e.capacity {
		return false
	}
	e.instances[id] = New(soundID, settings)
	return true
}

func (e *Engine) Get(id Id) (*Instance, bool) {
	in, ok := e.instances[id]
	return in, ok
}

func (e *Engine) SetVolume(id Id, target float64, tw *tween.Tween) {
	if in, ok := e.instances[id]; ok {
		in.SetVolume(target, tw)
	}
}

func (e *Engine) SetPitch(id Id, target float64, tw *tween.Tween) {
	if in, ok := e.instances[id]; ok {
		in.SetPitch(target, tw)
	}
}

func (e *Engine) Pause(id Id, tw *tween.Tween) {
	if in, ok := e.instances[id]; ok {
		in.Pause(tw)
	}
}

func (e *Engine) Resume(id Id, tw *tween.Tween) {
	if in, ok := e.instances[id]; ok {
		in.Resume(tw)
	}
}

func (e *Engine) Stop(id Id, tw *tween.Tween) {
	if in, ok := e.instances[id]; ok {
		in.Stop(tw)
	}
}

// withSound applies fn to every live instance whose SoundId matches id
// (spec.md §9: no back-references from Sound to its instances — iterate
// the instance table instead).
func (e *Engine) withSound(soundID sound.Id, fn func(*Instance)) {
	for _, in := range e.instances {
		if in.SoundId == soundID {
			fn(in)
		}
	}
}

func (e *Engine) PauseInstancesOfSound(soundID sound.Id, tw *tween.Tween) {
	e.withSound(soundID, func(in *Instance) { in.Pause(tw) })
}

func (e *Engine) ResumeInstancesOfSound(soundID sound.Id, tw *tween.Tween) {
	e.withSound(soundID, func(in *Instance) { in.Resume(tw) })
}

func (e *Engine) StopInstancesOfSound(soundID sound.Id, tw *tween.Tween) {
	e.withSound(soundID, func(in *Instance) { in.Stop(tw) })
}

// Mix advances every live instance by dt, sums their contributions, and
// removes any instance whose Advance call reports it finished.
func (e *Engine) Mix(dt float64, lookup func(sound.Id) (sound.Sound, bool)) frame.Frame {
	return e.MixBuses(dt, lookup, nil)
}

// MixBuses is Mix with an additional per-bus volume multiplier applied to
// each instance's contribution before summing (SPEC_FULL.md "Supplemented
// features", grounded on original_source's per-tag volume). A nil
// busVolume leaves every instance unscaled.
func (e *Engine) MixBuses(dt float64, lookup func(sound.Id) (sound.Sound, bool), busVolume func(bus int) float64) frame.Frame {
	out := frame.Zero
	for id, in := range e.instances {
		snd, ok := lookup(in.SoundId)
		if !ok {
			// The sound was unloaded out from under a live instance;
			// treat it as finished rather than erroring (spec.md §7).
			delete(e.instances, id)
			continue
		}
		contribution, removed := in.Advance(dt, snd)
		if busVolume != nil {
			contribution = contribution.Scale(float32(busVolume(in.Bus)))
		}
		out = out.Add(contribution)
		if removed {
			delete(e.instances, id)
		}
	}
	return out
}

func (e *Engine) Len() int { return len(e.instances) }
