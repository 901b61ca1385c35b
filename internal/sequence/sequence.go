// Package sequence implements the sequence interpreter: a small state
// machine over wait/branch/emit tasks with handle-to-instance rebinding
// (spec.md §3 Sequence, §4.5). It runs exclusively on the audio thread,
// once per callback after the metronome tick.
package sequence

import (
	"math"
	"sync/atomic"

	"github.com/kestrelaudio/kestrel/internal/instance"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tempo"
	"github.com/kestrelaudio/kestrel/internal/tween"
)

var nextID atomic.Uint64

// Id identifies a running sequence, returned to the control thread when
// the sequence is started.
type Id struct{ index uint64 }

func NewId() Id { return Id{index: nextID.Add(1)} }

var nextHandle atomic.Uint64

// Handle is allocated when a sequence author writes a PlaySound task. It
// rebinds to a real instance.Id when that task executes (spec.md §3
// SequenceInstanceHandle).
type Handle struct{ index uint64 }

func NewHandle() Handle { return Handle{index: nextHandle.Add(1)} }

// InstanceOp identifies which instance-lifecycle operation an
// InstanceCommand performs.
type InstanceOp int

const (
	OpPlay InstanceOp = iota
	OpSetVolume
	OpSetPitch
	OpPause
	OpResume
	OpStop
	OpPauseOfSound
	OpResumeOfSound
	OpStopOfSound
)

// InstanceCommand is authored against a Handle and, once the
// interpreter executes the owning task, rebound to a concrete
// InstanceId (spec.md §4.5 Emit).
type InstanceCommand struct {
	Op         InstanceOp
	SoundId    sound.Id
	Handle     Handle
	InstanceId instance.Id
	Volume     float64
	Pitch      float64
	Tween      *tween.Tween
	Settings   instance.Settings
}

type MetronomeOp int

const (
	OpSetTempo MetronomeOp = iota
	OpStartMetronome
	OpPauseMetronome
	OpStopMetronome
)

type MetronomeCommand struct {
	Op  MetronomeOp
	BPM float64
}

// Task is implemented by every task a sequence can contain.
type Task interface{ isTask() }

type taskBase struct{}

func (taskBase) isTask() {}

type WaitSeconds struct {
	taskBase
	Seconds float64
}

type WaitBeats struct {
	taskBase
	Beats float64
}

type WaitForInterval struct {
	taskBase
	Interval float64
}

type GoTo struct {
	taskBase
	Index int
}

type RunInstanceCommand struct {
	taskBase
	Command InstanceCommand
}

type RunMetronomeCommand struct {
	taskBase
	Command MetronomeCommand
}

type EmitCustomEvent struct {
	taskBase
	Event any
}

// OutputKind identifies which translated command an emitted OutputCommand
// carries.
type OutputKind int

const (
	OutputInstance OutputKind = iota
	OutputMetronome
	OutputCustom
)

// OutputCommand is a Task's Emit, fully translated: handles are resolved
// to real instance ids, ready for the backend to convert into a
// command.Command and dispatch (spec.md §4.5 Emit, §9).
type OutputCommand struct {
	Kind        OutputKind
	Instance    InstanceCommand
	Metronome   MetronomeCommand
	CustomEvent any
}

type runState int

const (
	stateIdle runState = iota
	statePlaying
	stateFinished
)

// Sequence is {tasks, state, wait_timer, handle_map, muted} from spec.md §3.
type Sequence struct {
	Tasks     []Task
	state     runState
	taskIndex int
	waiting   bool
	waitTimer float64 // fraction of the current wait remaining, 1.0 -> 0.0
	handles   map[Handle]instance.Id
	muted     bool
}

func New() *Sequence {
	return &Sequence{handles: make(map[Handle]instance.Id)}
}

// Builder methods append tasks; each returns the Sequence for chaining,
// except PlaySound, which returns the Handle of the instance it spawns,
// mirroring the teacher's functional-option style used elsewhere in this
// module.

func (s *Sequence) WaitSeconds(d float64) *Sequence {
	s.Tasks = append(s.Tasks, WaitSeconds{Seconds: d})
	return s
}

func (s *Sequence) WaitBeats(b float64) *Sequence {
	s.Tasks = append(s.Tasks, WaitBeats{Beats: b})
	return s
}

func (s *Sequence) WaitForInterval(i float64) *Sequence {
	s.Tasks = append(s.Tasks, WaitForInterval{Interval: i})
	return s
}

func (s *Sequence) GoTo(index int) *Sequence {
	s.Tasks = append(s.Tasks, GoTo{Index: index})
	return s
}

// PlaySound appends a PlayInstance task and returns the Handle later
// tasks in this sequence can use to target the spawned instance.
func (s *Sequence) PlaySound(soundID sound.Id, settings instance.Settings) Handle {
	h := NewHandle()
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{
		Op: OpPlay, SoundId: soundID, Handle: h, Settings: settings,
	}})
	return h
}

func (s *Sequence) SetInstanceVolume(h Handle, volume float64, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpSetVolume, Handle: h, Volume: volume, Tween: tw}})
	return s
}

func (s *Sequence) SetInstancePitch(h Handle, pitch float64, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpSetPitch, Handle: h, Pitch: pitch, Tween: tw}})
	return s
}

func (s *Sequence) PauseInstance(h Handle, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpPause, Handle: h, Tween: tw}})
	return s
}

func (s *Sequence) ResumeInstance(h Handle, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpResume, Handle: h, Tween: tw}})
	return s
}

func (s *Sequence) StopInstance(h Handle, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpStop, Handle: h, Tween: tw}})
	return s
}

func (s *Sequence) PauseInstancesOfSound(soundID sound.Id, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpPauseOfSound, SoundId: soundID, Tween: tw}})
	return s
}

func (s *Sequence) ResumeInstancesOfSound(soundID sound.Id, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpResumeOfSound, SoundId: soundID, Tween: tw}})
	return s
}

func (s *Sequence) StopInstancesOfSound(soundID sound.Id, tw *tween.Tween) *Sequence {
	s.Tasks = append(s.Tasks, RunInstanceCommand{Command: InstanceCommand{Op: OpStopOfSound, SoundId: soundID, Tween: tw}})
	return s
}

func (s *Sequence) StartMetronome() *Sequence {
	s.Tasks = append(s.Tasks, RunMetronomeCommand{Command: MetronomeCommand{Op: OpStartMetronome}})
	return s
}

func (s *Sequence) PauseMetronome() *Sequence {
	s.Tasks = append(s.Tasks, RunMetronomeCommand{Command: MetronomeCommand{Op: OpPauseMetronome}})
	return s
}

func (s *Sequence) StopMetronome() *Sequence {
	s.Tasks = append(s.Tasks, RunMetronomeCommand{Command: MetronomeCommand{Op: OpStopMetronome}})
	return s
}

func (s *Sequence) EmitCustomEvent(event any) *Sequence {
	s.Tasks = append(s.Tasks, EmitCustomEvent{Event: event})
	return s
}

func (s *Sequence) startTask(index int) {
	if index < 0 || index >= len(s.Tasks) {
		s.state = stateFinished
		return
	}
	s.state = statePlaying
	s.taskIndex = index
	_, isWaitSeconds := s.Tasks[index].(WaitSeconds)
	_, isWaitBeats := s.Tasks[index].(WaitBeats)
	if isWaitSeconds || isWaitBeats {
		s.waitTimer = 1.0
		s.waiting = true
	} else {
		s.waiting = false
	}
}

// Start begins execution at task 0 (spec.md §4.5).
func (s *Sequence) Start() { s.startTask(0) }

func (s *Sequence) Mute()   { s.muted = true }
func (s *Sequence) Unmute() { s.muted = false }

func (s *Sequence) Muted() bool { return s.muted }

// Finished reports whether the sequence has run off the end of its task
// list or hit a GoTo-only cycle.
func (s *Sequence) Finished() bool { return s.state == stateFinished }

func waitDurationSeconds(task Task, effectiveTempo float64) float64 {
	switch t := task.(type) {
	case WaitSeconds:
		return t.Seconds
	case WaitBeats:
		if effectiveTempo <= 0 {
			return math.Inf(1)
		}
		return t.Beats / (effectiveTempo / 60)
	}
	return 0
}

func (s *Sequence) translate(cmd InstanceCommand) InstanceCommand {
	switch cmd.Op {
	case OpPlay:
		id := instance.NewId()
		s.handles[cmd.Handle] = id
		cmd.InstanceId = id
	case OpSetVolume, OpSetPitch, OpPause, OpResume, OpStop:
		cmd.InstanceId = s.handles[cmd.Handle] // zero value (invalid) if never bound; a no-op downstream
	}
	return cmd
}

// Update ticks the sequence by dt seconds (spec.md §4.5). GoTo tasks,
// immediately-dispatched Emit tasks, and a wait that completes in this
// tick may chain multiple task advances within a single call. A revisit
// of the same task index ends the call: it terminates the sequence
// (Finished) when no wait completed in between, to bound work per
// callback, per spec.md §9, and otherwise resumes there next call.
func (s *Sequence) Update(dt float64, metronome *tempo.Metronome) []OutputCommand {
	var out []OutputCommand
	visited := make(map[int]bool)
	waitDone := false

	for s.state == statePlaying {
		idx := s.taskIndex
		if visited[idx] {
			if waitDone {
				return out
			}
			s.state = stateFinished
			break
		}
		visited[idx] = true

		if idx < 0 || idx >= len(s.Tasks) {
			s.state = stateFinished
			break
		}
		task := s.Tasks[idx]

		switch t := task.(type) {
		case WaitSeconds:
			duration := waitDurationSeconds(t, metronome.EffectiveTempo())
			s.waitTimer -= dt / duration
			if s.waitTimer > 0 {
				return out
			}
			s.startTask(idx + 1)
			waitDone = true
		case WaitBeats:
			duration := waitDurationSeconds(t, metronome.EffectiveTempo())
			s.waitTimer -= dt / duration
			if s.waitTimer > 0 {
				return out
			}
			s.startTask(idx + 1)
			waitDone = true
		case WaitForInterval:
			if !metronome.IntervalPassed(t.Interval) {
				return out
			}
			s.startTask(idx + 1)
			waitDone = true
		case GoTo:
			s.startTask(t.Index)
		case RunInstanceCommand:
			if !s.muted {
				out = append(out, OutputCommand{Kind: OutputInstance, Instance: s.translate(t.Command)})
			}
			s.startTask(idx + 1)
		case RunMetronomeCommand:
			if !s.muted {
				out = append(out, OutputCommand{Kind: OutputMetronome, Metronome: t.Command})
			}
			s.startTask(idx + 1)
		case EmitCustomEvent:
			if !s.muted {
				out = append(out, OutputCommand{Kind: OutputCustom, CustomEvent: t.Event})
			}
			s.startTask(idx + 1)
		default:
			s.state = stateFinished
		}
	}
	return out
}
