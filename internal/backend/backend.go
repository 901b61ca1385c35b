// Package backend implements the audio thread: a Backend owns the
// Sound store, the live instance engine, the metronome, and the running
// sequences, and drives the per-callback pipeline in spec.md §4.6. It
// never blocks, allocates, or touches the filesystem once constructed
// (spec.md §5).
package backend

import (
	"github.com/kestrelaudio/kestrel/internal/command"
	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/instance"
	"github.com/kestrelaudio/kestrel/internal/ringbuffer"
	"github.com/kestrelaudio/kestrel/internal/sequence"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tempo"
)

// Driver is the host audio driver abstraction this package drives
// against (spec.md §6): it opens a device, negotiates a sample rate and
// channel count, and repeatedly calls back for more frames until Close.
type Driver interface {
	SampleRate() int
	Channels() int
	Start(pull func(out []float32)) error
	Close() error
}

// Settings sizes every fixed-capacity resource a Backend owns.
type Settings struct {
	MaxSounds         int
	MaxInstances      int
	MaxSequences      int
	CommandQueueSize  int
	EventQueueSize    int
	ReclaimQueueSize  int
	MetronomeSettings tempo.Settings
}

func DefaultSettings() Settings {
	return Settings{
		MaxSounds:        100,
		MaxInstances:     100,
		MaxSequences:     25,
		CommandQueueSize: 100,
		EventQueueSize:   100,
		ReclaimQueueSize: 100,
		MetronomeSettings: tempo.DefaultSettings(),
	}
}

// Backend is the audio thread's entire mutable state. Every method here
// is called exclusively from the audio thread; the Manager only ever
// talks to it through the queues.
type Backend struct {
	sampleRate uint32
	dt         float64

	sounds    *sound.Store
	engine    *instance.Engine
	metronome *tempo.Metronome
	sequences map[sequence.Id]*sequence.Sequence
	busVolume map[int]float64

	commands *ringbuffer.Queue[command.Command]
	events   *ringbuffer.Queue[command.Event]

	soundsToReclaim    *ringbuffer.Queue[sound.Sound]
	sequencesToReclaim *ringbuffer.Queue[*sequence.Sequence]
	quit               *ringbuffer.Queue[struct{}]

	// pendingUnload holds sound ids whose reclaim push failed; retried
	// at the start of the following callback (spec.md §4.6 step 1).
	pendingUnload []sound.Id

	batch            []command.Command // reused scratch slice, grows as needed
	scratchIntervals []float64         // reused scratch slice for Tick's return value
	seqOutputs       []sequence.OutputCommand
}

func New(sampleRate uint32, settings Settings) *Backend {
	return &Backend{
		sampleRate:         sampleRate,
		dt:                 1.0 / float64(sampleRate),
		sounds:             sound.NewStore(settings.MaxSounds),
		engine:             instance.NewEngine(settings.MaxInstances),
		metronome:          tempo.New(settings.MetronomeSettings),
		sequences:          make(map[sequence.Id]*sequence.Sequence, settings.MaxSequences),
		busVolume:          make(map[int]float64),
		commands:           ringbuffer.New[command.Command](settings.CommandQueueSize),
		events:             ringbuffer.New[command.Event](settings.EventQueueSize),
		soundsToReclaim:    ringbuffer.New[sound.Sound](settings.ReclaimQueueSize),
		sequencesToReclaim: ringbuffer.New[*sequence.Sequence](settings.MaxSequences),
		quit:               ringbuffer.New[struct{}](1),
	}
}

// Commands returns the control->audio command queue (the Manager's
// producer end).
func (b *Backend) Commands() *ringbuffer.Queue[command.Command] { return b.commands }

// Events returns the audio->control event queue (the Manager's consumer end).
func (b *Backend) Events() *ringbuffer.Queue[command.Event] { return b.events }

// SoundsToReclaim returns the reclamation channel for unloaded sounds.
func (b *Backend) SoundsToReclaim() *ringbuffer.Queue[sound.Sound] { return b.soundsToReclaim }

// SequencesToReclaim returns the reclamation channel for finished sequences.
func (b *Backend) SequencesToReclaim() *ringbuffer.Queue[*sequence.Sequence] {
	return b.sequencesToReclaim
}

// Quit returns the one-slot shutdown queue (spec.md §5 Cancellation).
func (b *Backend) Quit() *ringbuffer.Queue[struct{}] { return b.quit }

// ShouldQuit reports whether a shutdown sentinel has been pushed, without
// consuming it more than once.
func (b *Backend) ShouldQuit() bool {
	_, ok := b.quit.Pop()
	return ok
}

// Process fills out (interleaved stereo float32, Channels()==2) with one
// callback's worth of audio, running the full per-sample pipeline from
// spec.md §4.6 once per frame.
func (b *Backend) Process(out []float32) {
	b.retryPendingReclaim()
	frames := len(out) / 2
	for i := 0; i < frames; i++ {
		b.processCommands()
		passed := b.updateMetronome()
		for _, interval := range passed {
			b.pushEvent(command.MetronomeIntervalPassed{Interval: interval})
		}
		b.updateSequences()
		f := b.processInstances()
		out[i*2] = f.Left
		out[i*2+1] = f.Right
	}
}

func (b *Backend) pushEvent(ev command.Event) {
	b.events.Push(ev) // dropped silently on overflow, per spec.md §4.6 step 2
}

// retryPendingReclaim re-attempts pushing sounds whose UnloadSound found
// the reclaim channel full on a previous callback (spec.md §4.6 step 1,
// §9 Open Question: reinsert-and-retry).
func (b *Backend) retryPendingReclaim() {
	if len(b.pendingUnload) == 0 {
		return
	}
	still := b.pendingUnload[:0]
	for _, id := range b.pendingUnload {
		snd, ok := b.sounds.Remove(id)
		if !ok {
			continue
		}
		if b.soundsToReclaim.Push(snd) {
			continue
		}
		b.sounds.Insert(id, snd)
		still = append(still, id)
	}
	b.pendingUnload = still
}

// processCommands drains the command queue into a local slice before
// dispatching, so commands pushed while the batch is dispatched wait for
// the next drain; Process calls this once per frame (spec.md §4.6 step 1,
// §9 re-entrancy note).
func (b *Backend) processCommands() {
	batch := b.batch[:0]
	for {
		cmd, ok := b.commands.Pop()
		if !ok {
			break
		}
		batch = append(batch, cmd)
	}
	b.batch = batch
	for _, cmd := range batch {
		b.dispatch(cmd)
	}
}

func (b *Backend) dispatch(cmd command.Command) {
	switch c := cmd.(type) {
	case command.LoadSound:
		b.sounds.Insert(c.Id, c.Sound)
	case command.UnloadSound:
		b.unloadSound(c.Id)
	case command.PlayInstance:
		b.engine.Play(c.Instance, c.SoundId, c.Settings)
	case command.SetVolume:
		b.engine.SetVolume(c.Instance, c.Volume, c.Tween)
	case command.SetPitch:
		b.engine.SetPitch(c.Instance, c.Pitch, c.Tween)
	case command.Pause:
		b.engine.Pause(c.Instance, c.Tween)
	case command.Resume:
		b.engine.Resume(c.Instance, c.Tween)
	case command.Stop:
		b.engine.Stop(c.Instance, c.Tween)
	case command.PauseInstancesOfSound:
		b.engine.PauseInstancesOfSound(c.Sound, c.Tween)
	case command.ResumeInstancesOfSound:
		b.engine.ResumeInstancesOfSound(c.Sound, c.Tween)
	case command.StopInstancesOfSound:
		b.engine.StopInstancesOfSound(c.Sound, c.Tween)
	case command.SetTempo:
		b.metronome.SetTempo(c.BPM)
	case command.StartMetronome:
		b.metronome.Start()
	case command.PauseMetronome:
		b.metronome.Pause()
	case command.StopMetronome:
		b.metronome.Stop()
	case command.StartSequence:
		b.sequences[c.Id] = c.Sequence
		c.Sequence.Start()
	case command.MuteSequence:
		if seq, ok := b.sequences[c.Id]; ok {
			seq.Mute()
		}
	case command.UnmuteSequence:
		if seq, ok := b.sequences[c.Id]; ok {
			seq.Unmute()
		}
	case command.EmitCustom:
		b.pushEvent(command.Custom{Event: c.Event})
	case command.SetBusVolume:
		b.busVolume[c.Bus] = c.Volume
	}
}

// unloadSound stops every instance of id, then hands the sound back to
// the control thread via the reclaim channel.
func (b *Backend) unloadSound(id sound.Id) {
	snd, ok := b.sounds.Remove(id)
	if !ok {
		return
	}
	b.engine.StopInstancesOfSound(id, nil)
	if b.soundsToReclaim.Push(snd) {
		return
	}
	b.sounds.Insert(id, snd)
	b.pendingUnload = append(b.pendingUnload, id)
}

func (b *Backend) updateMetronome() []float64 {
	b.scratchIntervals = b.metronome.Tick(b.dt, b.scratchIntervals[:0])
	return b.scratchIntervals
}

// updateSequences ticks every running sequence and dispatches whatever
// it emits in this same callback, ahead of mixing (spec.md §4.5, §4.6
// step 3). Finished sequences are handed to the reclaim channel.
func (b *Backend) updateSequences() {
	for id, seq := range b.sequences {
		b.seqOutputs = seq.Update(b.dt, b.metronome)
		for _, out := range b.seqOutputs {
			if cmd := fromSequenceOutput(out); cmd != nil {
				b.dispatch(cmd)
			}
		}
		if seq.Finished() {
			delete(b.sequences, id)
			// Unlike UnloadSound, spec.md gives no retry rule for a full
			// reclaim channel here; after a failed push the sequence is
			// simply dropped, out of reach of free_unused_resources.
			b.sequencesToReclaim.Push(seq)
		}
	}
}

// fromSequenceOutput translates a sequence's emitted OutputCommand (with
// handles already resolved to real InstanceIds) into the Command the
// backend dispatches, per spec.md §4.5 Emit.
func fromSequenceOutput(out sequence.OutputCommand) command.Command {
	switch out.Kind {
	case sequence.OutputInstance:
		ic := out.Instance
		switch ic.Op {
		case sequence.OpPlay:
			return command.PlayInstance{SoundId: ic.SoundId, Instance: ic.InstanceId, Settings: ic.Settings}
		case sequence.OpSetVolume:
			return command.SetVolume{Instance: ic.InstanceId, Volume: ic.Volume, Tween: ic.Tween}
		case sequence.OpSetPitch:
			return command.SetPitch{Instance: ic.InstanceId, Pitch: ic.Pitch, Tween: ic.Tween}
		case sequence.OpPause:
			return command.Pause{Instance: ic.InstanceId, Tween: ic.Tween}
		case sequence.OpResume:
			return command.Resume{Instance: ic.InstanceId, Tween: ic.Tween}
		case sequence.OpStop:
			return command.Stop{Instance: ic.InstanceId, Tween: ic.Tween}
		case sequence.OpPauseOfSound:
			return command.PauseInstancesOfSound{Sound: ic.SoundId, Tween: ic.Tween}
		case sequence.OpResumeOfSound:
			return command.ResumeInstancesOfSound{Sound: ic.SoundId, Tween: ic.Tween}
		case sequence.OpStopOfSound:
			return command.StopInstancesOfSound{Sound: ic.SoundId, Tween: ic.Tween}
		}
	case sequence.OutputMetronome:
		switch out.Metronome.Op {
		case sequence.OpSetTempo:
			return command.SetTempo{BPM: out.Metronome.BPM}
		case sequence.OpStartMetronome:
			return command.StartMetronome{}
		case sequence.OpPauseMetronome:
			return command.PauseMetronome{}
		case sequence.OpStopMetronome:
			return command.StopMetronome{}
		}
	case sequence.OutputCustom:
		return command.EmitCustom{Event: out.CustomEvent}
	}
	return nil
}

func (b *Backend) processInstances() frame.Frame {
	lookup := func(id sound.Id) (sound.Sound, bool) { return b.sounds.Get(id) }
	busVolume := func(bus int) float64 {
		v, ok := b.busVolume[bus]
		if !ok {
			return 1
		}
		return v
	}
	return b.engine.MixBuses(b.dt, lookup, busVolume)
}
