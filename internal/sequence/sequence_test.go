package sequence

import (
	"testing"

	"github.com/kestrelaudio/kestrel/internal/instance"
	"github.com/kestrelaudio/kestrel/internal/sound"
	"github.com/kestrelaudio/kestrel/internal/tempo"
)

func idleMetronome() *tempo.Metronome {
	m := tempo.New(tempo.Settings{Tempo: 120})
	m.Start()
	return m
}

func TestWaitSecondsBlocksUntilElapsed(t *testing.T) {
	s := New()
	sid := sound.NewId()
	s.WaitSeconds(1.0)
	s.PlaySound(sid, instance.DefaultSettings())
	s.Start()

	m := idleMetronome()
	// 0.125 is exact in binary, so eight ticks sum to exactly 1.0.
	for i := 0; i < 7; i++ {
		out := s.Update(0.125, m)
		if len(out) != 0 {
			t.Fatalf("tick %d: expected no output before the wait elapses, got %v", i, out)
		}
	}
	out := s.Update(0.125, m)
	if len(out) != 1 || out[0].Kind != OutputInstance {
		t.Fatalf("expected one instance command once the wait elapses, got %v", out)
	}
}

func TestGoToLoopWithoutWaitFinishes(t *testing.T) {
	s := New()
	s.GoTo(0) // unconditional self-loop, never waits
	s.Start()

	m := idleMetronome()
	s.Update(0.016, m)
	if !s.Finished() {
		t.Fatalf("expected a GoTo cycle with no wait to terminate as Finished")
	}
}

func TestRunningOffTheEndFinishes(t *testing.T) {
	s := New()
	sid := sound.NewId()
	s.PlaySound(sid, instance.DefaultSettings())
	s.Start()

	m := idleMetronome()
	out := s.Update(0.016, m)
	if len(out) != 1 {
		t.Fatalf("expected one emitted command, got %d", len(out))
	}
	if !s.Finished() {
		t.Fatalf("expected sequence to finish after its only task runs")
	}
}

func TestHandleRebindingAcrossTasks(t *testing.T) {
	s := New()
	sid := sound.NewId()
	h := s.PlaySound(sid, instance.DefaultSettings())
	s.SetInstanceVolume(h, 0.5, nil)
	s.Start()

	m := idleMetronome()
	out := s.Update(0.016, m)
	if len(out) != 2 {
		t.Fatalf("expected both the play and the volume set to emit in the same tick, got %d", len(out))
	}
	play := out[0].Instance
	setVol := out[1].Instance
	if !play.InstanceId.Valid() {
		t.Fatalf("expected PlaySound to allocate a valid instance id")
	}
	if setVol.InstanceId != play.InstanceId {
		t.Fatalf("expected SetInstanceVolume's handle to rebind to the same instance id allocated by PlaySound")
	}
}

func TestMutedSequenceEmitsNothing(t *testing.T) {
	s := New()
	sid := sound.NewId()
	s.PlaySound(sid, instance.DefaultSettings())
	s.Mute()
	s.Start()

	m := idleMetronome()
	out := s.Update(0.016, m)
	if len(out) != 0 {
		t.Fatalf("expected a muted sequence to emit nothing, got %v", out)
	}
}

func TestWaitForIntervalBlocksUntilMetronomePasses(t *testing.T) {
	s := New()
	sid := sound.NewId()
	s.WaitForInterval(1.0)
	s.PlaySound(sid, instance.DefaultSettings())
	s.Start()

	m := tempo.New(tempo.Settings{Tempo: 60, Intervals: []float64{1.0}})
	m.Start()

	// At 60 BPM each 0.01 s tick is 0.01 beats: beat 1.0 passes on the
	// 100th tick.
	passed := make([]float64, 0, 4)
	for i := 0; i < 150; i++ {
		m.Tick(0.01, passed)
		out := s.Update(0.01, m)
		if len(out) > 0 {
			return
		}
	}
	t.Fatalf("expected WaitForInterval to eventually unblock once beat 1.0 passes")
}

func TestWaitBeatsDoesNotAdvanceWhileMetronomePaused(t *testing.T) {
	s := New()
	sid := sound.NewId()
	s.WaitBeats(1.0)
	s.PlaySound(sid, instance.DefaultSettings())
	s.Start()

	m := tempo.New(tempo.Settings{Tempo: 120})
	// Metronome never started: EffectiveTempo() is 0, so the wait must
	// never resolve regardless of how much real time elapses.
	for i := 0; i < 1000; i++ {
		out := s.Update(0.1, m)
		if len(out) != 0 {
			t.Fatalf("expected WaitBeats to never elapse while the metronome is paused")
		}
	}
}
