package tempo

import "testing"

// TestMetronomeScenario3 matches spec.md scenario 3: tempo 120 BPM,
// intervals [0.25, 1.0], after exactly 0.5s of callbacks at 48000Hz the
// emitted sequence is [0.25, 0.25, 0.25, 0.25, 1.0] with the 1.0 event
// coincident with the fourth 0.25 event.
func TestMetronomeScenario3(t *testing.T) {
	m := New(Settings{Tempo: 120, Intervals: []float64{0.25, 1.0}})
	m.Start()

	sampleRate := 48000
	dt := 1.0 / float64(sampleRate)
	var events []float64
	var buf []float64
	for i := 0; i < sampleRate/2; i++ {
		passed := m.Tick(dt, buf)
		buf = passed
		events = append(events, passed...)
	}

	want := []float64{0.25, 0.25, 0.25, 0.25, 1.0}
	if len(events) != len(want) {
		t.Fatalf("got %v events, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v (full: %v)", i, events[i], want[i], events)
		}
	}
}

func TestPauseStopsAdvanceButPreservesBeat(t *testing.T) {
	m := New(Settings{Tempo: 120})
	m.Start()
	m.Tick(1.0, nil)
	pos := m.BeatPosition()
	if pos == 0 {
		t.Fatalf("expected nonzero beat position after a tick")
	}
	m.Pause()
	m.Tick(1.0, nil)
	if m.BeatPosition() != pos {
		t.Fatalf("paused metronome should not advance: got %v, want %v", m.BeatPosition(), pos)
	}
	if m.EffectiveTempo() != 0 {
		t.Fatalf("effective tempo should be 0 while paused")
	}
}

func TestStopResetsBeat(t *testing.T) {
	m := New(Settings{Tempo: 120})
	m.Start()
	m.Tick(1.0, nil)
	m.Stop()
	if m.BeatPosition() != 0 {
		t.Fatalf("expected beat position reset to 0 after Stop, got %v", m.BeatPosition())
	}
	if m.Running() {
		t.Fatalf("expected Running() false after Stop")
	}
}

func TestTempoChangeIsImmediate(t *testing.T) {
	m := New(Settings{Tempo: 60})
	m.Start()
	m.SetTempo(120)
	if m.EffectiveTempo() != 120 {
		t.Fatalf("tempo change should apply immediately, got %v", m.EffectiveTempo())
	}
}
