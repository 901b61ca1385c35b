// Package tempo implements the musical-time clock driven once per output
// sample by the backend (spec.md §3 Metronome, §4.4).
package tempo

import "math"

// Settings configures a Metronome at construction (part of
// AudioManagerSettings in spec.md §6).
type Settings struct {
	Tempo     float64   // initial tempo in BPM
	Intervals []float64 // beat subdivisions to report, in declaration order
}

func DefaultSettings() Settings {
	return Settings{Tempo: 120, Intervals: nil}
}

// Metronome is a musical-time clock with start/pause/stop, tempo changes,
// and emission of "interval passed" beats.
type Metronome struct {
	tempo                float64
	running               bool
	beatPosition          float64
	previousBeatPosition  float64
	intervals             []float64
}

func New(settings Settings) *Metronome {
	return &Metronome{
		tempo:     settings.Tempo,
		intervals: append([]float64(nil), settings.Intervals...),
	}
}

// EffectiveTempo is the tempo used for WaitBeats resolution (spec.md §4.4):
// the configured tempo while running, 0 while paused or stopped.
func (m *Metronome) EffectiveTempo() float64 {
	if !m.running {
		return 0
	}
	return m.tempo
}

func (m *Metronome) SetTempo(bpm float64) {
	m.tempo = bpm
}

func (m *Metronome) Start() {
	m.running = true
}

// Pause stops advancing the clock but preserves the current beat position.
func (m *Metronome) Pause() {
	m.running = false
}

// Stop stops advancing the clock and resets the beat position to 0.
func (m *Metronome) Stop() {
	m.running = false
	m.beatPosition = 0
	m.previousBeatPosition = 0
}

func (m *Metronome) Running() bool { return m.running }

func (m *Metronome) BeatPosition() float64 { return m.beatPosition }

// Tick advances the clock by dt seconds and returns the list of
// intervals (in declaration order) that passed during this tick.
func (m *Metronome) Tick(dt float64, passed []float64) []float64 {
	passed = passed[:0]
	if !m.running {
		return passed
	}
	m.previousBeatPosition = m.beatPosition
	m.beatPosition += dt * m.tempo / 60
	for _, interval := range m.intervals {
		if m.IntervalPassed(interval) {
			passed = append(passed, interval)
		}
	}
	return passed
}

// IntervalPassed reports whether interval I passed between the previous
// and current beat position, per spec.md §3: floor(beat/I) > floor(prev/I).
func (m *Metronome) IntervalPassed(interval float64) bool {
	if interval <= 0 {
		return false
	}
	return math.Floor(m.beatPosition/interval) > math.Floor(m.previousBeatPosition/interval)
}
