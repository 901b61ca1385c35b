// Package sound implements the immutable Sound bundle and the Store that
// the audio thread keeps them in (spec.md §3 Sound, §4.2).
package sound

import (
	"sync/atomic"

	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/kerr"
)

var nextID atomic.Uint64

// Id is an opaque, globally unique, monotonically allocated identifier.
// Equality is by the allocation index only.
type Id struct {
	index uint64
}

// NewId allocates a fresh Id. Safe to call from any thread (spec.md §5).
func NewId() Id {
	return Id{index: nextID.Add(1)}
}

func (id Id) Valid() bool { return id.index != 0 }

// Metadata is optional, caller-supplied information carried alongside a
// Sound's id (spec.md §3: "carries... user metadata (optional tempo)").
type Metadata struct {
	Tempo *float64
}

// Sound is an immutable bundle of sample-rate + interleaved stereo
// samples + computed duration.
type Sound struct {
	SampleRate      uint32
	Samples         []frame.Frame
	DurationSeconds float64
	Metadata        Metadata
}

// New constructs a Sound from already-decoded stereo frames.
func New(sampleRate uint32, samples []frame.Frame, meta Metadata) Sound {
	return Sound{
		SampleRate:      sampleRate,
		Samples:         samples,
		DurationSeconds: float64(len(samples)) / float64(sampleRate),
		Metadata:        meta,
	}
}

// FromDecoded normalises a decoder's (sampleRate, channels, samples)
// output into a Sound. channels==1 is broadcast to both outputs, 2 is
// kept verbatim; anything else is UnsupportedChannelConfiguration
// (spec.md §6).
func FromDecoded(sampleRate uint32, channels int, monoOrInterleaved []float32, meta Metadata) (Sound, error) {
	var samples []frame.Frame
	switch channels {
	case 1:
		samples = make([]frame.Frame, len(monoOrInterleaved))
		for i, v := range monoOrInterleaved {
			samples[i] = frame.FromMono(v)
		}
	case 2:
		if len(monoOrInterleaved)%2 != 0 {
			return Sound{}, kerr.ErrUnsupportedChannelConfiguration
		}
		samples = make([]frame.Frame, len(monoOrInterleaved)/2)
		for i := range samples {
			samples[i] = frame.Frame{Left: monoOrInterleaved[i*2], Right: monoOrInterleaved[i*2+1]}
		}
	default:
		return Sound{}, kerr.ErrUnsupportedChannelConfiguration
	}
	return New(sampleRate, samples, meta), nil
}

// SampleAt resamples the sound at positionSeconds using cubic interpolation.
func (s Sound) SampleAt(positionSeconds float64) frame.Frame {
	return frame.Interpolate(s.Samples, positionSeconds, s.SampleRate)
}

// Store is the audio thread's insertion-ordered mapping from Id to Sound,
// with a fixed capacity negotiated at construction.
type Store struct {
	capacity int
	order    []Id
	sounds   map[Id]Sound
}

func NewStore(capacity int) *Store {
	return &Store{
		capacity: capacity,
		sounds:   make(map[Id]Sound, capacity),
	}
}

// Insert adds or replaces the sound at id. Returns false if the store is
// at capacity and id is not already present.
func (s *Store) Insert(id Id, snd Sound) bool {
	if _, exists := s.sounds[id]; !exists {
		if len(s.order) >= s.capacity {
			return false
		}
		s.order = append(s.order, id)
	}
	s.sounds[id] = snd
	return true
}

// Remove deletes id from the store and returns the Sound that was there,
// if any.
func (s *Store) Remove(id Id) (Sound, bool) {
	snd, ok := s.sounds[id]
	if !ok {
		return Sound{}, false
	}
	delete(s.sounds, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return snd, true
}

func (s *Store) Get(id Id) (Sound, bool) {
	snd, ok := s.sounds[id]
	return snd, ok
}

// Each iterates sounds in stable insertion order, as required for a
// deterministic mix (spec.md §4.2).
func (s *Store) Each(fn func(Id, Sound)) {
	for _, id := range s.order {
		fn(id, s.sounds[id])
	}
}

func (s *Store) Len() int { return len(s.order) }
