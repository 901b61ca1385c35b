package tween

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

// TestGlideReachesTargetWithinDuration is the round-trip law behind
// spec.md §8's WaitSeconds property applied to tweens: a glide of any
// duration reaches its target exactly once total elapsed time meets the
// duration, regardless of how it is chopped into dt steps.
func TestGlideReachesTargetWithinDuration(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Float64Range(-1000, 1000).Draw(t, "start")
		target := rapid.Float64Range(-1000, 1000).Draw(t, "target")
		duration := rapid.Float64Range(0.001, 10).Draw(t, "duration")
		steps := rapid.IntRange(1, 200).Draw(t, "steps")

		v := New(start)
		v.Set(target, duration)
		dt := duration / float64(steps)
		for i := 0; i < steps; i++ {
			v.Advance(dt)
		}
		if math.Abs(v.Current-target) > 1e-6 {
			t.Fatalf("after summing dt == duration, Current = %v, want %v", v.Current, target)
		}
		if !v.Done() {
			t.Fatalf("expected Done() once total elapsed reaches duration")
		}
	})
}

// TestGlideNeverOvershoots checks the value always stays within
// [min(start,target), max(start,target)] no matter how Advance is called.
func TestGlideNeverOvershoots(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Float64Range(-1000, 1000).Draw(t, "start")
		target := rapid.Float64Range(-1000, 1000).Draw(t, "target")
		duration := rapid.Float64Range(0.001, 10).Draw(t, "duration")

		lo, hi := start, target
		if lo > hi {
			lo, hi = hi, lo
		}

		v := New(start)
		v.Set(target, duration)
		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		dt := duration / float64(steps) / 2 // under-advance on purpose
		for i := 0; i < steps; i++ {
			v.Advance(dt)
			if v.Current < lo-1e-6 || v.Current > hi+1e-6 {
				t.Fatalf("Current = %v escaped [%v, %v]", v.Current, lo, hi)
			}
		}
	})
}
