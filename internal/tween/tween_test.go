package tween

import "testing"

func TestSnapWhenDurationZero(t *testing.T) {
	v := New(1)
	v.Set(2, 0)
	if v.Current != 2 {
		t.Fatalf("Current = %v, want 2", v.Current)
	}
	if !v.Done() {
		t.Fatalf("expected Done() after a zero-duration set")
	}
}

func TestGlideLinearly(t *testing.T) {
	v := New(0)
	v.Set(10, 1.0)
	if v.Done() {
		t.Fatalf("should not be done right after Set")
	}
	v.Advance(0.25)
	if got := v.Current; got != 2.5 {
		t.Fatalf("Current at 25%% = %v, want 2.5", got)
	}
	v.Advance(0.75)
	if got := v.Current; got != 10 {
		t.Fatalf("Current at 100%% = %v, want 10", got)
	}
	if !v.Done() {
		t.Fatalf("expected Done() once elapsed >= duration")
	}
}

func TestAdvanceClampsPastTarget(t *testing.T) {
	v := New(0)
	v.Set(5, 0.1)
	v.Advance(10)
	if v.Current != 5 {
		t.Fatalf("Current = %v, want 5 (clamped)", v.Current)
	}
}

func TestSetTweenNilSnaps(t *testing.T) {
	v := New(1)
	v.SetTween(9, nil)
	if v.Current != 9 || !v.Done() {
		t.Fatalf("nil tween should snap immediately, got Current=%v Done=%v", v.Current, v.Done())
	}
}
