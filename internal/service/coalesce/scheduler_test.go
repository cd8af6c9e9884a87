package coalesce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	s.Schedule("conv-1", 20*time.Millisecond, func() { close(fired) })

	if !s.Pending("conv-1") {
		t.Error("expected timer to be pending after Schedule")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	// The handle is forgotten once the timer fires.
	deadline := time.Now().Add(time.Second)
	for s.Pending("conv-1") {
		if time.Now().After(deadline) {
			t.Fatal("expected handle to be forgotten after fire")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerRearmCancelsPrevious(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fires atomic.Int32
	for range 5 {
		s.Schedule("conv-1", 50*time.Millisecond, func() { fires.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	if got := fires.Load(); got != 1 {
		t.Errorf("expected exactly one fire after re-arms, got %d", got)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fires atomic.Int32
	s.Schedule("conv-1", 30*time.Millisecond, func() { fires.Add(1) })
	s.Cancel("conv-1")

	if s.Pending("conv-1") {
		t.Error("expected no pending timer after Cancel")
	}

	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Errorf("expected no fires after Cancel, got %d", got)
	}

	// Cancelling an unknown conversation is a no-op.
	s.Cancel("conv-unknown")
}

func TestSchedulerTracksConversationsIndependently(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	firedA := make(chan struct{})
	firedB := make(chan struct{})
	s.Schedule("conv-a", 20*time.Millisecond, func() { close(firedA) })
	s.Schedule("conv-b", 20*time.Millisecond, func() { close(firedB) })

	for _, ch := range []chan struct{}{firedA, firedB} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timer did not fire")
		}
	}
}

func TestSchedulerStopCancelsAll(t *testing.T) {
	s := NewScheduler()

	var fires atomic.Int32
	s.Schedule("conv-a", 30*time.Millisecond, func() { fires.Add(1) })
	s.Schedule("conv-b", 30*time.Millisecond, func() { fires.Add(1) })
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Errorf("expected no fires after Stop, got %d", got)
	}
}
