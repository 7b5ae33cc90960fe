package session

import (
	"errors"
	"sync"
	"testing"
)

func TestNewHandleIsRunning(t *testing.T) {
	h := New()

	if !h.Running() {
		t.Fatal("new handle should be running")
	}
	if h.ID() == "" {
		t.Error("expected non-empty session id")
	}
	if New().ID() == h.ID() {
		t.Error("expected distinct session ids")
	}

	select {
	case <-h.Done():
		t.Fatal("done closed on a running handle")
	default:
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()

	if !h.Stop() {
		t.Error("first Stop should flip the handle")
	}
	if h.Stop() {
		t.Error("second Stop should be a no-op")
	}
	if h.Running() {
		t.Error("handle still running after Stop")
	}
	if h.Err() != nil {
		t.Errorf("Stop should not record an error, got %v", h.Err())
	}

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed after Stop")
	}
}

func TestFailRecordsFirstError(t *testing.T) {
	h := New()
	first := errors.New("stream reset")

	if !h.Fail(first) {
		t.Fatal("Fail should flip a running handle")
	}
	if h.Fail(errors.New("later")) {
		t.Error("second Fail should be a no-op")
	}
	if !errors.Is(h.Err(), first) {
		t.Errorf("expected first error, got %v", h.Err())
	}
}

func TestStopAfterFailKeepsError(t *testing.T) {
	h := New()
	cause := errors.New("device lost")
	h.Fail(cause)
	h.Stop()

	if !errors.Is(h.Err(), cause) {
		t.Errorf("expected %v, got %v", cause, h.Err())
	}
}

func TestConcurrentStop(t *testing.T) {
	h := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	flips := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.Stop() {
				mu.Lock()
				flips++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if flips != 1 {
		t.Errorf("expected exactly one flip, got %d", flips)
	}
}
