package pipeline

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestActivityLogBounded(t *testing.T) {
	log := NewActivityLog(3, testLogger())

	for i := 1; i <= 5; i++ {
		log.Append("s1", EntryStatus, fmt.Sprintf("entry %d", i))
	}

	if log.Len() != 3 {
		t.Fatalf("Expected 3 retained entries, got %d", log.Len())
	}

	entries := log.Recent(0)
	for i, want := range []string{"entry 3", "entry 4", "entry 5"} {
		if entries[i].Text != want {
			t.Errorf("Entry %d: expected %q, got %q", i, want, entries[i].Text)
		}
	}
	if entries[2].Seq != 5 {
		t.Errorf("Expected newest seq 5, got %d", entries[2].Seq)
	}

	latest := log.Recent(2)
	if len(latest) != 2 || latest[0].Text != "entry 4" {
		t.Errorf("Unexpected recent entries %+v", latest)
	}
}

func TestActivityLogSubscribe(t *testing.T) {
	log := NewActivityLog(10, testLogger())

	ch, cancel := log.Subscribe(4)
	log.Append("s1", EntryTranscript, "Transcript: hello")

	select {
	case e := <-ch:
		if e.Kind != EntryTranscript || e.Text != "Transcript: hello" {
			t.Errorf("Unexpected entry %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscriber did not receive the entry")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed after cancel")
	}

	// Appending after unsubscribe must not panic.
	log.Append("s1", EntryStatus, "after cancel")
}

func TestActivityLogSlowSubscriberDoesNotBlock(t *testing.T) {
	log := NewActivityLog(10, testLogger())
	_, cancel := log.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			log.Append("s1", EntryStatus, "tick")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Append blocked on a full subscriber")
	}
}

func TestActivityLogConcurrentAppend(t *testing.T) {
	log := NewActivityLog(1000, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log.Append("s1", EntryStatus, "x")
			}
		}()
	}
	wg.Wait()

	entries := log.Recent(0)
	if len(entries) != 500 {
		t.Fatalf("Expected 500 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Fatalf("Sequence not increasing at %d", i)
		}
	}
}
