package notify

import (
	"testing"
)

func TestSubscribeReceivesAllChanges(t *testing.T) {
	n := New()
	defer n.Close()

	var got []Change
	n.Subscribe(func(c Change) { got = append(got, c) })

	n.NotifySet("writing.model", "a", "b", "test")
	n.NotifyDelete("writing.proxyUrl", "http://p", "test")
	n.NotifyReload("test")

	if len(got) != 3 {
		t.Fatalf("received %d changes, want 3", len(got))
	}
	if got[0].Type != ChangeSet || got[0].NewValue != "b" {
		t.Errorf("first change = %+v", got[0])
	}
	if got[2].Type != ChangeReload {
		t.Errorf("third change = %+v", got[2])
	}
}

func TestSubscribePathMatching(t *testing.T) {
	n := New()
	defer n.Close()

	var writingHits, modelHits int
	n.SubscribePath("writing", func(Change) { writingHits++ })
	n.SubscribePath("writing.model", func(Change) { modelHits++ })

	n.NotifySet("writing.model", nil, "x", "test")
	n.NotifySet("writing.temperature", nil, 0.5, "test")
	n.NotifySet("logging.level", nil, "debug", "test")

	if writingHits != 2 {
		t.Errorf("writing observer hits = %d, want 2", writingHits)
	}
	if modelHits != 1 {
		t.Errorf("writing.model observer hits = %d, want 1", modelHits)
	}

	// A prefix that is not a path parent must not match.
	var badHits int
	n.SubscribePath("writing.mod", func(Change) { badHits++ })
	n.NotifySet("writing.model", nil, "y", "test")
	if badHits != 0 {
		t.Errorf("non-parent prefix observer fired %d times", badHits)
	}
}

func TestReloadNotifiesPathObservers(t *testing.T) {
	n := New()
	defer n.Close()

	var hits int
	n.SubscribePath("writing.quickFixes", func(Change) { hits++ })
	n.NotifyReload("watcher")

	if hits != 1 {
		t.Errorf("path observer hits on reload = %d, want 1", hits)
	}
}

func TestUnsubscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var hits int
	sub := n.SubscribePath("writing", func(Change) { hits++ })
	n.NotifySet("writing.model", nil, "a", "test")
	sub.Unsubscribe()
	n.NotifySet("writing.model", nil, "b", "test")

	if hits != 1 {
		t.Errorf("hits after unsubscribe = %d, want 1", hits)
	}
}

func TestNotifyAfterClose(t *testing.T) {
	n := New()

	var hits int
	n.Subscribe(func(Change) { hits++ })
	n.Close()
	n.NotifySet("writing.model", nil, "a", "test")

	if hits != 0 {
		t.Errorf("observer fired after Close")
	}
}
