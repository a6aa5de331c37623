package watching

import "testing"

func TestEventHas(t *testing.T) {
	e := EventCreated | EventContentModified
	if !e.Has(EventCreated) {
		t.Fatal("expected EventCreated bit to be set")
	}
	if e.Has(EventRemoved) {
		t.Fatal("did not expect EventRemoved bit to be set")
	}
	if !e.Has(EventCreated | EventContentModified) {
		t.Fatal("expected combined mask to be present")
	}
}

func TestEventAny(t *testing.T) {
	e := EventRemoved
	if !e.Any(EventRemoved | EventRenamed) {
		t.Fatal("expected Any to match on a shared bit")
	}
	if e.Any(EventCreated) {
		t.Fatal("did not expect Any to match an absent bit")
	}
}

func TestEventAliases(t *testing.T) {
	if EventModified != EventContentModified|EventMetadataModified {
		t.Fatal("EventModified alias mismatch")
	}
	if EventRescanRequired != EventRescan|EventCanceled {
		t.Fatal("EventRescanRequired alias mismatch")
	}
}
