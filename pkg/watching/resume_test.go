package watching

import "testing"

func TestSerializeStateEmpty(t *testing.T) {
	token, err := serializeState(&State{})
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if token != "" {
		t.Fatalf("expected empty token for zero-value state, got %q", token)
	}
}

func TestSerializeStateRoundTrip(t *testing.T) {
	original := &State{UUID: "dev:42", EventID: 17}
	token, err := serializeState(original)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	decoded, err := Deserialize(token)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if decoded.UUID != original.UUID || decoded.EventID != original.EventID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestDeserializeEmptyString(t *testing.T) {
	state, err := Deserialize("")
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if state.UUID != "" || state.EventID != 0 {
		t.Fatalf("expected zero-value state, got %+v", state)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	if _, err := Deserialize("{not json"); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestDeserializeIgnoresUnknownFields(t *testing.T) {
	state, err := Deserialize(`{"uuid":"abc","evid":5,"extra":true}`)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if state.UUID != "abc" || state.EventID != 5 {
		t.Fatalf("unexpected decoded state: %+v", state)
	}
}
