package watching

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// State is the resume state for a registration: the identity of the volume
// or event stream it was observing, and the last event id that was
// delivered. It round-trips through Serialize/Deserialize as an opaque
// string (a JSON object), per original_source's change_config's state
// field and the external resume-token format.
//
// Deliberately serialized with the standard library's encoding/json rather
// than a third-party JSON library: the token is a fixed two-field object
// with no streaming, schema evolution, or performance requirements, so
// reaching for a library here would add a dependency without buying
// anything the standard encoder doesn't already provide byte-exactly.
type State struct {
	// UUID is the opaque volume/stream identifier.
	UUID string `json:"uuid"`
	// EventID is the last event id delivered for that stream.
	EventID uint64 `json:"evid"`
}

// resumeToken is the wire shape of a serialized State. It's kept distinct
// from State so that zero-value State never round-trips through a
// partially-populated JSON object by accident.
type resumeToken struct {
	UUID string `json:"uuid"`
	EvID uint64 `json:"evid"`
}

// Serialize captures a live Registration's current resume state and encodes
// it as an opaque resume token. A registration that has not yet observed a
// delivered event (empty volume identifier or event id 0) serializes to the
// empty string, matching the documented behavior for a not-yet-delivered
// state. Serialize resolves the registration through the process-wide table;
// once a registration has been canceled or explicitly stopped it is evicted
// from that table, and Serialize then returns the empty string rather than
// the last observed state. Per the ordering guarantee in spec.md §5
// (lastEventID is updated before the client callback runs), a caller that
// wants the resume point as of cancellation must call Serialize from inside
// the canceled-notification callback itself, before the eviction that
// follows it takes effect.
func Serialize(r Registration) (string, error) {
	s, ok := globalRegistrations.find(r.id)
	if !ok {
		return "", nil
	}
	uuid, eventID := s.snapshot()
	return serializeState(&State{UUID: uuid, EventID: eventID})
}

// serializeState is the pure encoding half of Serialize, split out so tests
// can exercise the wire format directly without constructing a live
// registration.
func serializeState(s *State) (string, error) {
	if s == nil || s.UUID == "" || s.EventID == 0 {
		return "", nil
	}
	data, err := json.Marshal(resumeToken{UUID: s.UUID, EvID: s.EventID})
	if err != nil {
		return "", errors.Wrap(err, "unable to encode resume token")
	}
	return string(data), nil
}

// Deserialize decodes an opaque resume token produced by Serialize. An empty
// input string deserializes to a default (zero-value) State. Unknown JSON
// fields are ignored. Malformed JSON returns an error.
func Deserialize(token string) (*State, error) {
	if token == "" {
		return &State{}, nil
	}
	var decoded resumeToken
	if err := json.Unmarshal([]byte(token), &decoded); err != nil {
		return nil, errors.Wrap(err, "unable to decode resume token")
	}
	return &State{UUID: decoded.UUID, EventID: decoded.EvID}, nil
}
