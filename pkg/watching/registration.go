package watching

import (
	"fmt"
	"os"
	"sync"
)

// backend is the per-platform half of a registration: whatever owns the
// native subscription and can be asked to tear it down. Platform files
// (monitor_darwin.go, monitor_linux.go, monitor_windows.go,
// monitor_unsupported.go) each provide a constructor returning one of these.
type backend interface {
	// stop tears down the native subscription. It must be safe to call
	// exactly once and must not return until the platform has acknowledged
	// teardown (the synchronous stop semantics required by the external
	// contract).
	stop()

	// currentEventID returns the event id representing "now" on this
	// subscription's event stream, independent of anything delivered so
	// far. It backs replay-to-current-event's stop point, kept strictly
	// distinct from a resume token's already-delivered id.
	currentEventID() uint64
}

// state is the per-registration shared state, grounded on
// original_source's change_state / platform_state
// (filesystem_change_monitor.hpp, fsevents_monitor.cpp). It is reference
// counted implicitly by Go's garbage collector, but its *liveness* as a
// registration is governed explicitly by table membership, not by GC: a
// canceled or stopped registration is removed from the table immediately
// even though the Go value may still be reachable from in-flight goroutines.
type state struct {
	// id is a monotonic identity minted at table-insertion time. In the
	// C++ original, a ChangeRegistration compares itself against a
	// ChangeNotification by raw pointer identity
	// (reinterpret_cast<uintptr_t>(state.lock().get())). Go's moving GC
	// makes a raw pointer unsafe to use as a stable map key or wire
	// identifier, so this minted id stands in for that pointer value
	// everywhere the original compares identities.
	id uint64

	mu sync.Mutex
	// canceled is set once a cancellation notification has been delivered
	// or Stop has been called; once true it never reverts.
	canceled bool

	// callback is the client callback; invoked only from this state's
	// dispatch queue goroutine, so callbacks for a single registration
	// never overlap.
	callback func(*Notification)

	// dispatch is the per-registration serial executor: a bounded queue of
	// thunks, drained one at a time by a single goroutine, generalizing the
	// teacher's per-registration dispatch-queue abstraction.
	dispatch  chan func()
	done      chan struct{}
	closeOnce sync.Once

	// lastEventID is updated strictly before invoking the client callback,
	// so a client serializing a resume token from inside the callback
	// observes pre-callback progress, per the ordering guarantee in the
	// spec's concurrency model.
	lastEventID uint64

	// stopID, if non-zero, is the event id at or beyond which the
	// normalizer should synthesize a replay boundary and cancel.
	stopID uint64

	// volumeUUID identifies the event stream for resume-token purposes.
	volumeUUID string

	// eventsMask restricts which event kinds reach the client callback, per
	// ChangeConfig.Events. EventCanceled and EventReplayEnd always pass
	// through regardless of this mask, since a client must always learn that
	// a registration has terminated.
	eventsMask Event

	// rootPath is the path the registration was started on; canonicalRoot,
	// if set, recovers the current path after the platform reports the
	// root itself was renamed.
	rootPath      string
	canonicalRoot func() (string, error)

	backend backend
}

// newState constructs registration state and starts its dispatch queue.
func newState(callback func(*Notification), rootPath string, canonicalRoot func() (string, error)) *state {
	s := &state{
		callback:      callback,
		rootPath:      rootPath,
		canonicalRoot: canonicalRoot,
		dispatch:      make(chan func(), 64),
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

// run drains the dispatch queue until closed.
func (s *state) run() {
	defer close(s.done)
	for task := range s.dispatch {
		task()
	}
}

// enqueue submits a thunk to the dispatch queue. It is a no-op once the
// registration has been removed from the table and its queue closed.
func (s *state) enqueue(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canceled {
		return
	}
	select {
	case s.dispatch <- task:
	default:
		// Queue saturated; drop rather than block the platform worker
		// indefinitely. A saturated per-registration queue means the
		// client callback is falling behind, which is a client bug, not
		// something the library can safely recover from here.
	}
}

// deliver runs the callback for a single notification on the dispatch
// queue, updating lastEventID first as required by the ordering guarantee.
// A canceled notification also tears down the native subscription inline,
// mirroring the original's cancel(state) call from within its callback: a
// self-cancellation (rescan, root removal, replay boundary) must stop the
// platform stream just as an explicit Stop does, or it leaks.
func (s *state) deliver(n *Notification) {
	s.enqueue(func() {
		s.mu.Lock()
		// Event id 0 marks root-changed and replay-boundary notifications;
		// it carries no stream position, so the resume point is kept.
		if n.EventID != 0 {
			s.lastEventID = n.EventID
		}
		canceled := n.Event.Has(EventCanceled)
		if canceled {
			s.canceled = true
		}
		cb := s.callback
		s.mu.Unlock()

		if cb != nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						packageLogger.Error(fmt.Errorf("notification callback panicked: %v", r))
					}
				}()
				cb(n)
			}()
		}
		if canceled {
			globalRegistrations.remove(s.id)
			if s.backend != nil {
				s.backend.stop()
			}
			s.closeDispatch()
		}
	})
}

// closeDispatch closes the dispatch channel exactly once, however many of
// stopAndWait and a terminal deliver race to call it.
func (s *state) closeDispatch() {
	s.closeOnce.Do(func() {
		close(s.dispatch)
	})
}

// stopAndWait tears down the backend synchronously and waits for the
// dispatch queue to drain, matching the documented synchronous stop
// semantics.
func (s *state) stopAndWait() {
	s.mu.Lock()
	alreadyCanceled := s.canceled
	s.canceled = true
	s.mu.Unlock()

	if s.backend != nil {
		s.backend.stop()
	}

	if !alreadyCanceled {
		globalRegistrations.remove(s.id)
		s.closeDispatch()
	}
	<-s.done
}

// processBatch normalizes a batch of raw platform events against this
// registration's accumulated state and dispatches the resulting
// notifications in order. It is the bridge between a platform backend
// (which only knows how to translate native flags into rawEvent) and the
// registration's dispatch queue.
func (s *state) processBatch(raw []rawEvent) {
	s.mu.Lock()
	ctx := normalizeContext{
		exists:         pathExists,
		resolveRoot:    s.resolveCanonicalRoot,
		rootPath:       s.rootPath,
		registrationID: s.id,
		stopID:         s.stopID,
	}
	s.mu.Unlock()

	result := normalizeBatch(raw, ctx)
	for _, n := range result.notifications {
		always := n.Event & (EventCanceled | EventReplayEnd)
		requested := n.Event & s.eventsMask
		n.Event = always | requested
		if n.Event == 0 {
			continue
		}
		s.deliver(n)
	}
}

// resolveCanonicalRoot adapts state.canonicalRoot (which can fail) to the
// (path, ok) shape normalizeContext.resolveRoot expects.
func (s *state) resolveCanonicalRoot() (string, bool) {
	if s.canonicalRoot == nil {
		return "", false
	}
	path, err := s.canonicalRoot()
	if err != nil {
		return "", false
	}
	return path, true
}

// pathExists is the coalesced-remove heuristic's sole filesystem touch.
func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// snapshot returns the most recently dispatched event id along
// with the volume identifier, for resume-token serialization.
func (s *state) snapshot() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volumeUUID, s.lastEventID
}

// registrationTable is the process-wide table from opaque identity to
// shared state, grounded on original_source's
// std::vector<shared_state>+std::mutex (fsevents_monitor.cpp's
// monitor_registrations / monitor_registration_lck). A Go map keyed by the
// minted id plays the role of the linear-scan vector; lookups are O(1)
// instead of O(n), which is a strict improvement the Go port allows itself
// since it costs nothing in fidelity to the original's semantics (insert,
// find, remove under a single mutex).
type registrationTable struct {
	mu     sync.Mutex
	nextID uint64
	states map[uint64]*state
}

var globalRegistrations = &registrationTable{states: make(map[uint64]*state)}

// insert assigns a fresh identity to s, stores it in the table, and returns
// the identity.
func (t *registrationTable) insert(s *state) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	s.id = t.nextID
	t.states[s.id] = s
	return s.id
}

// find resolves an identity to its shared state, upgrading the raw
// identifier into a strong reference atomically under the table lock, as
// required by the registration table's contract.
func (t *registrationTable) find(id uint64) (*state, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	return s, ok
}

// remove evicts an identity from the table, if present.
func (t *registrationTable) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, id)
}

// Registration is a weak handle to a ChangeState. It does not own the
// state; its liveness is governed entirely by table membership.
type Registration struct {
	id uint64
}

// ID returns the registration's opaque identity. Notifications carry the
// same value in their RegistrationID field.
func (r Registration) ID() uint64 {
	return r.id
}

// Valid reports whether the registration still exists in the table and has
// not been canceled, mirroring state.exists_in_table && state.not_canceled.
func (r Registration) Valid() bool {
	s, ok := globalRegistrations.find(r.id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.canceled
}

// Equal reports whether r and n belong to the same registration, mirroring
// change_registration::operator==(change_registration, change_notification).
func (r Registration) Equal(n *Notification) bool {
	return n != nil && r.id == n.RegistrationID
}
