package watching

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/prosoft-labs/corefs/pkg/internal/direntry"
	"github.com/prosoft-labs/corefs/pkg/logging"
)

// packageLogger is the root logger for this package's long-lived goroutines
// (platform workers, dispatch queues), matching the teacher's convention of
// a package-level sublogger derived from logging.RootLogger.
var packageLogger = logging.RootLogger.Sublogger("watching")

// Monitor establishes a non-recursive change subscription rooted at path:
// only direct children of path generate notifications. Not every backend
// can offer this natively; platforms without a non-recursive primitive
// return a not_supported error, per the documented behavior that darwin
// (where FSEvents has no non-recursive mode) always does so.
func Monitor(path string, config ChangeConfig, callback func(*Notification)) (Registration, error) {
	return start(path, config, callback, false)
}

// RecursiveMonitor establishes a change subscription rooted at path covering
// the full subtree beneath it.
func RecursiveMonitor(path string, config ChangeConfig, callback func(*Notification)) (Registration, error) {
	return start(path, config, callback, true)
}

// start is the shared implementation behind Monitor and RecursiveMonitor.
func start(path string, config ChangeConfig, callback func(*Notification), recursive bool) (Registration, error) {
	if path == "" {
		return Registration{}, newError(KindInvalidArgument, errors.New("empty path"))
	}
	if err := config.validate(); err != nil {
		return Registration{}, err
	}
	normalized, err := direntry.Normalize(path)
	if err != nil {
		return Registration{}, newError(KindInvalidArgument, err)
	}

	var resumeUUID string
	var stopID uint64
	if config.Resume != nil {
		resumeUUID = config.Resume.UUID
	}

	s := newState(callback, normalized, nil)
	s.volumeUUID = resumeUUID
	s.eventsMask = config.Events
	if config.Resume != nil {
		s.lastEventID = config.Resume.EventID
	}

	logger := packageLogger.Sublogger("registration")

	var b backend
	if recursive {
		b, err = newRecursiveBackend(normalized, config, s, logger)
	} else {
		b, err = newBackend(normalized, config, s, logger)
	}
	if err != nil {
		s.closeDispatch()
		return Registration{}, err
	}
	s.backend = b

	if s.volumeUUID == "" {
		id, uuidErr := uuid.NewRandom()
		if uuidErr != nil {
			s.backend.stop()
			s.closeDispatch()
			return Registration{}, newError(KindMonitorCreate, uuidErr)
		}
		s.volumeUUID = id.String()
	}

	// A resume's volume identifier is checked for any resume, not only a
	// replay-to-current one: starting from a stale/foreign stream identity
	// is rejected outright rather than silently starting fresh.
	if config.Resume != nil {
		if config.Resume.UUID != "" && config.Resume.UUID != s.volumeUUID {
			s.backend.stop()
			s.closeDispatch()
			return Registration{}, newError(KindMonitorThaw, nil)
		}
	}

	if config.Resume != nil && config.ReplayToCurrentEvent {
		// stopID is the stream's current id at subscription time, kept
		// strictly distinct from s.lastEventID (the resume token's
		// already-delivered id): the boundary must fire after the full
		// historical backlog, not after the first replayed event.
		stopID = s.backend.currentEventID()
		if stopID < s.lastEventID {
			s.backend.stop()
			s.closeDispatch()
			return Registration{}, newError(KindMonitorReplayPast, nil)
		}
		s.mu.Lock()
		s.stopID = stopID
		s.mu.Unlock()
	}

	id := globalRegistrations.insert(s)
	return Registration{id: id}, nil
}

// Stop terminates a registration synchronously: once it returns, no further
// notifications for the registration will be delivered.
func Stop(registration Registration) {
	s, ok := globalRegistrations.find(registration.id)
	if !ok {
		return
	}
	s.stopAndWait()
}
