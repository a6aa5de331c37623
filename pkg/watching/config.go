package watching

import (
	"time"
)

// reservedFlagsMask restricts ChangeConfig.ReservedFlags to documented,
// platform-passthrough bits (ignore-self, mark-self), mirroring the
// original's validation of reserved_flags against a fixed mask.
const reservedFlagsMask = 0x3

// ChangeConfig carries the parameters for a monitor or recursive_monitor
// subscription, grounded on original_source's change_config struct
// (filesystem_change_monitor.hpp).
type ChangeConfig struct {
	// Events is the bit mask of event kinds the caller wants delivered.
	Events Event
	// NotificationLatency controls how aggressively the platform coalesces
	// events before delivering a batch. Zero means deliver as soon as
	// possible.
	NotificationLatency time.Duration
	// ReservedFlags is platform-specific passthrough (ignore-self,
	// mark-self). Restricted to reservedFlagsMask.
	ReservedFlags uint32
	// Resume, if non-nil, requests that the subscription resume from a
	// previously serialized State rather than starting fresh.
	Resume *State
	// ReplayToCurrentEvent, if true alongside Resume, requests that the
	// source record the current volume event id as a stop point and emit
	// EventReplayEnd (then cancel) once that point is reached.
	ReplayToCurrentEvent bool
}

// DefaultNotificationLatency matches the original's 1000ms default.
const DefaultNotificationLatency = 1000 * time.Millisecond

// DefaultChangeConfig returns a ChangeConfig with the documented defaults:
// all events, 1000ms coalescing latency, no reserved flags, no resume.
func DefaultChangeConfig() ChangeConfig {
	return ChangeConfig{
		Events:              eventAll,
		NotificationLatency: DefaultNotificationLatency,
	}
}

// eventAll is the full set of event bits a subscriber can request.
const eventAll = EventCreated | EventContentModified | EventMetadataModified |
	EventRemoved | EventRenamed | EventRescan | EventCanceled |
	EventOutsideTree | EventReplayEnd

// validate checks a ChangeConfig against the documented constraints:
// events != none, latency >= 0, reserved flags restricted to the documented
// mask.
func (c *ChangeConfig) validate() error {
	if c.Events == 0 {
		return newError(KindInvalidArgument, nil)
	}
	if c.NotificationLatency < 0 {
		return newError(KindInvalidArgument, nil)
	}
	if c.ReservedFlags&^reservedFlagsMask != 0 {
		return newError(KindInvalidArgument, nil)
	}
	return nil
}
