package watching

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/prosoft-labs/corefs/pkg/traverse"
)

// IncludeCreatedEvents and IncludeModifiedEvents extend
// traverse.DirectoryOptions with two bits meaningful only to
// ChangedDirectoryIterator, continuing the bitmask past traverse's own
// highest bit rather than introducing a parallel options type.
const (
	IncludeCreatedEvents  traverse.DirectoryOptions = 1 << 8
	IncludeModifiedEvents traverse.DirectoryOptions = 1 << 9
)

// notificationFilter is a predicate applied to a surviving notification
// before it is allowed into the deduplicating set. rescan_required
// notifications (EventRescan or EventCanceled) always bypass every filter.
type notificationFilter func(*Notification) bool

// isRegularFilter accepts only regular files, letting rescan/canceled
// notifications through regardless of file type (the bypass is handled by
// the caller, not by this predicate, but it's restated here defensively).
func isRegularFilter(n *Notification) bool {
	if n.Event.Any(EventRescanRequired) {
		return true
	}
	return n.FileType == FileTypeRegular
}

// existsFilter accepts only paths that currently exist on disk.
func existsFilter(n *Notification) bool {
	if n.Event.Any(EventRescanRequired) {
		return true
	}
	return pathExists(targetPath(n))
}

// targetPath extracts the deduplication key for a notification: its
// resolved rename destination if the rename was paired within a batch,
// otherwise its own path.
func targetPath(n *Notification) string {
	if n.RenamedToPath != "" {
		return n.RenamedToPath
	}
	return n.Path
}

// ChangedDirectoryIterator surfaces a deduplicated, insertion-ordered
// stream of changed paths beneath a watched root, built atop
// RecursiveMonitor. Grounded on original_source's change_iterator.cpp.
type ChangedDirectoryIterator struct {
	registration Registration

	mu       sync.Mutex
	set      map[string]struct{}
	order    []string
	done     bool
	onChange func(Registration)
}

// NewChangedDirectoryIterator constructs and starts a change iterator rooted
// at path. options must include at least one of IncludeCreatedEvents or
// IncludeModifiedEvents; construction otherwise fails with invalid argument.
func NewChangedDirectoryIterator(path string, options traverse.DirectoryOptions, config ChangeConfig) (*ChangedDirectoryIterator, error) {
	if !options.Has(IncludeCreatedEvents) && !options.Has(IncludeModifiedEvents) {
		return nil, newError(KindInvalidArgument, errors.New("at least one of IncludeCreatedEvents or IncludeModifiedEvents is required"))
	}

	iterator := &ChangedDirectoryIterator{
		set: make(map[string]struct{}),
	}

	var filters []notificationFilter
	filters = append(filters, isRegularFilter, existsFilter)

	wantMask := eventsForOptions(options)
	if config.Events == 0 {
		config.Events = wantMask
	}

	registration, err := RecursiveMonitor(path, config, func(n *Notification) {
		iterator.handle(n, filters)
	})
	if err != nil {
		return nil, err
	}
	iterator.registration = registration
	return iterator, nil
}

// eventsForOptions translates the change-iterator-only option bits into the
// corresponding event mask, so callers don't have to specify both.
func eventsForOptions(options traverse.DirectoryOptions) Event {
	var mask Event
	if options.Has(IncludeCreatedEvents) {
		mask |= EventCreated
	}
	if options.Has(IncludeModifiedEvents) {
		mask |= EventModified
	}
	return mask | EventRemoved | EventRenamed | EventRescan | EventCanceled
}

// handle applies the filter chain to an incoming notification, inserts the
// surviving non-empty target path into the deduplicating set, updates the
// done state, and invokes OnChange if set and either a new path was queued
// or the iterator has just become done. It runs on the underlying registration's
// dispatch queue, so it never overlaps with itself, but it does run
// concurrently with the public accessor methods below and therefore
// synchronizes on its own mutex rather than relying on that serialization.
func (c *ChangedDirectoryIterator) handle(n *Notification, filters []notificationFilter) {
	bypass := n.Event.Any(EventRescanRequired)

	accepted := bypass
	if !accepted {
		accepted = true
		for _, filter := range filters {
			if !filter(n) {
				accepted = false
				break
			}
		}
	}

	c.mu.Lock()
	var enqueued, finished bool
	if path := targetPath(n); accepted && path != "" {
		if _, exists := c.set[path]; !exists {
			c.set[path] = struct{}{}
			c.order = append(c.order, path)
			enqueued = true
		}
	}
	if n.Event.Any(EventCanceled) && !c.done {
		c.done = true
		finished = true
	}
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil && (enqueued || finished) {
		onChange(c.registration)
	}
}

// OnChange registers a callback invoked after every successful enqueue and
// after the iterator transitions to done. It may be invoked from the
// underlying registration's dispatch-queue goroutine and must be safe to
// call back into the iterator's public methods.
func (c *ChangedDirectoryIterator) OnChange(callback func(Registration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = callback
}

// Next returns the first queued path and removes it from the set. An empty
// return value means the set is currently empty, which is not the same as
// end-of-iteration; check AtEnd for that.
func (c *ChangedDirectoryIterator) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return ""
	}
	path := c.order[0]
	c.order = c.order[1:]
	delete(c.set, path)
	return path
}

// Extract atomically drains and returns every currently queued path.
func (c *ChangedDirectoryIterator) Extract() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return nil
	}
	drained := c.order
	c.order = nil
	c.set = make(map[string]struct{})
	return drained
}

// AtEnd reports whether the monitor has observed a terminal cancellation (or
// rescan-driven cancellation) and the queue is empty.
func (c *ChangedDirectoryIterator) AtEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done && len(c.order) == 0
}

// Equal reports whether the iterator's underlying registration is the same
// as r.
func (c *ChangedDirectoryIterator) Equal(r Registration) bool {
	return c.registration.id == r.id
}

// Registration returns the iterator's underlying registration, e.g. for
// passing to Stop or Serialize.
func (c *ChangedDirectoryIterator) Registration() Registration {
	return c.registration
}
