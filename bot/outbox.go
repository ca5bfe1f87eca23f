package bot

import (
	"sync"

	"github.com/BaSui01/skillhost/activity"
)

// Outbox buffers user-bound activities per conversation until the channel
// picks them up. Replies produced during a turn and activities posted back
// by skills both land here; consumers read past a cursor so nothing is
// delivered twice.
type Outbox struct {
	mu      sync.RWMutex
	entries map[string][]*activity.Activity
	limit   int
}

// NewOutbox creates an outbox. Each conversation keeps at most limit
// activities; older ones are dropped. A non-positive limit means unbounded.
func NewOutbox(limit int) *Outbox {
	return &Outbox{
		entries: make(map[string][]*activity.Activity),
		limit:   limit,
	}
}

// Append adds activities to a conversation's log and returns the new
// log length.
func (o *Outbox) Append(conversationID string, acts ...*activity.Activity) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	log := append(o.entries[conversationID], acts...)
	if o.limit > 0 && len(log) > o.limit {
		log = log[len(log)-o.limit:]
	}
	o.entries[conversationID] = log
	return len(log)
}

// After returns the activities appended after the given cursor position,
// along with the cursor for the end of the log. A cursor of 0 reads from
// the beginning.
func (o *Outbox) After(conversationID string, after int) ([]*activity.Activity, int) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	log := o.entries[conversationID]
	if after < 0 {
		after = 0
	}
	if after >= len(log) {
		return nil, len(log)
	}

	out := make([]*activity.Activity, len(log)-after)
	copy(out, log[after:])
	return out, len(log)
}

// Drop removes a conversation's log entirely.
func (o *Outbox) Drop(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, conversationID)
}

// Len returns the current log length for a conversation.
func (o *Outbox) Len(conversationID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries[conversationID])
}
