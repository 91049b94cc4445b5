package core

// UnreadTracker maintains a per-connection counter of messages that were
// delivered to the connection but not yet acknowledged with a read receipt.
type UnreadTracker struct {
	counts *SyncMap[string, int]
}

func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{
		counts: NewSyncMap[string, int](),
	}
}

// Increment bumps the counter for the connection and returns the new value.
func (t *UnreadTracker) Increment(connID string) int {
	return t.counts.LoadAndStore(connID, func(v int, _ bool) int {
		return v + 1
	})
}

// Decrement lowers the counter for the connection, never below zero, and
// returns the new value.
func (t *UnreadTracker) Decrement(connID string) int {
	return t.counts.LoadAndStore(connID, func(v int, _ bool) int {
		if v <= 0 {
			return 0
		}
		return v - 1
	})
}

// Count returns the connection's current counter.
func (t *UnreadTracker) Count(connID string) int {
	v, _ := t.counts.Load(connID)
	return v
}

// Reset drops the connection's counter entirely.
func (t *UnreadTracker) Reset(connID string) {
	t.counts.Delete(connID)
}
