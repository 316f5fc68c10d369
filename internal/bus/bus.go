package bus

import (
	"sync"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
)

// Bus provides fan-out pub/sub semantics for *domain.Snapshot messages.
// Each Subscribe call gets its own channel that receives every future
// publication. Past snapshots are not replayed. The implementation is safe
// for concurrent publishers and subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *domain.Snapshot
}

// New creates a ready-to-use Bus.
func New() *Bus { return &Bus{} }

// Subscribe returns a read-only channel that will receive all future
// snapshots.
func (b *Bus) Subscribe() <-chan *domain.Snapshot {
	ch := make(chan *domain.Snapshot, 1) // small buffer avoids blocking
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the snapshot to all subscribers in a best-effort,
// non-blocking way. A subscriber whose buffer is full skips this snapshot
// and picks up the next one; the producer never stalls.
func (b *Bus) Publish(s *domain.Snapshot) {
	b.mu.RLock()
	subs := make([]chan *domain.Snapshot, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
			continue
		}
	}
}
