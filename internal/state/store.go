package state

import (
	"sync"

	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/protocol"
)

// Store publishes snapshots to subscribers. Reads are safe from any
// goroutine; mutation goes through the Writer returned by NewStore.
type Store struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   map[uint64]chan Snapshot
	nextID uint64
}

// Writer is the only handle able to apply events to a Store.
type Writer struct {
	store *Store
}

func NewStore(self models.User) (*Store, *Writer) {
	s := &Store{
		snap: Snapshot{Self: self, Status: StatusDisconnected},
		subs: make(map[uint64]chan Snapshot),
	}
	return s, &Writer{store: s}
}

// Apply reduces ev into the store and publishes the result when anything
// changed.
func (w *Writer) Apply(ev protocol.Event) []notify.Notification {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	next, notes := Reduce(s.snap, ev)
	if !changed(s.snap, next) {
		return notes
	}
	next.Version = s.snap.Version + 1
	s.snap = next
	for _, ch := range s.subs {
		offer(ch, next)
	}
	return notes
}

// Snapshot returns the state the writer will reduce the next event into.
func (w *Writer) Snapshot() Snapshot {
	return w.store.Snapshot()
}

// Subscribe returns a channel that always holds the latest snapshot not yet
// received. Intermediate snapshots are skipped for slow readers. The current
// snapshot is delivered immediately.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	ch <- s.snap
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Messages filters the current conversation with peer (zero for general)
// and applies a text search.
func (s *Store) Messages(peer models.ID, query string) []models.Message {
	snap := s.Snapshot()
	return Search(snap.Conversation(peer), query)
}

func (s *Store) IsTyping(peer models.ID) bool {
	return s.Snapshot().IsTyping(peer)
}

func (s *Store) Unread() int {
	return s.Snapshot().Unread
}

// offer replaces any unread snapshot in ch. Only the writer sends, under
// the store lock, so the send after draining cannot block.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

func changed(a, b Snapshot) bool {
	return a.Status != b.Status ||
		a.Unread != b.Unread ||
		a.Self != b.Self ||
		!sameBacking(a.Messages, b.Messages) ||
		!sameBacking(a.Online, b.Online) ||
		!sameBacking(a.Typing, b.Typing)
}

// sameBacking reports whether two slices are the identical value. Reduce
// allocates a new slice for every modification, so identity is enough.
func sameBacking[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}
