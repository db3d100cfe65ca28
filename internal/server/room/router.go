// Package room tracks which connections belong to which project room and
// fans frames out to them.
package room

import (
	"sort"
	"sync"

	"github.com/dmitrijs2005/coderoom/internal/server/metrics"
	"github.com/google/uuid"
)

// DefaultQueueSize is the per-member outbound buffer.
const DefaultQueueSize = 64

// Member is one connection joined to one room. Frames queued for it are
// read from Outbound by a single writer, so per-connection order holds.
type Member struct {
	ID     string
	Room   string
	UserID string

	send   chan []byte
	closed bool
}

// Outbound is closed when the member leaves.
func (m *Member) Outbound() <-chan []byte { return m.send }

type Router struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Member]struct{}
	queueSize int
	metrics   *metrics.Metrics
}

func NewRouter(m *metrics.Metrics, queueSize int) *Router {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Router{
		rooms:     make(map[string]map[*Member]struct{}),
		queueSize: queueSize,
		metrics:   m,
	}
}

// Join adds a new member for userID to roomID, creating the room if needed.
func (r *Router) Join(roomID, userID string) *Member {
	m := &Member{
		ID:     uuid.NewString(),
		Room:   roomID,
		UserID: userID,
		send:   make(chan []byte, r.queueSize),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Member]struct{})
		r.rooms[roomID] = members
	}
	members[m] = struct{}{}

	r.metrics.ActiveConnections.Inc()
	r.metrics.ActiveRooms.Set(float64(len(r.rooms)))
	return m
}

// Leave removes m and closes its queue. Empty rooms are discarded.
// Calling it twice is a no-op.
func (r *Router) Leave(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.send)

	if members, ok := r.rooms[m.Room]; ok {
		delete(members, m)
		if len(members) == 0 {
			delete(r.rooms, m.Room)
		}
	}

	r.metrics.ActiveConnections.Dec()
	r.metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// Broadcast queues frame for every member of from's room except from and
// returns how many members accepted it.
func (r *Router) Broadcast(from *Member, frame []byte) int {
	return r.deliver(from.Room, from, frame)
}

// Emit queues frame for every member of roomID.
func (r *Router) Emit(roomID string, frame []byte) int {
	return r.deliver(roomID, nil, frame)
}

func (r *Router) deliver(roomID string, skip *Member, frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for m := range r.rooms[roomID] {
		if m == skip {
			continue
		}
		select {
		case m.send <- frame:
			delivered++
			r.metrics.MessagesRelayed.Inc()
		default:
			r.metrics.MessagesDropped.Inc()
		}
	}
	return delivered
}

// Size is the number of members in roomID.
func (r *Router) Size(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Rooms lists the ids of non-empty rooms, sorted.
func (r *Router) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close removes every member, closing all queues.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, members := range r.rooms {
		for m := range members {
			if !m.closed {
				m.closed = true
				close(m.send)
				r.metrics.ActiveConnections.Dec()
			}
		}
		delete(r.rooms, id)
	}
	r.metrics.ActiveRooms.Set(0)
}
