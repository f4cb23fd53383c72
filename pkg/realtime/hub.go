// Package realtime carries accepted mutations to the clients watching each
// project. The Hub is both the room registry (projectId -> live sessions) and
// the broadcaster; it owns no persistence — events are best-effort
// notifications and the store stays the source of truth.
package realtime

import (
	"fmt"
	"sort"
	"sync"

	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"

	"github.com/google/uuid"
)

// TopicAllProjects is the global topic carrying project-creation events for
// the public project directory. It is a distinct topic, not a special case of
// the per-project rooms; every registered session receives it.
const TopicAllProjects = "allProjects"

// sendBufferSize bounds the per-session delivery queue. A session whose
// buffer is full is dropped from the hub rather than stalling the publisher.
const sendBufferSize = 64

// Session is one connected client as the hub sees it. The transport side
// (pkg/realtime/conn.go, or a test) drains Events and is responsible for
// calling Hub.Unregister when the connection dies.
type Session struct {
	ID     string
	UserID string
	send   chan models.ChangeEvent
}

// Events is the ordered stream of ChangeEvents routed to this session.
// The channel is closed when the session is unregistered or dropped.
func (s *Session) Events() <-chan models.ChangeEvent {
	return s.send
}

// Hub routes ChangeEvents to the sessions joined to each project room.
// All maps are guarded by mu; Publish holds the write lock for the whole
// fan-out so events for the same project reach every session in publish order.
type Hub struct {
	mu sync.RWMutex
	// rooms maps topic (projectId or TopicAllProjects) -> joined sessions
	rooms map[string]map[*Session]struct{}
	// joined maps session -> topics it is in, for disconnect cleanup
	joined map[*Session]map[string]struct{}
}

// NewHub creates an empty hub. The hub is injected into the mutation gateway
// and the websocket handler; there is no package-level instance.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Session]struct{}),
		joined: make(map[*Session]map[string]struct{}),
	}
}

// Register creates a session for an authenticated connection and subscribes
// it to the global allProjects topic.
func (h *Hub) Register(userID string) *Session {
	id, err := utils.GenerateURLToken(16)
	if err != nil {
		id = uuid.New().String()
	}
	s := &Session{
		ID:     id,
		UserID: userID,
		send:   make(chan models.ChangeEvent, sendBufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.joined[s] = make(map[string]struct{})
	h.joinLocked(s, TopicAllProjects)
	return s
}

// Unregister removes the session from every room it joined and closes its
// event stream. Called by the transport on connection teardown; mandatory to
// keep dead connections out of delivery.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

// Join subscribes the session to a project room. Idempotent.
func (h *Hub) Join(s *Session, projectID string) {
	if projectID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.joined[s]; !ok {
		return // already unregistered
	}
	h.joinLocked(s, projectID)
}

// Leave unsubscribes the session from a project room. Idempotent.
func (h *Hub) Leave(s *Session, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, projectID)
}

// MembersOf returns the session ids currently joined to a project room.
func (h *Hub) MembersOf(projectID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[projectID]
	ids := make([]string, 0, len(room))
	for s := range room {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// Publish fans the event out to every session in its topic at this moment.
// Sessions joining afterwards do not receive it; they catch up with a full
// read. Delivery is fire-and-forget: a session whose buffer is full is
// dropped from the hub so it can never stall the publisher or its peers.
func (h *Hub) Publish(ev models.ChangeEvent) {
	topic := ev.ProjectID
	if ev.Entity == models.EntityProject && ev.Kind == models.EventCreate {
		topic = TopicAllProjects
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Session
	for s := range h.rooms[topic] {
		select {
		case s.send <- ev:
		default:
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		fmt.Printf("[realtime] dropping slow session %s (topic=%s)\n", s.ID, topic)
		h.dropLocked(s)
	}
}

// joinLocked adds s to a topic; caller holds mu
func (h *Hub) joinLocked(s *Session, topic string) {
	room, ok := h.rooms[topic]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[topic] = room
	}
	room[s] = struct{}{}
	h.joined[s][topic] = struct{}{}
}

// leaveLocked removes s from a topic; caller holds mu
func (h *Hub) leaveLocked(s *Session, topic string) {
	if room, ok := h.rooms[topic]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, topic)
		}
	}
	if topics, ok := h.joined[s]; ok {
		delete(topics, topic)
	}
}

// dropLocked removes s from every topic and closes its stream; caller holds mu
func (h *Hub) dropLocked(s *Session) {
	topics, ok := h.joined[s]
	if !ok {
		return // already dropped
	}
	for topic := range topics {
		if room, roomOK := h.rooms[topic]; roomOK {
			delete(room, s)
			if len(room) == 0 {
				delete(h.rooms, topic)
			}
		}
	}
	delete(h.joined, s)
	close(s.send)
}
