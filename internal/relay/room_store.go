// internal/relay/room_store.go
package relay

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// RoomStore tracks live rooms by code.
type RoomStore struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	logger *logrus.Logger
}

// NewRoomStore builds an empty store.
func NewRoomStore(logger *logrus.Logger) *RoomStore {
	return &RoomStore{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
}

// GetOrCreate returns the room for code, creating it on first use. Rooms
// delete themselves from the store when their last peer leaves.
func (s *RoomStore) GetOrCreate(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[code]; ok {
		return r
	}
	r := NewRoom(code, s.logger)
	r.OnEmpty = s.Delete
	s.rooms[code] = r
	s.logger.WithField("room", code).Info("room created")
	return r
}

// Delete removes a room from the store.
func (s *RoomStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	s.logger.WithField("room", code).Info("room deleted")
}

// Count returns the number of live rooms.
func (s *RoomStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
