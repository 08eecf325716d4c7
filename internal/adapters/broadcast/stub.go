package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"trend-launch/internal/domain"
)

// StubRoom — состояние комнаты в заглушке провайдера.
type StubRoom struct {
	Room         domain.Room
	Name         string
	Live         bool
	Stopped      bool
	Participants int
	Recordings   []domain.Recording
}

// Stub — провайдер трансляций в памяти для dev-окружения и тестов.
type Stub struct {
	mu    sync.Mutex
	rooms map[string]*StubRoom
	// Err, если задан, возвращается всеми вызовами.
	Err error
	// RecordingBaseURL используется для записи, создаваемой при остановке эфира.
	RecordingBaseURL string
}

var _ domain.BroadcastProvider = (*Stub)(nil)

// NewStub создаёт заглушку провайдера.
func NewStub() *Stub {
	return &Stub{rooms: make(map[string]*StubRoom), RecordingBaseURL: "https://recordings.local"}
}

// CreateRoom реализует domain.BroadcastProvider.
func (s *Stub) CreateRoom(_ context.Context, name string, private bool) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Room{}, s.Err
	}
	room := domain.Room{ID: uuid.NewString(), Private: private}
	s.rooms[room.ID] = &StubRoom{Room: room, Name: name}
	return room, nil
}

// StartBroadcast реализует domain.BroadcastProvider.
func (s *Stub) StartBroadcast(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.roomLocked(roomID)
	if err != nil {
		return err
	}
	room.Live = true
	return nil
}

// StopBroadcast реализует domain.BroadcastProvider. Остановка создаёт запись эфира.
func (s *Stub) StopBroadcast(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.roomLocked(roomID)
	if err != nil {
		return err
	}
	if room.Live {
		room.Recordings = append(room.Recordings, domain.Recording{
			URL:       fmt.Sprintf("%s/%s.mp4", s.RecordingBaseURL, roomID),
			StartedAt: time.Now().UTC(),
		})
	}
	room.Live = false
	room.Stopped = true
	return nil
}

// ListParticipants реализует domain.BroadcastProvider.
func (s *Stub) ListParticipants(_ context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.roomLocked(roomID)
	if err != nil {
		return 0, err
	}
	return room.Participants, nil
}

// ListRecordings реализует domain.BroadcastProvider.
func (s *Stub) ListRecordings(_ context.Context, roomID string) ([]domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.roomLocked(roomID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Recording(nil), room.Recordings...), nil
}

// SetParticipants задаёт число зрителей комнаты.
func (s *Stub) SetParticipants(roomID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		room.Participants = n
	}
}

// Room возвращает копию состояния комнаты.
func (s *Stub) Room(roomID string) (StubRoom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return StubRoom{}, false
	}
	return *room, true
}

func (s *Stub) roomLocked(roomID string) (*StubRoom, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s not found", roomID)
	}
	return room, nil
}
