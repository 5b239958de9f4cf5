package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-exchange/internal/models"
)

var (
	// ErrNotFound is returned when the ride id has no record.
	ErrNotFound = errors.New("ride not found")
	// ErrAlreadyArrived is returned by SetArrived when the ride was already
	// invoiced; the original cost must not change.
	ErrAlreadyArrived = errors.New("ride already arrived")
)

// RideStore is the durable record of rides. A ride with Arrived unset is
// "active" and blocks both of its parties from starting another match.
type RideStore interface {
	Create(ctx context.Context, r *models.Ride) (string, error)
	Get(ctx context.Context, id string) (*models.Ride, error)
	AppendChat(ctx context.Context, id string, entry models.ChatEntry) error
	SetArrived(ctx context.Context, id string, cost int) error
	FindActiveByDriver(ctx context.Context, driverID string) (*models.Ride, error)
	FindActiveByRider(ctx context.Context, riderID string) (*models.Ride, error)
}

// MemoryStore keeps rides in a mutex-protected map. Used for local runs and
// tests; the postgres variant carries the same semantics.
type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]*models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]*models.Ride)}
}

func (m *MemoryStore) Create(_ context.Context, r *models.Ride) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	cp := *r
	cp.Chat = append([]models.ChatEntry(nil), r.Chat...)
	m.rides[r.ID] = &cp
	return r.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.Chat = append([]models.ChatEntry(nil), r.Chat...)
	return &cp, nil
}

func (m *MemoryStore) AppendChat(_ context.Context, id string, entry models.ChatEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrNotFound
	}
	r.Chat = append(r.Chat, entry)
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetArrived(_ context.Context, id string, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrNotFound
	}
	if r.Arrived {
		return ErrAlreadyArrived
	}
	r.Arrived = true
	r.Cost = cost
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) FindActiveByDriver(_ context.Context, driverID string) (*models.Ride, error) {
	return m.findActive(func(r *models.Ride) bool { return r.DriverID == driverID })
}

func (m *MemoryStore) FindActiveByRider(_ context.Context, riderID string) (*models.Ride, error) {
	return m.findActive(func(r *models.Ride) bool { return r.RiderID == riderID })
}

func (m *MemoryStore) findActive(match func(*models.Ride) bool) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if !r.Arrived && match(r) {
			cp := *r
			cp.Chat = append([]models.ChatEntry(nil), r.Chat...)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
