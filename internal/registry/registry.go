package registry

import (
	"errors"
	"sync"

	"github.com/example/ride-exchange/internal/models"
)

var (
	// ErrAlreadyQueued is returned when a rider already has a pending
	// request in any vehicle class.
	ErrAlreadyQueued = errors.New("rider already has a pending request")
	// ErrNotFound is returned by Dequeue when the rider has no pending
	// request in the given class. Under concurrent selects this is an
	// expected outcome, not a fault.
	ErrNotFound = errors.New("no pending request for rider")
)

// Pending holds the outstanding ride requests per vehicle class, in FIFO
// order. All operations take the same lock, so enqueue/dequeue interleavings
// across classes are linearized: a request is removed exactly once, either by
// cancel or by select, never both.
type Pending struct {
	mu     sync.Mutex
	queues map[string][]models.RideRequest
}

func NewPending() *Pending {
	return &Pending{queues: make(map[string][]models.RideRequest)}
}

// Enqueue appends req to its class queue. A rider may have at most one
// pending request across all classes.
func (p *Pending) Enqueue(req models.RideRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range p.queues {
		for _, r := range q {
			if r.RiderID == req.RiderID {
				return ErrAlreadyQueued
			}
		}
	}
	p.queues[req.VehicleClass] = append(p.queues[req.VehicleClass], req)
	return nil
}

// Dequeue removes and returns the first request by riderID in the class
// queue. Exactly one of two concurrent Dequeue calls for the same pair can
// succeed; the loser gets ErrNotFound.
func (p *Pending) Dequeue(vehicleClass, riderID string) (models.RideRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queues[vehicleClass]
	for i, r := range q {
		if r.RiderID == riderID {
			p.queues[vehicleClass] = append(q[:i:i], q[i+1:]...)
			return r, nil
		}
	}
	return models.RideRequest{}, ErrNotFound
}

// PeekAll returns a snapshot of the class queue in insertion order. The
// returned slice is a copy; callers may hold it across lock boundaries.
func (p *Pending) PeekAll(vehicleClass string) []models.RideRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queues[vehicleClass]
	out := make([]models.RideRequest, len(q))
	copy(out, q)
	return out
}

// CancelByRider removes the rider's pending request wherever it is queued.
// It reports whether anything was removed; absence is not an error.
func (p *Pending) CancelByRider(riderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for class, q := range p.queues {
		for i, r := range q {
			if r.RiderID == riderID {
				p.queues[class] = append(q[:i:i], q[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Len reports the total number of pending requests across all classes.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}
