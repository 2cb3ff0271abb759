package printing

import (
	"sync"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
)

const defaultReprintTTL = 2 * time.Hour

// HeldBatch is a confirmed batch whose delivery did not complete
type HeldBatch struct {
	JobID       uuid.UUID
	Batch       *printing.ConfirmedBatch
	Config      printing.PrintJobConfig
	Destination string
	Result      printing.PrintResult
	HeldAt      time.Time
	ExpiresAt   time.Time
}

// ReprintStore keeps confirmed batches in memory so that a failed or
// cancelled print can be delivered again without registering new codes.
// Batches are never persisted.
type ReprintStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]HeldBatch
	ttl     time.Duration
	now     func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewReprintStore creates a new store and starts its cleanup goroutine
func NewReprintStore(ttl time.Duration) *ReprintStore {
	if ttl <= 0 {
		ttl = defaultReprintTTL
	}
	s := &ReprintStore{
		entries:  make(map[uuid.UUID]HeldBatch),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Hold stores a batch under the job that confirmed it
func (s *ReprintStore) Hold(h HeldBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	h.HeldAt = now
	h.ExpiresAt = now.Add(s.ttl)
	s.entries[h.JobID] = h
}

// Get returns a held batch that has not expired
func (s *ReprintStore) Get(jobID uuid.UUID) (HeldBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.entries[jobID]
	if !ok || s.now().After(h.ExpiresAt) {
		return HeldBatch{}, false
	}
	return h, true
}

// Release drops a batch, typically after it printed
func (s *ReprintStore) Release(jobID uuid.UUID) {
	s.mu.Lock()
	delete(s.entries, jobID)
	s.mu.Unlock()
}

// List returns the held batches that have not expired
func (s *ReprintStore) List() []HeldBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]HeldBatch, 0, len(s.entries))
	for _, h := range s.entries {
		if !now.After(h.ExpiresAt) {
			out = append(out, h)
		}
	}
	return out
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *ReprintStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *ReprintStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *ReprintStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, h := range s.entries {
		if now.After(h.ExpiresAt) {
			delete(s.entries, id)
		}
	}
}
