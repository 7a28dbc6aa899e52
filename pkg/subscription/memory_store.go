package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	byNeg   map[uuid.UUID]*Record
	bySub   map[string]uuid.UUID
	seenEvt map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byNeg:   make(map[uuid.UUID]*Record),
		bySub:   make(map[string]uuid.UUID),
		seenEvt: make(map[string]struct{}),
	}
}

func (s *MemoryStore) GetByNegocio(_ context.Context, negocioID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byNeg[negocioID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	negocioID, ok := s.bySub[subscriptionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	rec, ok := s.byNeg[negocioID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byNeg[rec.NegocioID]; ok && prev.SubscriptionID != rec.SubscriptionID {
		delete(s.bySub, prev.SubscriptionID)
	}
	cp := *rec
	s.byNeg[rec.NegocioID] = &cp
	if rec.SubscriptionID != "" {
		s.bySub[rec.SubscriptionID] = rec.NegocioID
	}
	return nil
}

func (s *MemoryStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seenEvt[eventID]
	return ok, nil
}

func (s *MemoryStore) MarkEventProcessed(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenEvt[eventID] = struct{}{}
	return nil
}
