package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/models"
	id "reloop/pkg/domain"
	"reloop/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	signals map[id.SignalID]*models.Signal
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{signals: make(map[id.SignalID]*models.Signal)}
}

func (s *InMemoryStore) Create(_ context.Context, signal *models.Signal) error {
	if signal != nil && signal.ID.IsNil() {
		signal.ID = id.NewSignalID()
	}
	if err := signal.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.signals[signal.ID]; exists {
		return sentinel.ErrConflict
	}
	s.signals[signal.ID] = clone(signal)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, signalID id.SignalID) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signal, ok := s.signals[signalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(signal), nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, includeAcknowledged bool) ([]*models.Signal, error) {
	filter := models.Filter{UserID: userID}
	if !includeAcknowledged {
		open := false
		filter.Acknowledged = &open
	}
	return s.matching(filter), nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.Filter, page activitymodels.Page) ([]*models.Signal, int, error) {
	page = page.Normalize()
	all := s.matching(filter)
	total := len(all)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return all[start:end], total, nil
}

func (s *InMemoryStore) Acknowledge(_ context.Context, signalID id.SignalID, at time.Time) (*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signal, ok := s.signals[signalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	signal.Acknowledge(at)
	return clone(signal), nil
}

func (s *InMemoryStore) AcknowledgeAllForUser(_ context.Context, userID id.UserID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, signal := range s.signals {
		if signal.UserID == userID && signal.Acknowledge(at) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) matching(filter models.Filter) []*models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Signal
	for _, signal := range s.signals {
		if filter.Matches(signal) {
			out = append(out, clone(signal))
		}
	}
	slices.SortFunc(out, models.Compare)
	return out
}

func clone(s *models.Signal) *models.Signal {
	c := *s
	c.Metadata = maps.Clone(s.Metadata)
	if s.AcknowledgedAt != nil {
		at := *s.AcknowledgedAt
		c.AcknowledgedAt = &at
	}
	return &c
}
