package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"reloop/internal/activity/models"
	id "reloop/pkg/domain"
	"reloop/pkg/platform/sentinel"
)

// InMemoryStore keeps activity events in memory. Used in tests and when no database is
// configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ActivityID]*models.Event
	byUser map[id.UserID][]*models.Event
	all    []*models.Event
	now    func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[id.ActivityID]*models.Event),
		byUser: make(map[id.UserID][]*models.Event),
		now:    time.Now,
	}
}

func (s *InMemoryStore) Create(_ context.Context, event *models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID.IsNil() {
		event.ID = id.NewActivityID()
	}
	if _, exists := s.events[event.ID]; exists {
		return sentinel.ErrConflict
	}
	now := s.now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = event.CreatedAt

	stored := *event
	s.events[stored.ID] = &stored
	s.all = insertSorted(s.all, &stored)
	s.byUser[stored.UserID] = insertSorted(s.byUser[stored.UserID], &stored)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, activityID id.ActivityID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[activityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(event), nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.Filter, page models.Page) ([]*models.Event, int, error) {
	page = page.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	source := s.all
	if !filter.UserID.IsNil() {
		source = s.byUser[filter.UserID]
	}

	var (
		total int
		out   []*models.Event
	)
	offset := page.Offset()
	for _, e := range source {
		if !filter.Matches(e) {
			continue
		}
		if total >= offset && len(out) < page.Limit {
			out = append(out, clone(e))
		}
		total++
	}
	return out, total, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, limit int) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.byUser[userID], limit, func(*models.Event) bool { return true }), nil
}

func (s *InMemoryStore) ListByUserAndAction(_ context.Context, userID id.UserID, action models.Action, limit int) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.byUser[userID], limit, func(e *models.Event) bool { return e.Action == action }), nil
}

func (s *InMemoryStore) DeviceHistory(_ context.Context, userID id.UserID, device string, exclude id.ActivityID) (models.DeviceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var h models.DeviceHistory
	for _, e := range s.byUser[userID] {
		if e.Action != models.ActionLogin || e.ID == exclude {
			continue
		}
		h.PriorLogins = true
		if e.Device == device {
			h.DeviceSeen = true
			break
		}
	}
	return h, nil
}

func (s *InMemoryStore) CountByUserAndActionSince(_ context.Context, userID id.UserID, action models.Action, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.byUser[userID] {
		if e.Timestamp.Before(since) {
			break
		}
		if e.Action == action {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) DistinctLocations(_ context.Context, userID id.UserID, since, until time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.byUser[userID] {
		if !e.Timestamp.Before(until) {
			continue
		}
		if e.Timestamp.Before(since) {
			break
		}
		if !countsAsLocation(e.Location) {
			continue
		}
		if _, ok := seen[e.Location]; ok {
			continue
		}
		seen[e.Location] = struct{}{}
		out = append(out, e.Location)
	}
	return out, nil
}

func (s *InMemoryStore) MostRecentForUser(_ context.Context, userID id.UserID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.byUser[userID]
	if len(events) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return clone(events[0]), nil
}

func (s *InMemoryStore) Summary(_ context.Context, userID id.UserID, since time.Time) (*models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &models.Summary{}
	events := s.byUser[userID]
	if len(events) > 0 {
		summary.LastActivityTime = events[0].Timestamp
	}

	locations := make(map[string]struct{})
	for _, e := range events {
		if e.Timestamp.Before(since) {
			break
		}
		if e.Action == models.ActionLogin {
			summary.RecentLogins++
		}
		if !e.Action.IsAuthentication() {
			summary.ActionsPerformed++
		}
		if e.RiskLevel.IsSensitive() {
			summary.SensitiveActions++
		}
		if countsAsLocation(e.Location) {
			locations[e.Location] = struct{}{}
		}
	}
	summary.DistinctLocations = len(locations)
	return summary, nil
}

// insertSorted keeps events ordered by timestamp descending; equal timestamps keep the
// newest write first.
func insertSorted(events []*models.Event, e *models.Event) []*models.Event {
	idx, _ := slices.BinarySearchFunc(events, e, func(existing, target *models.Event) int {
		if c := target.Timestamp.Compare(existing.Timestamp); c != 0 {
			return c
		}
		return 1
	})
	return slices.Insert(events, idx, e)
}

func collect(events []*models.Event, limit int, keep func(*models.Event) bool) []*models.Event {
	var out []*models.Event
	for _, e := range events {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(e) {
			out = append(out, clone(e))
		}
	}
	return out
}

func clone(e *models.Event) *models.Event {
	c := *e
	return &c
}
