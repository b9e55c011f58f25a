// Package service is the query and acknowledgment API over security signals.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/metrics"
	"reloop/internal/security/models"
	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
	"reloop/pkg/platform/sentinel"
)

// Store is the signal persistence the service needs.
//
// Error contract: FindByID and Acknowledge return sentinel.ErrNotFound for unknown IDs.
type Store interface {
	FindByID(ctx context.Context, signalID id.SignalID) (*models.Signal, error)
	ListByUser(ctx context.Context, userID id.UserID, includeAcknowledged bool) ([]*models.Signal, error)
	List(ctx context.Context, filter models.Filter, page activitymodels.Page) ([]*models.Signal, int, error)
	Acknowledge(ctx context.Context, signalID id.SignalID, at time.Time) (*models.Signal, error)
	AcknowledgeAllForUser(ctx context.Context, userID id.UserID, at time.Time) (int, error)
}

// Scope is the caller on whose behalf an acknowledgment runs. A zero UserID with
// SuperAdmin false matches nothing.
type Scope struct {
	UserID     id.UserID
	SuperAdmin bool
}

func (s Scope) allows(signal *models.Signal) bool {
	return s.SuperAdmin || (!s.UserID.IsNil() && s.UserID == signal.UserID)
}

type Service struct {
	store   Store
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of signals matching filter, critical first then newest.
func (s *Service) List(ctx context.Context, filter models.Filter, page activitymodels.Page) ([]*models.Signal, int, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "dateFrom must not be after dateTo")
	}
	signals, total, err := s.store.List(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list security signals")
	}
	return signals, total, nil
}

// ListForUser returns every signal for one user, open ones only unless
// includeAcknowledged is set.
func (s *Service) ListForUser(ctx context.Context, userID id.UserID, includeAcknowledged bool) ([]*models.Signal, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	signals, err := s.store.ListByUser(ctx, userID, includeAcknowledged)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list security signals")
	}
	return signals, nil
}

// Acknowledge moves an open signal to acknowledged. Acknowledging an acknowledged signal
// returns it unchanged. Signals outside the caller's scope are reported as not found.
func (s *Service) Acknowledge(ctx context.Context, signalID id.SignalID, scope Scope) (*models.Signal, error) {
	signal, err := s.store.FindByID(ctx, signalID)
	if err != nil {
		return nil, s.translate(err, "failed to load security signal")
	}
	if !scope.allows(signal) {
		return nil, dErrors.New(dErrors.CodeNotFound, "security signal not found")
	}
	if signal.Acknowledged {
		return signal, nil
	}

	updated, err := s.store.Acknowledge(ctx, signalID, s.clock())
	if err != nil {
		return nil, s.translate(err, "failed to acknowledge security signal")
	}
	s.metrics.AddAcknowledged(1)
	s.logger.InfoContext(ctx, "security signal acknowledged",
		"signal_id", signalID,
		"user_id", updated.UserID,
		"type", updated.Type,
	)
	return updated, nil
}

// AcknowledgeAll acknowledges every open signal for a user and returns how many changed.
func (s *Service) AcknowledgeAll(ctx context.Context, userID id.UserID) (int, error) {
	if userID.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	n, err := s.store.AcknowledgeAllForUser(ctx, userID, s.clock())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acknowledge security signals")
	}
	s.metrics.AddAcknowledged(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "security signals acknowledged", "user_id", userID, "count", n)
	}
	return n, nil
}

// CountOpen returns how many unacknowledged signals a user has.
func (s *Service) CountOpen(ctx context.Context, userID id.UserID) (int, error) {
	open := false
	_, total, err := s.store.List(ctx, models.Filter{UserID: userID, Acknowledged: &open}, activitymodels.Page{Page: 1, Limit: 1})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count open security signals")
	}
	return total, nil
}

func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "security signal not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
