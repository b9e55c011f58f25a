// Package service is the read side of the activity pipeline: listings, per-user summary
// and CSV export.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reloop/internal/activity/metrics"
	"reloop/internal/activity/models"
	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
	"reloop/pkg/platform/sentinel"
	"reloop/pkg/platform/tracer"
)

const defaultExportLimit = 10000

// Store is the activity persistence the service reads.
//
// Error contract: FindByID returns sentinel.ErrNotFound for unknown IDs.
type Store interface {
	FindByID(ctx context.Context, activityID id.ActivityID) (*models.Event, error)
	List(ctx context.Context, filter models.Filter, page models.Page) ([]*models.Event, int, error)
	Summary(ctx context.Context, userID id.UserID, since time.Time) (*models.Summary, error)
}

// SignalCounter reports open security signals for the summary.
type SignalCounter interface {
	CountOpen(ctx context.Context, userID id.UserID) (int, error)
}

type Service struct {
	store       Store
	signals     SignalCounter
	clock       func() time.Time
	exportLimit int
	tracer      tracer.Tracer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

// WithSignalCounter adds the open-signal count to summaries.
func WithSignalCounter(c SignalCounter) Option {
	return func(s *Service) { s.signals = c }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithExportLimit caps how many rows a single export writes.
func WithExportLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.exportLimit = n
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
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
		store:       store,
		clock:       time.Now,
		exportLimit: defaultExportLimit,
		tracer:      tracer.NewNoop(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is one page of activity.
type Result struct {
	Events []*models.Event
	Total  int
	Page   models.Page
}

func (s *Service) List(ctx context.Context, filter models.Filter, page models.Page) (*Result, error) {
	if err := validateRange(filter); err != nil {
		return nil, err
	}
	page = page.Normalize()
	events, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list activity")
	}
	return &Result{Events: events, Total: total, Page: page}, nil
}

func (s *Service) Get(ctx context.Context, activityID id.ActivityID) (*models.Event, error) {
	event, err := s.store.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "activity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activity")
	}
	return event, nil
}

// Summary is a user's activity aggregate plus their open signal count.
type Summary struct {
	models.Summary
	OpenSignals int
}

// Summary aggregates a user's activity over the trailing window. LastActivityTime falls
// back to now for users with no records.
func (s *Service) Summary(ctx context.Context, userID id.UserID, window time.Duration) (*Summary, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	if window <= 0 {
		window = models.DefaultSummaryWindow
	}
	now := s.clock()

	var (
		agg  *models.Summary
		open int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agg, err = s.store.Summary(gctx, userID, now.Add(-window))
		return err
	})
	if s.signals != nil {
		g.Go(func() error {
			var err error
			open, err = s.signals.CountOpen(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize activity")
	}

	out := &Summary{Summary: *agg, OpenSignals: open}
	if out.LastActivityTime.IsZero() {
		out.LastActivityTime = now
	}
	return out, nil
}

func validateRange(filter models.Filter) error {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return dErrors.New(dErrors.CodeValidation, "dateFrom must not be after dateTo")
	}
	return nil
}
