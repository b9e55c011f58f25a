// Package detector derives security signals from persisted activity. It runs as the
// recorder's post-persist hook: every LOGIN, FAILED_LOGIN and account-security change is
// evaluated against an ordered set of rules, and each rule that fires produces one signal.
//
// Rules read history through the activity store and are evaluated independently, so an
// error or panic in one rule is logged and the remaining rules still run. Two near
// simultaneous logins for the same user may both observe the other's record missing; set
// WithPerUserSerialization to evaluate a user's events one at a time.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/metrics"
	"reloop/internal/security/models"
	id "reloop/pkg/domain"
	psync "reloop/pkg/platform/sync"
	"reloop/pkg/platform/tracer"
)

const defaultLocationWindow = 30 * 24 * time.Hour

// ActivityReader is the slice of the activity store the rules query.
type ActivityReader interface {
	DeviceHistory(ctx context.Context, userID id.UserID, device string, exclude id.ActivityID) (activitymodels.DeviceHistory, error)
	CountByUserAndActionSince(ctx context.Context, userID id.UserID, action activitymodels.Action, since time.Time) (int, error)
	DistinctLocations(ctx context.Context, userID id.UserID, since, until time.Time) ([]string, error)
}

// SignalWriter persists raised signals.
type SignalWriter interface {
	Create(ctx context.Context, signal *models.Signal) error
}

// Notifier publishes a persisted signal to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, signal *models.Signal) error
}

type Detector struct {
	activities     ActivityReader
	signals        SignalWriter
	notifier       Notifier
	location       *time.Location
	locationWindow time.Duration
	clock          func() time.Time
	locks          *psync.KeyedMutex
	tracer         tracer.Tracer
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Detector)

// WithLocation sets the timezone the unusual-time rule evaluates local hours in.
func WithLocation(loc *time.Location) Option {
	return func(d *Detector) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithLocationWindow sets how far back the location rule looks for known locations.
func WithLocationWindow(window time.Duration) Option {
	return func(d *Detector) {
		if window > 0 {
			d.locationWindow = window
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithPerUserSerialization evaluates events for the same user one at a time.
func WithPerUserSerialization() Option {
	return func(d *Detector) { d.locks = psync.NewKeyedMutex(0) }
}

func WithNotifier(n Notifier) Option {
	return func(d *Detector) { d.notifier = n }
}

func WithTracer(t tracer.Tracer) Option {
	return func(d *Detector) {
		if t != nil {
			d.tracer = t
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

func New(activities ActivityReader, signals SignalWriter, opts ...Option) *Detector {
	d := &Detector{
		activities:     activities,
		signals:        signals,
		location:       time.UTC,
		locationWindow: defaultLocationWindow,
		clock:          time.Now,
		tracer:         tracer.NewNoop(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Triggers reports whether events with this action are evaluated at all.
func Triggers(action activitymodels.Action) bool {
	switch action {
	case activitymodels.ActionLogin,
		activitymodels.ActionFailedLogin,
		activitymodels.ActionPasswordChange,
		activitymodels.ActionTwoFactorChange,
		activitymodels.ActionSessionTerminated:
		return true
	default:
		return false
	}
}

// OnRecorded evaluates a persisted event. It satisfies recorder.Hook.
func (d *Detector) OnRecorded(ctx context.Context, event *activitymodels.Event) {
	d.Evaluate(ctx, event)
}

// Evaluate runs every applicable rule against a persisted event and returns the signals
// that were persisted. Rule, store and notifier failures are logged, never returned.
func (d *Detector) Evaluate(ctx context.Context, event *activitymodels.Event) []*models.Signal {
	if event == nil || event.UserID.IsNil() || !Triggers(event.Action) {
		return nil
	}
	if d.locks == nil {
		return d.evaluate(ctx, event)
	}
	var raised []*models.Signal
	d.locks.Do(event.UserID.String(), func() {
		raised = d.evaluate(ctx, event)
	})
	return raised
}

func (d *Detector) evaluate(ctx context.Context, event *activitymodels.Event) []*models.Signal {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, tracer.SpanDetectorEvaluate,
		tracer.String(tracer.AttrAction, string(event.Action)),
		tracer.String(tracer.AttrActivityID, event.ID.String()),
		tracer.String(tracer.AttrUserHash, tracer.HashIdentifier(event.UserID.String())),
	)
	defer func() {
		d.metrics.ObserveEvaluation(time.Since(start).Seconds())
	}()

	var raised []*models.Signal
	for _, r := range rules {
		if r.triggers != event.Action {
			continue
		}
		signal, err := d.runRule(ctx, r, event)
		if err != nil {
			d.metrics.IncRuleFailure(r.name)
			d.logger.ErrorContext(ctx, "security rule failed",
				"rule", r.name,
				"error", err,
				"user_id", event.UserID,
				"activity_id", event.ID,
			)
			continue
		}
		if signal == nil {
			continue
		}
		if d.raise(ctx, signal) {
			span.AddEvent(tracer.EventSignalRaised, tracer.String(tracer.AttrSignalType, string(signal.Type)))
			raised = append(raised, signal)
		}
	}

	span.SetAttributes(tracer.Int(tracer.AttrSignalCount, len(raised)))
	span.End(nil)
	return raised
}

// runRule converts a rule panic into an error.
func (d *Detector) runRule(ctx context.Context, r rule, event *activitymodels.Event) (signal *models.Signal, err error) {
	ctx, span := d.tracer.Start(ctx, tracer.SpanDetectorRule, tracer.String(tracer.AttrRule, r.name))
	defer func() {
		if rec := recover(); rec != nil {
			span.AddEvent(tracer.EventRulePanicked)
			signal, err = nil, fmt.Errorf("rule %s panicked: %v", r.name, rec)
		}
		span.SetAttributes(tracer.Bool(tracer.AttrRuleFired, signal != nil))
		span.End(err)
	}()
	return r.eval(d, ctx, event)
}

func (d *Detector) raise(ctx context.Context, signal *models.Signal) bool {
	if err := d.signals.Create(ctx, signal); err != nil {
		d.logger.ErrorContext(ctx, "failed to persist security signal",
			"error", err,
			"type", signal.Type,
			"user_id", signal.UserID,
			"activity_id", signal.ActivityID,
		)
		return false
	}
	d.metrics.IncSignalRaised(string(signal.Type), string(signal.Severity))
	d.logger.InfoContext(ctx, "security signal raised",
		"signal_id", signal.ID,
		"type", signal.Type,
		"severity", signal.Severity,
		"user_id", signal.UserID,
	)

	if d.notifier == nil {
		return true
	}
	if err := d.notifier.Notify(ctx, signal); err != nil {
		d.metrics.IncNotifyFailure()
		d.logger.WarnContext(ctx, "failed to publish security signal",
			"error", err,
			"signal_id", signal.ID,
			"type", signal.Type,
		)
	}
	return true
}
