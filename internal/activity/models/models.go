package models

import (
	"time"

	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
)

// Event is one classified, outcome-resolved user action captured from an HTTP request.
// It is built in PENDING state by the interceptor and handed to the store exactly once,
// after the response has been written and the outcome is known.
type Event struct {
	ID          id.ActivityID
	UserID      id.UserID
	IPAddress   string
	Device      string
	Location    string
	Action      Action
	ActionLabel string
	EntityType  string
	EntityID    string
	EntityName  string
	Outcome     Outcome
	RiskLevel   RiskLevel
	Source      Source
	BeforeState string
	AfterState  string
	Reason      string
	AuditRef    string
	RequestID   string
	Method      string
	Path        string
	StatusCode  int
	Timestamp   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate enforces the persistence invariants.
func (e *Event) Validate() error {
	if e == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "activity event required")
	}
	if !e.Action.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid activity action")
	}
	if !e.Outcome.IsSettled() {
		return dErrors.New(dErrors.CodeInvariantViolation, "activity outcome must be settled before persisting")
	}
	if e.Timestamp.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "activity timestamp required")
	}
	return nil
}

// Settle resolves the outcome from the final HTTP status code.
func (e *Event) Settle(status int) {
	e.StatusCode = status
	e.Outcome = OutcomeFromStatus(status)
}

// Filter narrows activity listings. Nil/zero fields are not constrained; set fields
// combine with AND.
type Filter struct {
	UserID     id.UserID
	Action     *Action
	RiskLevel  *RiskLevel
	Source     *Source
	Outcome    *Outcome
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
}

// Matches reports whether e satisfies every constraint of f.
func (f Filter) Matches(e *Event) bool {
	switch {
	case !f.UserID.IsNil() && e.UserID != f.UserID:
		return false
	case f.Action != nil && e.Action != *f.Action:
		return false
	case f.RiskLevel != nil && e.RiskLevel != *f.RiskLevel:
		return false
	case f.Source != nil && e.Source != *f.Source:
		return false
	case f.Outcome != nil && e.Outcome != *f.Outcome:
		return false
	case f.EntityType != "" && e.EntityType != f.EntityType:
		return false
	case f.EntityID != "" && e.EntityID != f.EntityID:
		return false
	case f.From != nil && e.Timestamp.Before(*f.From):
		return false
	case f.To != nil && e.Timestamp.After(*f.To):
		return false
	}
	return true
}

// Page is a 1-based pagination request.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps page and limit into the supported range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pages returns the number of pages needed for total items.
func (p Page) Pages(total int) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// UnknownLocation is recorded when geolocation fails. It is never counted as a distinct
// location.
const UnknownLocation = "Unknown Location"

// DefaultSummaryWindow is the trailing window for per-user summaries and
// distinct-location lookups.
const DefaultSummaryWindow = 30 * 24 * time.Hour

// DeviceHistory describes a user's other logins relative to one device.
type DeviceHistory struct {
	PriorLogins bool
	DeviceSeen  bool
}

// Summary aggregates a user's activity over a trailing window.
type Summary struct {
	RecentLogins      int
	ActionsPerformed  int
	SensitiveActions  int
	DistinctLocations int
	LastActivityTime  time.Time
}
