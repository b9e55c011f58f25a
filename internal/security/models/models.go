// Package models holds security signals raised from activity history.
package models

import (
	"strings"
	"time"

	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
)

type SignalType string

const (
	SignalUnusualTime     SignalType = "UNUSUAL_TIME"
	SignalNewDevice       SignalType = "NEW_DEVICE"
	SignalFailedLogin     SignalType = "FAILED_LOGIN"
	SignalLocationAnomaly SignalType = "LOCATION_ANOMALY"
)

func (t SignalType) IsValid() bool {
	switch t {
	case SignalUnusualTime, SignalNewDevice, SignalFailedLogin, SignalLocationAnomaly:
		return true
	}
	return false
}

func ParseSignalType(s string) (SignalType, error) {
	t := SignalType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid signal type")
	}
	return t, nil
}

type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) IsValid() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// Rank orders severities for listings; higher ranks sort first.
func (s Severity) Rank() int {
	if s == SeverityCritical {
		return 1
	}
	return 0
}

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid severity")
	}
	return sev, nil
}

// Metadata keys set by the detector.
const (
	MetaIPAddress      = "ipAddress"
	MetaDevice         = "device"
	MetaLocation       = "location"
	MetaAttempts       = "attempts"
	MetaLocalHour      = "localHour"
	MetaKnownLocations = "knownLocations"
)

// Signal is a heuristic alert about a user's activity. Acknowledgment is one-way:
// once Acknowledged is true it never returns to false and AcknowledgedAt never changes.
type Signal struct {
	ID             id.SignalID
	UserID         id.UserID
	ActivityID     id.ActivityID
	Type           SignalType
	Severity       Severity
	Title          string
	Description    string
	Timestamp      time.Time
	Metadata       map[string]string
	Acknowledged   bool
	AcknowledgedAt *time.Time
}

// Validate enforces the persistence invariants of a new signal.
func (s *Signal) Validate() error {
	if s == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "signal required")
	}
	if s.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "signal user required")
	}
	if !s.Type.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid signal type")
	}
	if !s.Severity.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid signal severity")
	}
	if s.Timestamp.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "signal timestamp required")
	}
	if s.Acknowledged != (s.AcknowledgedAt != nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "acknowledged flag and timestamp disagree")
	}
	return nil
}

// Acknowledge marks the signal acknowledged at t. It is a no-op on an acknowledged
// signal and reports whether the state changed.
func (s *Signal) Acknowledge(t time.Time) bool {
	if s.Acknowledged {
		return false
	}
	s.Acknowledged = true
	s.AcknowledgedAt = &t
	return true
}

// Less orders signals CRITICAL first, then newest first.
func Less(a, b *Signal) bool {
	if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
		return ra > rb
	}
	return a.Timestamp.After(b.Timestamp)
}

// Compare is Less in the form slices.SortFunc expects.
func Compare(a, b *Signal) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}

// Filter narrows signal listings.
type Filter struct {
	UserID       id.UserID
	Type         *SignalType
	Severity     *Severity
	Acknowledged *bool
	From         *time.Time
	To           *time.Time
}

func (f Filter) Matches(s *Signal) bool {
	switch {
	case !f.UserID.IsNil() && s.UserID != f.UserID:
		return false
	case f.Type != nil && s.Type != *f.Type:
		return false
	case f.Severity != nil && s.Severity != *f.Severity:
		return false
	case f.Acknowledged != nil && s.Acknowledged != *f.Acknowledged:
		return false
	case f.From != nil && s.Timestamp.Before(*f.From):
		return false
	case f.To != nil && s.Timestamp.After(*f.To):
		return false
	}
	return true
}
