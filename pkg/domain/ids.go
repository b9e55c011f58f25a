// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "reloop/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a SignalID where an ActivityID is expected.
type (
	ActivityID uuid.UUID
	SignalID   uuid.UUID
)

// UserID is opaque: subjects are issued by the upstream identity provider and are not
// guaranteed to be UUIDs (document IDs, numeric keys). Only emptiness is checked.
type UserID string

// NewActivityID returns a fresh random activity identifier.
func NewActivityID() ActivityID { return ActivityID(uuid.New()) }

// NewSignalID returns a fresh random signal identifier.
func NewSignalID() SignalID { return SignalID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseActivityID(s string) (ActivityID, error) {
	id, err := parseUUID(s, "activity ID")
	return ActivityID(id), err
}

func ParseSignalID(s string) (SignalID, error) {
	id, err := parseUUID(s, "signal ID")
	return SignalID(id), err
}

func ParseUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user ID cannot be empty")
	}
	return UserID(s), nil
}

// String methods - for logging and debugging.

func (id ActivityID) String() string { return uuid.UUID(id).String() }
func (id SignalID) String() string   { return uuid.UUID(id).String() }
func (id UserID) String() string     { return string(id) }

// IsNil checks - used for service-layer validation.

func (id ActivityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SignalID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return id == "" }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
