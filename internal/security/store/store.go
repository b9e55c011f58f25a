// Package store persists security signals.
package store

import (
	"context"
	"time"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/models"
	id "reloop/pkg/domain"
)

// Store is the signal record store. Listings are ordered CRITICAL first, then newest
// first. FindByID and Acknowledge return sentinel.ErrNotFound for unknown IDs.
type Store interface {
	Create(ctx context.Context, signal *models.Signal) error
	FindByID(ctx context.Context, signalID id.SignalID) (*models.Signal, error)
	ListByUser(ctx context.Context, userID id.UserID, includeAcknowledged bool) ([]*models.Signal, error)
	List(ctx context.Context, filter models.Filter, page activitymodels.Page) ([]*models.Signal, int, error)
	// Acknowledge marks the signal acknowledged at `at` unless it already is, and returns
	// the stored state. An existing acknowledgment time is never overwritten.
	Acknowledge(ctx context.Context, signalID id.SignalID, at time.Time) (*models.Signal, error)
	// AcknowledgeAllForUser acknowledges every open signal of the user and returns how
	// many changed.
	AcknowledgeAllForUser(ctx context.Context, userID id.UserID, at time.Time) (int, error)
}
