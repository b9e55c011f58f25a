// Package store persists activity events. Records are append-only: there is no update or
// delete path.
package store

import (
	"context"
	"time"

	"reloop/internal/activity/models"
	id "reloop/pkg/domain"
)

// Store is the activity record store.
//
// Error contract: FindByID and MostRecentForUser return sentinel.ErrNotFound for missing
// records; Create returns sentinel.ErrConflict for a duplicate ID and a
// CodeInvariantViolation domain error for an unsettled record. Everything else is a
// wrapped infrastructure error.
//
// Listings are ordered by timestamp descending.
type Store interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, activityID id.ActivityID) (*models.Event, error)
	List(ctx context.Context, filter models.Filter, page models.Page) ([]*models.Event, int, error)
	// ListByUser returns at most limit records; limit <= 0 means no bound.
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*models.Event, error)
	ListByUserAndAction(ctx context.Context, userID id.UserID, action models.Action, limit int) ([]*models.Event, error)
	// DeviceHistory reports whether the user has any LOGIN other than exclude, and any
	// such LOGIN from device. The whole history is considered.
	DeviceHistory(ctx context.Context, userID id.UserID, device string, exclude id.ActivityID) (models.DeviceHistory, error)
	// CountByUserAndActionSince counts records with timestamp >= since.
	CountByUserAndActionSince(ctx context.Context, userID id.UserID, action models.Action, since time.Time) (int, error)
	// DistinctLocations returns resolved locations seen in [since, until), most recently
	// used first. The unknown-location placeholder and empty values are excluded.
	DistinctLocations(ctx context.Context, userID id.UserID, since, until time.Time) ([]string, error)
	MostRecentForUser(ctx context.Context, userID id.UserID) (*models.Event, error)
	// Summary aggregates records with timestamp >= since. LastActivityTime covers all
	// records and is zero when the user has none.
	Summary(ctx context.Context, userID id.UserID, since time.Time) (*models.Summary, error)
}

func countsAsLocation(location string) bool {
	return location != "" && location != models.UnknownLocation
}
