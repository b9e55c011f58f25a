//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/models"
	"reloop/internal/security/store"
	id "reloop/pkg/domain"
	"reloop/pkg/platform/sentinel"
	"reloop/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	base     time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
	s.base = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) create(userID id.UserID, sev models.Severity, offset time.Duration) *models.Signal {
	sig := &models.Signal{
		UserID:      userID,
		ActivityID:  id.NewActivityID(),
		Type:        models.SignalFailedLogin,
		Severity:    sev,
		Title:       "Failed login attempts",
		Description: "2 failed attempts",
		Timestamp:   s.base.Add(offset),
		Metadata:    map[string]string{models.MetaAttempts: "2", models.MetaIPAddress: "203.0.113.7"},
	}
	s.Require().NoError(s.store.Create(context.Background(), sig))
	return sig
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	sig := s.create("u-1", models.SeverityCritical, 0)

	got, err := s.store.FindByID(ctx, sig.ID)
	s.Require().NoError(err)
	s.Equal(sig.ActivityID, got.ActivityID)
	s.Equal("2", got.Metadata[models.MetaAttempts])
	s.False(got.Acknowledged)
	s.Nil(got.AcknowledgedAt)

	_, err = s.store.FindByID(ctx, id.NewSignalID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Create(ctx, sig), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestOrderingAndFilters() {
	ctx := context.Background()
	w := s.create("u-1", models.SeverityWarning, 2*time.Hour)
	c := s.create("u-1", models.SeverityCritical, 0)
	s.create("u-2", models.SeverityWarning, 0)

	got, err := s.store.ListByUser(ctx, "u-1", true)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(c.ID, got[0].ID)
	s.Equal(w.ID, got[1].ID)

	sev := models.SeverityWarning
	list, total, err := s.store.List(ctx, models.Filter{Severity: &sev}, activitymodels.Page{Limit: 1})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(list, 1)
}

func (s *PostgresStoreSuite) TestAcknowledgeNeverRewinds() {
	ctx := context.Background()
	sig := s.create("u-1", models.SeverityCritical, 0)
	first := s.base.Add(time.Minute)

	got, err := s.store.Acknowledge(ctx, sig.ID, first)
	s.Require().NoError(err)
	s.True(got.AcknowledgedAt.Equal(first))

	got, err = s.store.Acknowledge(ctx, sig.ID, first.Add(time.Hour))
	s.Require().NoError(err)
	s.True(got.AcknowledgedAt.Equal(first))

	_, err = s.store.Acknowledge(ctx, id.NewSignalID(), first)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAcknowledgeAllForUser() {
	ctx := context.Background()
	s.create("u-1", models.SeverityWarning, 0)
	s.create("u-1", models.SeverityCritical, 0)
	s.create("u-2", models.SeverityWarning, 0)

	n, err := s.store.AcknowledgeAllForUser(ctx, "u-1", s.base)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.store.AcknowledgeAllForUser(ctx, "u-1", s.base)
	s.Require().NoError(err)
	s.Zero(n)

	open, err := s.store.ListByUser(ctx, "u-2", false)
	s.Require().NoError(err)
	s.Len(open, 1)
}
