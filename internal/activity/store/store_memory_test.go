package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reloop/internal/activity/models"
	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
	"reloop/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) event(userID id.UserID, action models.Action, offset time.Duration) *models.Event {
	return &models.Event{
		UserID:    userID,
		Action:    action,
		Outcome:   models.OutcomeSuccess,
		RiskLevel: models.RiskLow,
		Source:    models.SourceWeb,
		Device:    "Chrome on Windows 10",
		Location:  "Lagos, Nigeria",
		Timestamp: s.base.Add(offset),
	}
}

func (s *InMemoryStoreSuite) create(e *models.Event) *models.Event {
	s.Require().NoError(s.store.Create(s.ctx, e))
	return e
}

func (s *InMemoryStoreSuite) TestCreateRejectsPending() {
	e := s.event("u-1", models.ActionLogin, 0)
	e.Outcome = models.OutcomePending

	err := s.store.Create(s.ctx, e)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, total, err := s.store.List(s.ctx, models.Filter{}, models.Page{})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *InMemoryStoreSuite) TestCreateAssignsIDAndRejectsDuplicates() {
	e := s.create(s.event("u-1", models.ActionLogin, 0))
	s.False(e.ID.IsNil())
	s.False(e.CreatedAt.IsZero())

	dup := s.event("u-1", models.ActionLogin, time.Minute)
	dup.ID = e.ID
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindByID() {
	e := s.create(s.event("u-1", models.ActionZoneCreate, 0))

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(models.ActionZoneCreate, got.Action)

	got.Device = "mutated"
	again, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("Chrome on Windows 10", again.Device, "returned records are copies")

	_, err = s.store.FindByID(s.ctx, id.NewActivityID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListOrdersAndPaginates() {
	for i := range 5 {
		s.create(s.event("u-1", models.ActionZoneUpdate, time.Duration(i)*time.Minute))
	}
	s.create(s.event("u-2", models.ActionZoneUpdate, 10*time.Minute))

	events, total, err := s.store.List(s.ctx, models.Filter{UserID: "u-1"}, models.Page{Page: 1, Limit: 2})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(events, 2)
	s.Equal(s.base.Add(4*time.Minute), events[0].Timestamp)
	s.Equal(s.base.Add(3*time.Minute), events[1].Timestamp)

	events, _, err = s.store.List(s.ctx, models.Filter{UserID: "u-1"}, models.Page{Page: 3, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(s.base, events[0].Timestamp)

	_, total, err = s.store.List(s.ctx, models.Filter{}, models.Page{})
	s.Require().NoError(err)
	s.Equal(6, total)
}

func (s *InMemoryStoreSuite) TestListFiltersCombineWithAnd() {
	high := s.event("u-1", models.ActionFinanceTransaction, 0)
	high.RiskLevel = models.RiskHigh
	s.create(high)
	failed := s.event("u-1", models.ActionFinanceTransaction, time.Minute)
	failed.RiskLevel = models.RiskHigh
	failed.Outcome = models.OutcomeFailed
	s.create(failed)
	s.create(s.event("u-1", models.ActionZoneCreate, 2*time.Minute))

	risk := models.RiskHigh
	outcome := models.OutcomeSuccess
	events, total, err := s.store.List(s.ctx, models.Filter{RiskLevel: &risk, Outcome: &outcome}, models.Page{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(high.ID, events[0].ID)
}

func (s *InMemoryStoreSuite) TestListByUserAndAction() {
	s.create(s.event("u-1", models.ActionLogin, 0))
	s.create(s.event("u-1", models.ActionLogout, time.Minute))
	s.create(s.event("u-1", models.ActionLogin, 2*time.Minute))

	logins, err := s.store.ListByUserAndAction(s.ctx, "u-1", models.ActionLogin, 0)
	s.Require().NoError(err)
	s.Len(logins, 2)

	limited, err := s.store.ListByUser(s.ctx, "u-1", 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal(models.ActionLogin, limited[0].Action)
}

func (s *InMemoryStoreSuite) TestDeviceHistory() {
	first := s.create(s.event("u-1", models.ActionLogin, 0))

	h, err := s.store.DeviceHistory(s.ctx, "u-1", first.Device, first.ID)
	s.Require().NoError(err)
	s.Equal(models.DeviceHistory{}, h)

	logout := s.event("u-1", models.ActionLogout, time.Minute)
	logout.Device = "Safari on iOS"
	s.create(logout)
	phone := s.event("u-1", models.ActionLogin, 2*time.Minute)
	phone.Device = "Safari on iOS"
	s.create(phone)

	h, err = s.store.DeviceHistory(s.ctx, "u-1", "Safari on iOS", phone.ID)
	s.Require().NoError(err)
	s.Equal(models.DeviceHistory{PriorLogins: true}, h)

	h, err = s.store.DeviceHistory(s.ctx, "u-1", first.Device, phone.ID)
	s.Require().NoError(err)
	s.Equal(models.DeviceHistory{PriorLogins: true, DeviceSeen: true}, h)
}

func (s *InMemoryStoreSuite) TestCountByUserAndActionSince() {
	s.create(s.event("u-1", models.ActionFailedLogin, -2*time.Hour))
	s.create(s.event("u-1", models.ActionFailedLogin, -30*time.Minute))
	s.create(s.event("u-1", models.ActionFailedLogin, 0))
	s.create(s.event("u-2", models.ActionFailedLogin, 0))

	count, err := s.store.CountByUserAndActionSince(s.ctx, "u-1", models.ActionFailedLogin, s.base.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *InMemoryStoreSuite) TestDistinctLocations() {
	locations := []struct {
		location string
		offset   time.Duration
	}{
		{"Lagos, Nigeria", -40 * 24 * time.Hour},
		{"Accra, Ghana", -3 * time.Hour},
		{"Lagos, Nigeria", -2 * time.Hour},
		{models.UnknownLocation, -time.Hour},
		{"", -30 * time.Minute},
		{"Nairobi, Kenya", 0},
	}
	for _, l := range locations {
		e := s.event("u-1", models.ActionLogin, l.offset)
		e.Location = l.location
		s.create(e)
	}

	got, err := s.store.DistinctLocations(s.ctx, "u-1", s.base.Add(-models.DefaultSummaryWindow), s.base)
	s.Require().NoError(err)
	s.Equal([]string{"Lagos, Nigeria", "Accra, Ghana"}, got, "until is exclusive, most recent first")
}

func (s *InMemoryStoreSuite) TestMostRecentForUser() {
	_, err := s.store.MostRecentForUser(s.ctx, "u-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.create(s.event("u-1", models.ActionLogin, time.Hour))
	s.create(s.event("u-1", models.ActionLogout, 0))

	got, err := s.store.MostRecentForUser(s.ctx, "u-1")
	s.Require().NoError(err)
	s.Equal(models.ActionLogin, got.Action)
}

func (s *InMemoryStoreSuite) TestSummary() {
	s.create(s.event("u-1", models.ActionLogin, -40*24*time.Hour))
	s.create(s.event("u-1", models.ActionLogin, -time.Hour))
	s.create(s.event("u-1", models.ActionFailedLogin, -50*time.Minute))
	s.create(s.event("u-1", models.ActionLogout, -40*time.Minute))
	finance := s.event("u-1", models.ActionFinanceTransaction, -30*time.Minute)
	finance.RiskLevel = models.RiskHigh
	finance.Location = "Accra, Ghana"
	s.create(finance)
	s.create(s.event("u-1", models.ActionZoneCreate, 0))

	summary, err := s.store.Summary(s.ctx, "u-1", s.base.Add(-models.DefaultSummaryWindow))
	s.Require().NoError(err)
	s.Equal(1, summary.RecentLogins)
	s.Equal(2, summary.ActionsPerformed)
	s.Equal(1, summary.SensitiveActions)
	s.Equal(2, summary.DistinctLocations)
	s.Equal(s.base, summary.LastActivityTime)

	empty, err := s.store.Summary(s.ctx, "nobody", s.base)
	s.Require().NoError(err)
	s.True(empty.LastActivityTime.IsZero())
}
