package detector_test

//go:generate mockgen -source=detector.go -destination=mocks/mocks.go -package=mocks ActivityReader,SignalWriter,Notifier

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	activitymodels "reloop/internal/activity/models"
	activitystore "reloop/internal/activity/store"
	"reloop/internal/security/detector"
	"reloop/internal/security/detector/mocks"
	"reloop/internal/security/metrics"
	"reloop/internal/security/models"
	securitystore "reloop/internal/security/store"
	id "reloop/pkg/domain"
)

const (
	userID  = id.UserID("user-1")
	laptop  = "Chrome on macOS"
	phone   = "Safari on iOS"
	lagos   = "Lagos, Lagos, Nigeria"
	abuja   = "Abuja, FCT, Nigeria"
	london  = "London, England, United Kingdom"
	ipAddrA = "203.0.113.7"
)

// 10:00 UTC, inside usual hours.
var morning = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type DetectorSuite struct {
	suite.Suite
	ctx        context.Context
	activities *activitystore.InMemoryStore
	signals    *securitystore.InMemoryStore
	detector   *detector.Detector
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.ctx = context.Background()
	s.activities = activitystore.NewInMemory()
	s.signals = securitystore.NewInMemory()
	s.detector = detector.New(s.activities, s.signals,
		detector.WithClock(func() time.Time { return morning.Add(time.Hour) }),
		detector.WithLogger(discardLogger()),
	)
}

// record persists the event first, the way the recorder does, then evaluates it.
func (s *DetectorSuite) record(action activitymodels.Action, ts time.Time, device, location string) []*models.Signal {
	e := loginEvent(action, ts, device, location)
	s.Require().NoError(s.activities.Create(s.ctx, e))
	return s.detector.Evaluate(s.ctx, e)
}

func (s *DetectorSuite) TestFirstLoginRaisesNothing() {
	raised := s.record(activitymodels.ActionLogin, morning, laptop, lagos)
	s.Empty(raised)
}

func (s *DetectorSuite) TestNewDevice() {
	s.Empty(s.record(activitymodels.ActionLogin, morning, laptop, lagos))

	raised := s.record(activitymodels.ActionLogin, morning.Add(time.Minute), phone, lagos)
	s.Require().Len(raised, 1)
	s.Equal(models.SignalNewDevice, raised[0].Type)
	s.Equal(models.SeverityWarning, raised[0].Severity)
	s.Contains(raised[0].Description, phone)
	s.Equal(phone, raised[0].Metadata[models.MetaDevice])

	s.Run("same device again is known", func() {
		s.Empty(s.record(activitymodels.ActionLogin, morning.Add(2*time.Minute), phone, lagos))
	})

	stored, err := s.signals.ListByUser(s.ctx, userID, true)
	s.Require().NoError(err)
	s.Len(stored, 1)
}

func (s *DetectorSuite) TestNewDeviceSeesWholeHistory() {
	s.Empty(s.record(activitymodels.ActionLogin, morning, laptop, lagos))
	s.Require().NotEmpty(s.record(activitymodels.ActionLogin, morning.Add(time.Second), phone, lagos))
	for i := range 500 {
		e := loginEvent(activitymodels.ActionLogin, morning.Add(time.Duration(i+2)*time.Second), phone, lagos)
		s.Require().NoError(s.activities.Create(s.ctx, e))
	}

	raised := s.record(activitymodels.ActionLogin, morning.Add(time.Hour), laptop, lagos)
	s.Empty(ofType(raised, models.SignalNewDevice))
}

func (s *DetectorSuite) TestEveryFailedLoginIsCritical() {
	first := s.record(activitymodels.ActionFailedLogin, morning, laptop, lagos)
	s.Require().Len(first, 1)
	s.Equal(models.SignalFailedLogin, first[0].Type)
	s.Equal(models.SeverityCritical, first[0].Severity)
	s.Equal("2 failed attempts in the last hour", first[0].Description)
	s.Equal("2", first[0].Metadata[models.MetaAttempts])
	s.Equal(ipAddrA, first[0].Metadata[models.MetaIPAddress])

	second := s.record(activitymodels.ActionFailedLogin, morning.Add(time.Minute), laptop, lagos)
	s.Require().Len(second, 1)
	s.Equal("3", second[0].Metadata[models.MetaAttempts])

	s.Run("attempts older than an hour are not counted", func() {
		third := s.record(activitymodels.ActionFailedLogin, morning.Add(3*time.Hour), laptop, lagos)
		s.Require().Len(third, 1)
		s.Equal("2", third[0].Metadata[models.MetaAttempts])
	})
}

func (s *DetectorSuite) TestFailedLoginDoesNotRunLoginRules() {
	s.record(activitymodels.ActionLogin, morning, laptop, lagos)

	raised := s.record(activitymodels.ActionFailedLogin, morning.Add(-8*time.Hour), phone, london)
	s.Require().Len(raised, 1)
	s.Equal(models.SignalFailedLogin, raised[0].Type)
}

func (s *DetectorSuite) TestSignalLinksToActivity() {
	e := loginEvent(activitymodels.ActionFailedLogin, morning, laptop, lagos)
	s.Require().NoError(s.activities.Create(s.ctx, e))

	raised := s.detector.Evaluate(s.ctx, e)
	s.Require().Len(raised, 1)
	s.Equal(e.ID, raised[0].ActivityID)
	s.Equal(userID, raised[0].UserID)
	s.False(raised[0].Acknowledged)

	stored, err := s.signals.FindByID(s.ctx, raised[0].ID)
	s.Require().NoError(err)
	s.Equal(raised[0].Title, stored.Title)
}

func (s *DetectorSuite) TestLocationAnomaly() {
	s.record(activitymodels.ActionLogin, morning.Add(-48*time.Hour), laptop, lagos)
	s.record(activitymodels.ActionLogin, morning.Add(-24*time.Hour), laptop, abuja)

	raised := s.record(activitymodels.ActionLogin, morning, laptop, london)
	s.Require().Len(raised, 1)
	s.Equal(models.SignalLocationAnomaly, raised[0].Type)
	s.Equal(models.SeverityWarning, raised[0].Severity)
	s.Contains(raised[0].Description, london)
	s.Equal(abuja+", "+lagos, raised[0].Metadata[models.MetaKnownLocations])

	s.Run("known location is quiet", func() {
		s.Empty(s.record(activitymodels.ActionLogin, morning.Add(time.Minute), laptop, lagos))
	})
}

func (s *DetectorSuite) TestLocationAnomalySkips() {
	s.Run("fewer than two known locations", func() {
		s.SetupTest()
		s.record(activitymodels.ActionLogin, morning.Add(-time.Hour), laptop, lagos)
		s.Empty(s.record(activitymodels.ActionLogin, morning, laptop, london))
	})

	s.Run("current location unresolved", func() {
		s.SetupTest()
		s.record(activitymodels.ActionLogin, morning.Add(-2*time.Hour), laptop, lagos)
		s.record(activitymodels.ActionLogin, morning.Add(-time.Hour), laptop, abuja)
		s.Empty(s.record(activitymodels.ActionLogin, morning, laptop, activitymodels.UnknownLocation))
	})

	s.Run("history outside the window", func() {
		s.SetupTest()
		s.record(activitymodels.ActionLogin, morning.Add(-40*24*time.Hour), laptop, lagos)
		s.record(activitymodels.ActionLogin, morning.Add(-35*24*time.Hour), laptop, abuja)
		s.Empty(s.record(activitymodels.ActionLogin, morning, laptop, london))
	})
}

func (s *DetectorSuite) TestUnusualTime() {
	tests := []struct {
		name  string
		at    time.Time
		fires bool
	}{
		{"08:00 is usual", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), false},
		{"19:59 is usual", time.Date(2026, 3, 10, 19, 59, 0, 0, time.UTC), false},
		{"07:59 is early", time.Date(2026, 3, 10, 7, 59, 0, 0, time.UTC), true},
		{"20:00 is late", time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), true},
		{"03:00 is late", time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			raised := s.record(activitymodels.ActionLogin, tt.at, laptop, lagos)
			if !tt.fires {
				s.Empty(raised)
				return
			}
			s.Require().Len(raised, 1)
			s.Equal(models.SignalUnusualTime, raised[0].Type)
			s.Equal(models.SeverityWarning, raised[0].Severity)
			s.Equal(strconv.Itoa(tt.at.Hour()), raised[0].Metadata[models.MetaLocalHour])
		})
	}
}

func (s *DetectorSuite) TestUnusualTimeUsesConfiguredZone() {
	plusFive := time.FixedZone("UTC+5", 5*60*60)
	d := detector.New(s.activities, s.signals,
		detector.WithLocation(plusFive),
		detector.WithLogger(discardLogger()),
	)

	e := loginEvent(activitymodels.ActionLogin, time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC), laptop, lagos)
	s.Require().NoError(s.activities.Create(s.ctx, e))

	raised := d.Evaluate(s.ctx, e)
	s.Require().Len(raised, 1)
	s.Equal("21", raised[0].Metadata[models.MetaLocalHour])
}

func (s *DetectorSuite) TestSecurityChangesAreEvaluatedButRaiseNothing() {
	for _, action := range []activitymodels.Action{
		activitymodels.ActionPasswordChange,
		activitymodels.ActionTwoFactorChange,
		activitymodels.ActionSessionTerminated,
	} {
		s.Empty(s.record(action, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), phone, london), action)
	}
}

func (s *DetectorSuite) TestOnRecordedPersistsSignals() {
	e := loginEvent(activitymodels.ActionFailedLogin, morning, laptop, lagos)
	s.Require().NoError(s.activities.Create(s.ctx, e))

	s.detector.OnRecorded(s.ctx, e)

	stored, err := s.signals.ListByUser(s.ctx, userID, false)
	s.Require().NoError(err)
	s.Len(stored, 1)
}

// Detection reads history at evaluation time without a lock across the write and the
// read, so concurrent logins from one new device race. These cases pin the outcomes.
func (s *DetectorSuite) TestKnownRace_ConcurrentNewDeviceLogins() {
	s.Run("second login evaluated after first write suppresses its own signal", func() {
		s.SetupTest()
		s.record(activitymodels.ActionLogin, morning, laptop, lagos)

		first := s.record(activitymodels.ActionLogin, morning.Add(time.Second), phone, lagos)
		second := s.record(activitymodels.ActionLogin, morning.Add(2*time.Second), phone, lagos)
		s.Len(ofType(first, models.SignalNewDevice), 1)
		s.Empty(ofType(second, models.SignalNewDevice))
	})

	s.Run("both writes land before either evaluation and no signal is raised", func() {
		s.SetupTest()
		s.record(activitymodels.ActionLogin, morning, laptop, lagos)

		a := loginEvent(activitymodels.ActionLogin, morning.Add(time.Second), phone, lagos)
		b := loginEvent(activitymodels.ActionLogin, morning.Add(time.Second), phone, lagos)
		s.Require().NoError(s.activities.Create(s.ctx, a))
		s.Require().NoError(s.activities.Create(s.ctx, b))

		s.Empty(ofType(s.detector.Evaluate(s.ctx, a), models.SignalNewDevice))
		s.Empty(ofType(s.detector.Evaluate(s.ctx, b), models.SignalNewDevice))
	})

	s.Run("each evaluation misses the other write and both raise", func() {
		s.SetupTest()
		s.record(activitymodels.ActionLogin, morning, laptop, lagos)

		a := loginEvent(activitymodels.ActionLogin, morning.Add(time.Second), phone, lagos)
		b := loginEvent(activitymodels.ActionLogin, morning.Add(time.Second), phone, lagos)
		s.Require().NoError(s.activities.Create(s.ctx, a))
		s.Require().NoError(s.activities.Create(s.ctx, b))

		viewA := detector.New(hiding{s.activities, b.ID}, s.signals, detector.WithLogger(discardLogger()))
		viewB := detector.New(hiding{s.activities, a.ID}, s.signals, detector.WithLogger(discardLogger()))
		s.Len(ofType(viewA.Evaluate(s.ctx, a), models.SignalNewDevice), 1)
		s.Len(ofType(viewB.Evaluate(s.ctx, b), models.SignalNewDevice), 1)
	})
}

func (s *DetectorSuite) TestPerUserSerializationUnderLoad() {
	d := detector.New(s.activities, s.signals,
		detector.WithPerUserSerialization(),
		detector.WithLogger(discardLogger()),
	)

	const n = 20
	events := make([]*activitymodels.Event, n)
	for i := range n {
		events[i] = loginEvent(activitymodels.ActionFailedLogin, morning.Add(time.Duration(i)*time.Second), laptop, lagos)
		s.Require().NoError(s.activities.Create(s.ctx, events[i]))
	}

	var wg sync.WaitGroup
	for _, e := range events {
		wg.Go(func() { d.Evaluate(s.ctx, e) })
	}
	wg.Wait()

	stored, err := s.signals.ListByUser(s.ctx, userID, true)
	s.Require().NoError(err)
	s.Len(stored, n)
}

func TestEvaluate_IgnoresUntriggeredEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockActivityReader(ctrl)
	writer := mocks.NewMockSignalWriter(ctrl)
	d := detector.New(reader, writer, detector.WithLogger(discardLogger()))

	assert.Nil(t, d.Evaluate(context.Background(), nil))
	assert.Nil(t, d.Evaluate(context.Background(), loginEvent(activitymodels.ActionZoneCreate, morning, laptop, lagos)))

	anonymous := loginEvent(activitymodels.ActionLogin, morning, laptop, lagos)
	anonymous.UserID = ""
	assert.Nil(t, d.Evaluate(context.Background(), anonymous))
}

func TestEvaluate_RuleFailureIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockActivityReader(ctrl)
	writer := mocks.NewMockSignalWriter(ctrl)
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	d := detector.New(reader, writer,
		detector.WithLogger(discardLogger()),
		detector.WithMetrics(m),
	)

	e := loginEvent(activitymodels.ActionLogin, morning, laptop, london)
	reader.EXPECT().
		DeviceHistory(gomock.Any(), userID, laptop, e.ID).
		Return(activitymodels.DeviceHistory{}, errors.New("connection reset"))
	reader.EXPECT().
		DistinctLocations(gomock.Any(), userID, morning.Add(-30*24*time.Hour), morning).
		Return([]string{lagos, abuja}, nil)
	writer.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sig *models.Signal) error {
			assert.Equal(t, models.SignalLocationAnomaly, sig.Type)
			return nil
		})

	raised := d.Evaluate(context.Background(), e)

	require.Len(t, raised, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RuleFailures.WithLabelValues("new_device")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SignalsRaised.WithLabelValues("LOCATION_ANOMALY", "WARNING")), 0)
}

func TestEvaluate_FailedLoginCountError(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockActivityReader(ctrl)
	writer := mocks.NewMockSignalWriter(ctrl)
	d := detector.New(reader, writer, detector.WithLogger(discardLogger()))

	reader.EXPECT().
		CountByUserAndActionSince(gomock.Any(), userID, activitymodels.ActionFailedLogin, morning.Add(-time.Hour)).
		Return(0, context.DeadlineExceeded)

	assert.Empty(t, d.Evaluate(context.Background(), loginEvent(activitymodels.ActionFailedLogin, morning, laptop, lagos)))
}

func TestEvaluate_SignalStoreFailureSkipsNotify(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockActivityReader(ctrl)
	writer := mocks.NewMockSignalWriter(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	d := detector.New(reader, writer,
		detector.WithNotifier(notifier),
		detector.WithLogger(discardLogger()),
	)

	reader.EXPECT().CountByUserAndActionSince(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)
	writer.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	assert.Empty(t, d.Evaluate(context.Background(), loginEvent(activitymodels.ActionFailedLogin, morning, laptop, lagos)))
}

func TestEvaluate_NotifyFailureKeepsSignal(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockActivityReader(ctrl)
	writer := mocks.NewMockSignalWriter(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	d := detector.New(reader, writer,
		detector.WithNotifier(notifier),
		detector.WithMetrics(m),
		detector.WithLogger(discardLogger()),
	)

	reader.EXPECT().CountByUserAndActionSince(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)
	writer.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable"))

	raised := d.Evaluate(context.Background(), loginEvent(activitymodels.ActionFailedLogin, morning, laptop, lagos))

	require.Len(t, raised, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.NotifyFailures), 0)
}

func TestEvaluate_RulePanicIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockActivityReader(ctrl)
	writer := mocks.NewMockSignalWriter(ctrl)
	d := detector.New(reader, writer, detector.WithLogger(discardLogger()))

	reader.EXPECT().DeviceHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, id.UserID, string, id.ActivityID) (activitymodels.DeviceHistory, error) {
			panic("nil map")
		})
	reader.EXPECT().DistinctLocations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	assert.NotPanics(t, func() {
		assert.Empty(t, d.Evaluate(context.Background(), loginEvent(activitymodels.ActionLogin, morning, laptop, lagos)))
	})
}

func loginEvent(action activitymodels.Action, ts time.Time, device, location string) *activitymodels.Event {
	outcome := activitymodels.OutcomeSuccess
	if action == activitymodels.ActionFailedLogin {
		outcome = activitymodels.OutcomeFailed
	}
	return &activitymodels.Event{
		ID:        id.NewActivityID(),
		UserID:    userID,
		IPAddress: ipAddrA,
		Device:    device,
		Location:  location,
		Action:    action,
		Outcome:   outcome,
		RiskLevel: activitymodels.RiskLow,
		Source:    activitymodels.SourceWeb,
		Timestamp: ts,
	}
}

func ofType(signals []*models.Signal, t models.SignalType) []*models.Signal {
	var out []*models.Signal
	for _, sig := range signals {
		if sig.Type == t {
			out = append(out, sig)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// hiding is an activity reader that cannot see one record yet.
type hiding struct {
	*activitystore.InMemoryStore
	hidden id.ActivityID
}

func (h hiding) DeviceHistory(ctx context.Context, userID id.UserID, device string, exclude id.ActivityID) (activitymodels.DeviceHistory, error) {
	logins, err := h.ListByUserAndAction(ctx, userID, activitymodels.ActionLogin, 0)
	if err != nil {
		return activitymodels.DeviceHistory{}, err
	}
	var out activitymodels.DeviceHistory
	for _, e := range logins {
		if e.ID == exclude || e.ID == h.hidden {
			continue
		}
		out.PriorLogins = true
		out.DeviceSeen = out.DeviceSeen || e.Device == device
	}
	return out, nil
}
