package detector

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/models"
	id "reloop/pkg/domain"
)

const (
	failedLoginWindow = time.Hour
	businessHourStart = 8
	businessHourEnd   = 19
	minKnownLocations = 2
	namedLocations    = 2
)

// rule inspects one event and returns at most one signal. A nil signal with a nil error
// means the rule did not fire.
type rule struct {
	name     string
	triggers activitymodels.Action
	eval     func(d *Detector, ctx context.Context, e *activitymodels.Event) (*models.Signal, error)
}

// rules run in this order for every triggering event.
var rules = []rule{
	{"failed_login_burst", activitymodels.ActionFailedLogin, (*Detector).failedLoginBurst},
	{"unusual_time", activitymodels.ActionLogin, (*Detector).unusualTime},
	{"new_device", activitymodels.ActionLogin, (*Detector).newDevice},
	{"location_anomaly", activitymodels.ActionLogin, (*Detector).locationAnomaly},
}

// failedLoginBurst counts FAILED_LOGIN records in the trailing hour, the triggering one
// included. Any count >= 1 fires, so every failed login raises a CRITICAL signal.
func (d *Detector) failedLoginBurst(ctx context.Context, e *activitymodels.Event) (*models.Signal, error) {
	count, err := d.activities.CountByUserAndActionSince(ctx, e.UserID, activitymodels.ActionFailedLogin, e.Timestamp.Add(-failedLoginWindow))
	if err != nil {
		return nil, fmt.Errorf("count failed logins: %w", err)
	}
	if count < 1 {
		return nil, nil
	}

	attempts := count + 1
	s := d.newSignal(e, models.SignalFailedLogin, models.SeverityCritical,
		"Multiple failed login attempts",
		fmt.Sprintf("%d failed attempts in the last hour", attempts))
	s.Metadata[models.MetaAttempts] = strconv.Itoa(attempts)
	return s, nil
}

func (d *Detector) unusualTime(_ context.Context, e *activitymodels.Event) (*models.Signal, error) {
	hour := e.Timestamp.In(d.location).Hour()
	if hour >= businessHourStart && hour <= businessHourEnd {
		return nil, nil
	}
	s := d.newSignal(e, models.SignalUnusualTime, models.SeverityWarning,
		"Login at an unusual time",
		fmt.Sprintf("Login at %02d:%02d, outside usual hours", hour, e.Timestamp.In(d.location).Minute()))
	s.Metadata[models.MetaLocalHour] = strconv.Itoa(hour)
	return s, nil
}

// newDevice fires when the user has logged in before and never from this device.
func (d *Detector) newDevice(ctx context.Context, e *activitymodels.Event) (*models.Signal, error) {
	history, err := d.activities.DeviceHistory(ctx, e.UserID, e.Device, e.ID)
	if err != nil {
		return nil, fmt.Errorf("read device history: %w", err)
	}
	if !history.PriorLogins || history.DeviceSeen {
		return nil, nil
	}

	return d.newSignal(e, models.SignalNewDevice, models.SeverityWarning,
		"Login from a new device",
		fmt.Sprintf("First login from %s", e.Device)), nil
}

// locationAnomaly compares the event location with the distinct locations the user was
// seen at in the trailing window before the event.
func (d *Detector) locationAnomaly(ctx context.Context, e *activitymodels.Event) (*models.Signal, error) {
	if e.Location == "" || e.Location == activitymodels.UnknownLocation {
		return nil, nil
	}
	known, err := d.activities.DistinctLocations(ctx, e.UserID, e.Timestamp.Add(-d.locationWindow), e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("list distinct locations: %w", err)
	}
	if len(known) < minKnownLocations || slices.Contains(known, e.Location) {
		return nil, nil
	}

	usual := strings.Join(known[:min(namedLocations, len(known))], ", ")
	s := d.newSignal(e, models.SignalLocationAnomaly, models.SeverityWarning,
		"Login from an unfamiliar location",
		fmt.Sprintf("Login from %s; usually seen in %s", e.Location, usual))
	s.Metadata[models.MetaKnownLocations] = usual
	return s, nil
}

func (d *Detector) newSignal(e *activitymodels.Event, t models.SignalType, sev models.Severity, title, description string) *models.Signal {
	return &models.Signal{
		ID:          id.NewSignalID(),
		UserID:      e.UserID,
		ActivityID:  e.ID,
		Type:        t,
		Severity:    sev,
		Title:       title,
		Description: description,
		Timestamp:   d.clock(),
		Metadata: map[string]string{
			models.MetaIPAddress: e.IPAddress,
			models.MetaDevice:    e.Device,
			models.MetaLocation:  e.Location,
		},
	}
}
