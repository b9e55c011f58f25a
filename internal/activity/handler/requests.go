package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"reloop/internal/activity/models"
	securitymodels "reloop/internal/security/models"
	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
	s "reloop/pkg/string"
	"reloop/pkg/validation"
)

const defaultSummaryDays = 30

// ListLogsRequest binds GET /activity/logs and GET /activity/export query parameters.
type ListLogsRequest struct {
	UserID     string `validate:"omitempty,max=128"`
	Action     string
	RiskLevel  string
	Source     string
	Outcome    string
	EntityType string `validate:"omitempty,max=64"`
	EntityID   string `validate:"omitempty,max=128"`
	DateFrom   string `validate:"omitempty,timestamp"`
	DateTo     string `validate:"omitempty,timestamp"`
	Page       int    `validate:"gte=0"`
	Limit      int    `validate:"gte=0,lte=100"`
}

func bindListLogs(q url.Values) (*ListLogsRequest, error) {
	page, err := intParam(q, "page")
	if err != nil {
		return nil, err
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		return nil, err
	}
	return &ListLogsRequest{
		UserID:     q.Get("userId"),
		Action:     q.Get("action"),
		RiskLevel:  q.Get("riskLevel"),
		Source:     q.Get("source"),
		Outcome:    q.Get("outcome"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		DateFrom:   q.Get("dateFrom"),
		DateTo:     q.Get("dateTo"),
		Page:       page,
		Limit:      limit,
	}, nil
}

func (r *ListLogsRequest) Sanitize() {
	s.TrimStrings(&r.UserID, &r.Action, &r.RiskLevel, &r.Source, &r.Outcome,
		&r.EntityType, &r.EntityID, &r.DateFrom, &r.DateTo)
}

func (r *ListLogsRequest) Validate() error {
	return validation.Validate(r)
}

// Filter converts the request into a store filter. Enum values are parsed here so an
// unknown value is reported by name.
func (r *ListLogsRequest) Filter() (models.Filter, error) {
	filter := models.Filter{
		UserID:     id.UserID(r.UserID),
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
	}
	if r.Action != "" {
		a, err := models.ParseAction(r.Action)
		if err != nil {
			return filter, err
		}
		filter.Action = &a
	}
	if r.RiskLevel != "" {
		rl, err := models.ParseRiskLevel(r.RiskLevel)
		if err != nil {
			return filter, err
		}
		filter.RiskLevel = &rl
	}
	if r.Source != "" {
		src, err := models.ParseSource(r.Source)
		if err != nil {
			return filter, err
		}
		filter.Source = &src
	}
	if r.Outcome != "" {
		o, err := models.ParseOutcome(r.Outcome)
		if err != nil {
			return filter, err
		}
		filter.Outcome = &o
	}
	filter.From = timeParam(r.DateFrom, false)
	filter.To = timeParam(r.DateTo, true)
	return filter, nil
}

func (r *ListLogsRequest) PageRequest() models.Page {
	return models.Page{Page: r.Page, Limit: r.Limit}
}

// SignalsRequest binds GET /activity/security-signals query parameters.
type SignalsRequest struct {
	UserID              string `validate:"omitempty,max=128"`
	Type                string
	Severity            string
	Acknowledged        string `validate:"omitempty,boolean"`
	IncludeAcknowledged string `validate:"omitempty,boolean"`
	DateFrom            string `validate:"omitempty,timestamp"`
	DateTo              string `validate:"omitempty,timestamp"`
	Page                int    `validate:"gte=0"`
	Limit               int    `validate:"gte=0,lte=100"`
}

func bindSignals(q url.Values) (*SignalsRequest, error) {
	page, err := intParam(q, "page")
	if err != nil {
		return nil, err
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		return nil, err
	}
	return &SignalsRequest{
		UserID:              q.Get("userId"),
		Type:                q.Get("type"),
		Severity:            q.Get("severity"),
		Acknowledged:        q.Get("acknowledged"),
		IncludeAcknowledged: q.Get("includeAcknowledged"),
		DateFrom:            q.Get("dateFrom"),
		DateTo:              q.Get("dateTo"),
		Page:                page,
		Limit:               limit,
	}, nil
}

func (r *SignalsRequest) Sanitize() {
	s.TrimStrings(&r.UserID, &r.Type, &r.Severity, &r.Acknowledged, &r.IncludeAcknowledged,
		&r.DateFrom, &r.DateTo)
}

func (r *SignalsRequest) Validate() error {
	return validation.Validate(r)
}

// Filter converts the request into a signal filter. Without an explicit acknowledged
// value, only open signals are listed unless includeAcknowledged is true.
func (r *SignalsRequest) Filter() (securitymodels.Filter, error) {
	filter := securitymodels.Filter{UserID: id.UserID(r.UserID)}
	if r.Type != "" {
		t, err := securitymodels.ParseSignalType(r.Type)
		if err != nil {
			return filter, err
		}
		filter.Type = &t
	}
	if r.Severity != "" {
		sev, err := securitymodels.ParseSeverity(r.Severity)
		if err != nil {
			return filter, err
		}
		filter.Severity = &sev
	}
	switch {
	case r.Acknowledged != "":
		ack, _ := strconv.ParseBool(r.Acknowledged)
		filter.Acknowledged = &ack
	case !boolParam(r.IncludeAcknowledged):
		open := false
		filter.Acknowledged = &open
	}
	filter.From = timeParam(r.DateFrom, false)
	filter.To = timeParam(r.DateTo, true)
	return filter, nil
}

func (r *SignalsRequest) PageRequest() models.Page {
	return models.Page{Page: r.Page, Limit: r.Limit}
}

// SummaryRequest binds GET /activity/summary query parameters.
type SummaryRequest struct {
	UserID string `validate:"omitempty,max=128"`
	Days   int    `validate:"gte=0,lte=365"`
}

func bindSummary(q url.Values) (*SummaryRequest, error) {
	days, err := intParam(q, "days")
	if err != nil {
		return nil, err
	}
	return &SummaryRequest{UserID: q.Get("userId"), Days: days}, nil
}

func (r *SummaryRequest) Sanitize() { s.TrimStrings(&r.UserID) }

func (r *SummaryRequest) Normalize() {
	if r.Days == 0 {
		r.Days = defaultSummaryDays
	}
}

func (r *SummaryRequest) Validate() error {
	return validation.Validate(r)
}

func (r *SummaryRequest) Window() time.Duration {
	return time.Duration(r.Days) * 24 * time.Hour
}

func intParam(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, key+" must be an integer")
	}
	return n, nil
}

func boolParam(raw string) bool {
	b, _ := strconv.ParseBool(raw)
	return b
}

// timeParam parses a value already checked by the timestamp validator. A plain date
// used as an upper bound covers that whole day.
func timeParam(raw string, upper bool) *time.Time {
	if raw == "" {
		return nil
	}
	t, dateOnly, err := validation.ParseTimestamp(raw)
	if err != nil {
		return nil
	}
	if dateOnly && upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t
}
