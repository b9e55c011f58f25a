package handler

import (
	"time"

	"reloop/internal/activity/models"
	"reloop/internal/activity/service"
	securitymodels "reloop/internal/security/models"
)

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func newPagination(total int, page models.Page) Pagination {
	return Pagination{
		Total: total,
		Page:  page.Page,
		Limit: page.Limit,
		Pages: page.Pages(total),
	}
}

// Event is an activity record in HTTP responses.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	IPAddress   string    `json:"ipAddress"`
	Device      string    `json:"device"`
	Location    string    `json:"location"`
	Action      string    `json:"action"`
	ActionLabel string    `json:"actionLabel"`
	EntityType  string    `json:"entityType,omitempty"`
	EntityID    string    `json:"entityId,omitempty"`
	EntityName  string    `json:"entityName,omitempty"`
	Outcome     string    `json:"outcome"`
	RiskLevel   string    `json:"riskLevel"`
	Source      string    `json:"source"`
	BeforeState string    `json:"beforeState,omitempty"`
	AfterState  string    `json:"afterState,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	AuditRef    string    `json:"auditRef"`
	RequestID   string    `json:"requestId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func toEvent(e *models.Event) Event {
	return Event{
		ID:          e.ID.String(),
		UserID:      e.UserID.String(),
		IPAddress:   e.IPAddress,
		Device:      e.Device,
		Location:    e.Location,
		Action:      string(e.Action),
		ActionLabel: e.ActionLabel,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		EntityName:  e.EntityName,
		Outcome:     string(e.Outcome),
		RiskLevel:   string(e.RiskLevel),
		Source:      string(e.Source),
		BeforeState: e.BeforeState,
		AfterState:  e.AfterState,
		Reason:      e.Reason,
		AuditRef:    e.AuditRef,
		RequestID:   e.RequestID,
		Timestamp:   e.Timestamp,
	}
}

type ListLogsResponse struct {
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}

func toListLogsResponse(res *service.Result) *ListLogsResponse {
	events := make([]Event, 0, len(res.Events))
	for _, e := range res.Events {
		events = append(events, toEvent(e))
	}
	return &ListLogsResponse{Events: events, Pagination: newPagination(res.Total, res.Page)}
}

type SummaryResponse struct {
	RecentLogins      int       `json:"recentLogins"`
	ActionsPerformed  int       `json:"actionsPerformed"`
	SensitiveActions  int       `json:"sensitiveActions"`
	DistinctLocations int       `json:"distinctLocations"`
	OpenSignals       int       `json:"openSignals"`
	LastActivityTime  time.Time `json:"lastActivityTime"`
}

func toSummaryResponse(sum *service.Summary) *SummaryResponse {
	return &SummaryResponse{
		RecentLogins:      sum.RecentLogins,
		ActionsPerformed:  sum.ActionsPerformed,
		SensitiveActions:  sum.SensitiveActions,
		DistinctLocations: sum.DistinctLocations,
		OpenSignals:       sum.OpenSignals,
		LastActivityTime:  sum.LastActivityTime,
	}
}

// Signal is a security signal in HTTP responses.
type Signal struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	ActivityID     string            `json:"activityId,omitempty"`
	Type           string            `json:"type"`
	Severity       string            `json:"severity"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Acknowledged   bool              `json:"acknowledged"`
	AcknowledgedAt *time.Time        `json:"acknowledgedAt,omitempty"`
}

func toSignal(s *securitymodels.Signal) Signal {
	out := Signal{
		ID:             s.ID.String(),
		UserID:         s.UserID.String(),
		Type:           string(s.Type),
		Severity:       string(s.Severity),
		Title:          s.Title,
		Description:    s.Description,
		Metadata:       s.Metadata,
		Timestamp:      s.Timestamp,
		Acknowledged:   s.Acknowledged,
		AcknowledgedAt: s.AcknowledgedAt,
	}
	if !s.ActivityID.IsNil() {
		out.ActivityID = s.ActivityID.String()
	}
	return out
}

type SignalsResponse struct {
	Signals    []Signal   `json:"signals"`
	Pagination Pagination `json:"pagination"`
}

func toSignalsResponse(signals []*securitymodels.Signal, total int, page models.Page) *SignalsResponse {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		out = append(out, toSignal(s))
	}
	return &SignalsResponse{Signals: out, Pagination: newPagination(total, page.Normalize())}
}

type AcknowledgeAllResponse struct {
	Acknowledged int `json:"acknowledged"`
}
