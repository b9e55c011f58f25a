package models

import (
	"strings"

	dErrors "reloop/pkg/domain-errors"
)

// Action is the domain action a request was classified into.
type Action string

const (
	ActionLogin             Action = "LOGIN"
	ActionLogout            Action = "LOGOUT"
	ActionFailedLogin       Action = "FAILED_LOGIN"
	ActionPasswordChange    Action = "PASSWORD_CHANGE"
	ActionPasswordReset     Action = "PASSWORD_RESET"
	ActionTwoFactorChange   Action = "TWO_FACTOR_CHANGE"
	ActionSessionTerminated Action = "SESSION_TERMINATED"

	ActionAdminCreate Action = "ADMIN_CREATE"
	ActionAdminUpdate Action = "ADMIN_UPDATE"
	ActionAdminDelete Action = "ADMIN_DELETE"
	ActionUserCreate  Action = "USER_CREATE"
	ActionUserUpdate  Action = "USER_UPDATE"
	ActionUserDelete  Action = "USER_DELETE"
	ActionAgentCreate Action = "AGENT_CREATE"
	ActionAgentUpdate Action = "AGENT_UPDATE"
	ActionAgentDelete Action = "AGENT_DELETE"
	ActionZoneCreate  Action = "ZONE_CREATE"
	ActionZoneUpdate  Action = "ZONE_UPDATE"
	ActionZoneDelete  Action = "ZONE_DELETE"
	ActionCityCreate  Action = "CITY_CREATE"
	ActionCityUpdate  Action = "CITY_UPDATE"
	ActionCityDelete  Action = "CITY_DELETE"

	ActionNotificationSend   Action = "NOTIFICATION_SEND"
	ActionPickupStatusUpdate Action = "PICKUP_STATUS_UPDATE"
	ActionPricingUpdate      Action = "PRICING_UPDATE"
	ActionFinanceTransaction Action = "FINANCE_TRANSACTION"
	ActionOrderOverride      Action = "ORDER_OVERRIDE"
	ActionEscalationCreate   Action = "ESCALATION_CREATE"
	ActionEscalationUpdate   Action = "ESCALATION_UPDATE"
	ActionSensitiveDataView  Action = "SENSITIVE_DATA_VIEW"
	ActionDataExport         Action = "DATA_EXPORT"
	ActionSettingsUpdate     Action = "SETTINGS_UPDATE"
	ActionSignalAcknowledge  Action = "SIGNAL_ACKNOWLEDGE"
)

var validActions = map[Action]struct{}{
	ActionLogin: {}, ActionLogout: {}, ActionFailedLogin: {}, ActionPasswordChange: {},
	ActionPasswordReset: {}, ActionTwoFactorChange: {}, ActionSessionTerminated: {},
	ActionAdminCreate: {}, ActionAdminUpdate: {}, ActionAdminDelete: {},
	ActionUserCreate: {}, ActionUserUpdate: {}, ActionUserDelete: {},
	ActionAgentCreate: {}, ActionAgentUpdate: {}, ActionAgentDelete: {},
	ActionZoneCreate: {}, ActionZoneUpdate: {}, ActionZoneDelete: {},
	ActionCityCreate: {}, ActionCityUpdate: {}, ActionCityDelete: {},
	ActionNotificationSend: {}, ActionPickupStatusUpdate: {}, ActionPricingUpdate: {},
	ActionFinanceTransaction: {}, ActionOrderOverride: {}, ActionEscalationCreate: {},
	ActionEscalationUpdate: {}, ActionSensitiveDataView: {}, ActionDataExport: {},
	ActionSettingsUpdate: {}, ActionSignalAcknowledge: {},
}

func (a Action) IsValid() bool {
	_, ok := validActions[a]
	return ok
}

func (a Action) String() string { return string(a) }

// IsAuthentication reports whether the action belongs to the login/logout family that the
// summary excludes from "actions performed".
func (a Action) IsAuthentication() bool {
	return a == ActionLogin || a == ActionLogout || a == ActionFailedLogin
}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid action")
	}
	return a, nil
}

// RiskLevel is the coarse severity tier of an action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// IsSensitive reports whether the tier counts towards a summary's sensitive actions.
func (r RiskLevel) IsSensitive() bool {
	return r == RiskHigh || r == RiskCritical
}

func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid risk level")
	}
	return r, nil
}

// Source is the channel a request arrived through.
type Source string

const (
	SourceWeb    Source = "WEB"
	SourceAPI    Source = "API"
	SourceMobile Source = "MOBILE"
	SourceSystem Source = "SYSTEM"
)

func (s Source) IsValid() bool {
	switch s {
	case SourceWeb, SourceAPI, SourceMobile, SourceSystem:
		return true
	}
	return false
}

func ParseSource(s string) (Source, error) {
	src := Source(strings.ToUpper(strings.TrimSpace(s)))
	if !src.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid source")
	}
	return src, nil
}

// Outcome is PENDING while the request is in flight and SUCCESS/FAILED once settled.
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

func (o Outcome) IsSettled() bool {
	return o == OutcomeSuccess || o == OutcomeFailed
}

// OutcomeFromStatus maps 2xx and 3xx to SUCCESS and everything else to FAILED.
func OutcomeFromStatus(status int) Outcome {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeFailed
}

// ParseOutcome accepts only settled outcomes; PENDING records are never visible.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsSettled() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid outcome")
	}
	return o, nil
}
