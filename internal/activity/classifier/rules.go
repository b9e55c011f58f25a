package classifier

import (
	"net/http"

	"reloop/internal/activity/models"
)

// rule maps a method set and path pattern to an action. Patterns use literal segments,
// {param} for one segment and a trailing * for any remainder. entityParam names the
// parameter holding the entity ID, if any.
type rule struct {
	methods     []string
	pattern     string
	action      models.Action
	entityType  string
	entityParam string
}

var (
	post   = []string{http.MethodPost}
	get    = []string{http.MethodGet}
	del    = []string{http.MethodDelete}
	update = []string{http.MethodPut, http.MethodPatch}
	write  = []string{http.MethodPost, http.MethodPut, http.MethodPatch}
	all    = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
)

// otpVerificationPath establishes a session, so it classifies as LOGIN and is logged even
// before an identity is known.
const otpVerificationPath = "/auth/verify-otp"

var rules = []rule{
	{post, "/auth/login", models.ActionLogin, "auth", ""},
	{post, otpVerificationPath, models.ActionLogin, "auth", ""},
	{post, "/auth/logout", models.ActionLogout, "auth", ""},
	{post, "/auth/logout-all", models.ActionSessionTerminated, "session", ""},
	{del, "/auth/sessions", models.ActionSessionTerminated, "session", ""},
	{del, "/auth/sessions/{id}", models.ActionSessionTerminated, "session", "id"},
	{post, "/auth/change-password", models.ActionPasswordChange, "auth", ""},
	{update, "/auth/password", models.ActionPasswordChange, "auth", ""},
	{post, "/auth/forgot-password", models.ActionPasswordReset, "auth", ""},
	{post, "/auth/reset-password", models.ActionPasswordReset, "auth", ""},
	{all, "/auth/2fa/*", models.ActionTwoFactorChange, "auth", ""},

	{post, "/admins", models.ActionAdminCreate, "admin", ""},
	{update, "/admins/{id}", models.ActionAdminUpdate, "admin", "id"},
	{update, "/admins/{id}/*", models.ActionAdminUpdate, "admin", "id"},
	{del, "/admins/{id}", models.ActionAdminDelete, "admin", "id"},

	{post, "/users", models.ActionUserCreate, "user", ""},
	{update, "/users/{id}", models.ActionUserUpdate, "user", "id"},
	{update, "/users/{id}/*", models.ActionUserUpdate, "user", "id"},
	{del, "/users/{id}", models.ActionUserDelete, "user", "id"},
	{get, "/users/{id}/documents", models.ActionSensitiveDataView, "user", "id"},
	{get, "/users/{id}/bank-details", models.ActionSensitiveDataView, "user", "id"},

	{post, "/agents", models.ActionAgentCreate, "agent", ""},
	{update, "/agents/{id}", models.ActionAgentUpdate, "agent", "id"},
	{update, "/agents/{id}/*", models.ActionAgentUpdate, "agent", "id"},
	{del, "/agents/{id}", models.ActionAgentDelete, "agent", "id"},
	{get, "/agents/{id}/documents", models.ActionSensitiveDataView, "agent", "id"},

	{post, "/zones", models.ActionZoneCreate, "zone", ""},
	{update, "/zones/{id}", models.ActionZoneUpdate, "zone", "id"},
	{del, "/zones/{id}", models.ActionZoneDelete, "zone", "id"},
	{post, "/cities", models.ActionCityCreate, "city", ""},
	{update, "/cities/{id}", models.ActionCityUpdate, "city", "id"},
	{del, "/cities/{id}", models.ActionCityDelete, "city", "id"},

	{post, "/notifications/*", models.ActionNotificationSend, "notification", ""},
	{update, "/pickups/{id}/status", models.ActionPickupStatusUpdate, "pickup", "id"},
	{write, "/pricing/*", models.ActionPricingUpdate, "pricing", ""},
	{write, "/finance/*", models.ActionFinanceTransaction, "finance", ""},
	{post, "/orders/{id}/override", models.ActionOrderOverride, "order", "id"},
	{post, "/orders/{id}/escalate", models.ActionEscalationCreate, "order", "id"},
	{post, "/escalations", models.ActionEscalationCreate, "escalation", ""},
	{update, "/escalations/{id}", models.ActionEscalationUpdate, "escalation", "id"},
	{update, "/settings/*", models.ActionSettingsUpdate, "settings", ""},

	{get, "/activity/export", models.ActionDataExport, "activity", ""},
	{post, "/activity/security-signals/{id}/acknowledge", models.ActionSignalAcknowledge, "security_signal", "id"},
	{post, "/activity/security-signals/acknowledge-all", models.ActionSignalAcknowledge, "security_signal", ""},
}

var labels = map[models.Action]string{
	models.ActionLogin:              "Logged in",
	models.ActionLogout:             "Logged out",
	models.ActionFailedLogin:        "Failed login attempt",
	models.ActionPasswordChange:     "Changed password",
	models.ActionPasswordReset:      "Reset password",
	models.ActionTwoFactorChange:    "Changed two-factor settings",
	models.ActionSessionTerminated:  "Terminated session",
	models.ActionAdminCreate:        "Created administrator",
	models.ActionAdminUpdate:        "Updated administrator",
	models.ActionAdminDelete:        "Deleted administrator",
	models.ActionUserCreate:         "Created user",
	models.ActionUserUpdate:         "Updated user",
	models.ActionUserDelete:         "Deleted user",
	models.ActionAgentCreate:        "Created agent",
	models.ActionAgentUpdate:        "Updated agent",
	models.ActionAgentDelete:        "Deleted agent",
	models.ActionZoneCreate:         "Created zone",
	models.ActionZoneUpdate:         "Updated zone",
	models.ActionZoneDelete:         "Deleted zone",
	models.ActionCityCreate:         "Created city",
	models.ActionCityUpdate:         "Updated city",
	models.ActionCityDelete:         "Deleted city",
	models.ActionNotificationSend:   "Sent notification",
	models.ActionPickupStatusUpdate: "Updated pickup status",
	models.ActionPricingUpdate:      "Updated pricing",
	models.ActionFinanceTransaction: "Performed finance operation",
	models.ActionOrderOverride:      "Overrode order",
	models.ActionEscalationCreate:   "Raised escalation",
	models.ActionEscalationUpdate:   "Updated escalation",
	models.ActionSensitiveDataView:  "Viewed sensitive data",
	models.ActionDataExport:         "Exported activity log",
	models.ActionSettingsUpdate:     "Updated settings",
	models.ActionSignalAcknowledge:  "Acknowledged security signal",
}

var risks = map[models.Action]models.RiskLevel{
	models.ActionFinanceTransaction: models.RiskHigh,
	models.ActionOrderOverride:      models.RiskHigh,
	models.ActionEscalationCreate:   models.RiskHigh,
	models.ActionEscalationUpdate:   models.RiskHigh,
	models.ActionPricingUpdate:      models.RiskHigh,

	models.ActionPasswordChange:    models.RiskMedium,
	models.ActionPasswordReset:     models.RiskMedium,
	models.ActionTwoFactorChange:   models.RiskMedium,
	models.ActionSensitiveDataView: models.RiskMedium,
	models.ActionDataExport:        models.RiskMedium,
	models.ActionUserCreate:        models.RiskMedium,
	models.ActionUserUpdate:        models.RiskMedium,
	models.ActionUserDelete:        models.RiskMedium,
	models.ActionAgentCreate:       models.RiskMedium,
	models.ActionAgentUpdate:       models.RiskMedium,
	models.ActionAgentDelete:       models.RiskMedium,
}
