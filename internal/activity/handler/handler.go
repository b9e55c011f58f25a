// Package handler exposes activity logs, summaries, exports and security signals over HTTP.
//
// Every route requires an authenticated caller. Callers without the super admin role are
// scoped to their own user ID: a userId query parameter naming someone else is replaced
// with the caller's own ID.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reloop/internal/activity/models"
	"reloop/internal/activity/service"
	securitymodels "reloop/internal/security/models"
	securityservice "reloop/internal/security/service"
	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
	"reloop/pkg/platform/httputil"
	"reloop/pkg/requestcontext"
)

// ActivityService is the activity read API.
type ActivityService interface {
	List(ctx context.Context, filter models.Filter, page models.Page) (*service.Result, error)
	Get(ctx context.Context, activityID id.ActivityID) (*models.Event, error)
	Summary(ctx context.Context, userID id.UserID, window time.Duration) (*service.Summary, error)
	Export(ctx context.Context, filter models.Filter, w io.Writer) (int, error)
}

// SignalService is the security signal query and acknowledgment API.
type SignalService interface {
	List(ctx context.Context, filter securitymodels.Filter, page models.Page) ([]*securitymodels.Signal, int, error)
	Acknowledge(ctx context.Context, signalID id.SignalID, scope securityservice.Scope) (*securitymodels.Signal, error)
	AcknowledgeAll(ctx context.Context, userID id.UserID) (int, error)
}

type Handler struct {
	activity ActivityService
	signals  SignalService
	logger   *slog.Logger
	clock    func() time.Time
}

func New(activity ActivityService, signals SignalService, logger *slog.Logger) *Handler {
	return &Handler{
		activity: activity,
		signals:  signals,
		logger:   logger,
		clock:    time.Now,
	}
}

// Register mounts the /activity routes. Callers wrap r with authentication.
func (h *Handler) Register(r chi.Router) {
	r.Route("/activity", func(r chi.Router) {
		r.Get("/logs", h.handleListLogs)
		r.Get("/logs/{id}", h.handleGetLog)
		r.Get("/summary", h.handleSummary)
		r.Get("/export", h.handleExport)
		r.Get("/security-signals", h.handleListSignals)
		r.Post("/security-signals/acknowledge-all", h.handleAcknowledgeAll)
		r.Post("/security-signals/{id}/acknowledge", h.handleAcknowledge)
	})
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, page, ok := h.logsQuery(w, r)
	if !ok {
		return
	}

	res, err := h.activity.List(ctx, filter, page)
	if err != nil {
		h.fail(ctx, w, "failed to list activity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListLogsResponse(res))
}

func (h *Handler) handleGetLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	activityID, err := id.ParseActivityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	event, err := h.activity.Get(ctx, activityID)
	if err != nil {
		h.fail(ctx, w, "failed to load activity", err)
		return
	}
	if !requestcontext.IsSuperAdmin(ctx) && event.UserID != caller {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "activity not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEvent(event))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, err := bindSummary(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !httputil.Prepare(w, ctx, h.logger, req) {
		return
	}

	sum, err := h.activity.Summary(ctx, h.scopeUser(ctx, caller, req.UserID, caller), req.Window())
	if err != nil {
		h.fail(ctx, w, "failed to summarize activity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, _, ok := h.logsQuery(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+service.ExportFilename(h.clock())+`"`)
	n, err := h.activity.Export(ctx, filter, w)
	if err != nil {
		// Rows may already be on the wire; only a failure before the first row can
		// still become an error response.
		h.logger.ErrorContext(ctx, "activity export failed",
			"error", err,
			"rows", n,
			"request_id", requestcontext.RequestID(ctx),
		)
		if n == 0 && dErrors.HasCode(err, dErrors.CodeValidation) {
			w.Header().Del("Content-Disposition")
			httputil.WriteError(w, err)
		}
		return
	}
	h.logger.InfoContext(ctx, "activity exported",
		"rows", n,
		"user_id", requestcontext.UserID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (h *Handler) handleListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, err := bindSignals(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !httputil.Prepare(w, ctx, h.logger, req) {
		return
	}
	filter, err := req.Filter()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.UserID = h.scopeUser(ctx, caller, req.UserID, "")

	page := req.PageRequest()
	signals, total, err := h.signals.List(ctx, filter, page)
	if err != nil {
		h.fail(ctx, w, "failed to list security signals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSignalsResponse(signals, total, page))
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	signalID, err := id.ParseSignalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	scope := securityservice.Scope{UserID: caller, SuperAdmin: requestcontext.IsSuperAdmin(ctx)}
	signal, err := h.signals.Acknowledge(ctx, signalID, scope)
	if err != nil {
		h.fail(ctx, w, "failed to acknowledge security signal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSignal(signal))
}

func (h *Handler) handleAcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	userID := h.scopeUser(ctx, caller, r.URL.Query().Get("userId"), caller)
	n, err := h.signals.AcknowledgeAll(ctx, userID)
	if err != nil {
		h.fail(ctx, w, "failed to acknowledge security signals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AcknowledgeAllResponse{Acknowledged: n})
}

// logsQuery binds and validates the shared list/export parameters.
func (h *Handler) logsQuery(w http.ResponseWriter, r *http.Request) (models.Filter, models.Page, bool) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return models.Filter{}, models.Page{}, false
	}
	req, err := bindListLogs(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return models.Filter{}, models.Page{}, false
	}
	if !httputil.Prepare(w, ctx, h.logger, req) {
		return models.Filter{}, models.Page{}, false
	}
	filter, err := req.Filter()
	if err != nil {
		httputil.WriteError(w, err)
		return models.Filter{}, models.Page{}, false
	}
	filter.UserID = h.scopeUser(ctx, caller, req.UserID, "")
	return filter, req.PageRequest(), true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := httputil.RequireUserID(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return userID, true
}

// scopeUser resolves which user a query targets. Super admins get the requested user or
// fallback when none is requested; everyone else always gets themselves.
func (h *Handler) scopeUser(ctx context.Context, caller id.UserID, requested string, fallback id.UserID) id.UserID {
	if !requestcontext.IsSuperAdmin(ctx) {
		return caller
	}
	if requested != "" {
		return id.UserID(requested)
	}
	return fallback
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
