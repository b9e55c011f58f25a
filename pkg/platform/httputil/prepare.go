package httputil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	dErrors "reloop/pkg/domain-errors"
	"reloop/pkg/requestcontext"
)

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// Sanitizable is implemented by request types that support sanitization.
type Sanitizable interface {
	Sanitize()
}

// PrepareRequest sanitizes, normalizes and validates a request, in that order, for each
// interface req implements.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// Prepare runs PrepareRequest and writes the error response on failure.
//
//	req := dto.ListLogsRequest{...}
//	if !httputil.Prepare(w, r.Context(), h.logger, &req) {
//	    return
//	}
func Prepare(w http.ResponseWriter, ctx context.Context, logger *slog.Logger, req any) bool {
	err := PrepareRequest(req)
	if err == nil {
		return true
	}
	logger.WarnContext(ctx, "invalid request",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteError(w, err)
	} else {
		WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
	}
	return false
}
