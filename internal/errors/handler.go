package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"licensebridge/internal/config"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/licensing"
)

// ErrorHandler provides centralized error handling for the HTTP surface.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := infrastructure.GetTraceID(r.Context())
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("trace_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)
	_ = render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return NewProblemDetails(
			apiErr.StatusCode,
			TypeInternal,
			apiErr.ErrorCode,
			apiErr.Message,
			r.URL.Path,
		)
	}

	if errors.Is(err, licensing.ErrLicenseNotFound) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeLicenseNotFound,
			"License Not Found",
			"No license record matches this subscription",
			r.URL.Path,
		)
	}

	var remoteErr *licensing.APIError
	if errors.As(err, &remoteErr) {
		problemType := TypeRemoteAPI
		if remoteErr.StatusCode == 0 {
			problemType = TypeRemoteTransport
		}
		return NewProblemDetails(
			http.StatusBadGateway,
			problemType,
			"Remote License Service Error",
			remoteErr.Error(),
			r.URL.Path,
		).WithExtension("remote_status", remoteErr.StatusCode)
	}

	if errors.Is(err, config.ErrHostnameMissing) ||
		errors.Is(err, config.ErrTeamIDMissing) ||
		errors.Is(err, config.ErrAPIKeyMissing) {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeConfiguration,
			"Connector Misconfigured",
			err.Error(),
			r.URL.Path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		err.Error(),
		r.URL.Path,
	)
}
