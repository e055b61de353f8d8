package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/middleware"
	"licensebridge/internal/services"
)

// ProvisionHandler serves the account lifecycle endpoints.
type ProvisionHandler struct {
	service   services.ProvisioningService
	logger    *slog.Logger
	errs      *apierrors.ErrorHandler
	validator *middleware.Validator
}

// NewProvisionHandler creates a provisioning handler.
func NewProvisionHandler(service services.ProvisioningService, logger *slog.Logger) *ProvisionHandler {
	return &ProvisionHandler{
		service:   service,
		logger:    logger.With(slog.String("handler", "provision")),
		errs:      apierrors.NewErrorHandler(logger),
		validator: middleware.NewValidator(),
	}
}

// PasswordChangeRequest carries the new password alongside the account
// identity.
type PasswordChangeRequest struct {
	services.AccountRequest
	Password string `json:"password" validate:"required"`
}

// Routes returns the router for /api/v1/accounts.
func (h *ProvisionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Timeout(30 * time.Second))

	r.Post("/", h.Create)
	r.Post("/suspend", h.Suspend)
	r.Post("/unsuspend", h.Unsuspend)
	r.Post("/terminate", h.Terminate)
	r.Post("/renew", h.Renew)
	r.Post("/change-package", h.ChangePackage)
	r.Post("/change-password", h.ChangePassword)
	r.Get("/key", h.LicenseKey)

	return r
}

// decodeAccount decodes and validates the common account payload,
// writing the problem response itself on failure.
func (h *ProvisionHandler) decodeAccount(w http.ResponseWriter, r *http.Request) (services.AccountRequest, bool) {
	var req services.AccountRequest
	if err := render.Decode(r, &req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return req, false
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return req, false
	}
	return req, true
}

type accountOp func(ctx context.Context, req services.AccountRequest) (*services.ProvisionResult, error)

// handleAccountOp is the shared decode/validate/delegate/render cycle
// for every lifecycle endpoint.
func (h *ProvisionHandler) handleAccountOp(w http.ResponseWriter, r *http.Request, operation string, op accountOp) {
	tracer := otel.Tracer("provision-handler")
	ctx, span := tracer.Start(r.Context(), "provision_handler."+operation,
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
			attribute.String("operation", operation),
		),
	)
	defer span.End()

	req, ok := h.decodeAccount(w, r)
	if !ok {
		span.SetAttributes(attribute.String("error.type", "request_invalid"))
		return
	}
	span.SetAttributes(attribute.String("subscription_id", req.SubscriptionID))

	res, err := op(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.errs.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// Create handles POST /api/v1/accounts.
func (h *ProvisionHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.handleAccountOp(w, r, "create", h.service.CreateAccount)
}

// Suspend handles POST /api/v1/accounts/suspend.
func (h *ProvisionHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.handleAccountOp(w, r, "suspend", h.service.SuspendAccount)
}

// Unsuspend handles POST /api/v1/accounts/unsuspend.
func (h *ProvisionHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.handleAccountOp(w, r, "unsuspend", h.service.UnsuspendAccount)
}

// Terminate handles POST /api/v1/accounts/terminate.
func (h *ProvisionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	h.handleAccountOp(w, r, "terminate", h.service.TerminateAccount)
}

// Renew handles POST /api/v1/accounts/renew.
func (h *ProvisionHandler) Renew(w http.ResponseWriter, r *http.Request) {
	h.handleAccountOp(w, r, "renew", h.service.RenewAccount)
}

// ChangePackage handles POST /api/v1/accounts/change-package.
func (h *ProvisionHandler) ChangePackage(w http.ResponseWriter, r *http.Request) {
	h.handleAccountOp(w, r, "change_package", h.service.ChangePackage)
}

// ChangePassword handles POST /api/v1/accounts/change-password.
func (h *ProvisionHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordChangeRequest
	if err := render.Decode(r, &req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	res, err := h.service.ChangePassword(r.Context(), req.AccountRequest, req.Password)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// LicenseKey handles GET /api/v1/accounts/key. The account identity
// comes from query parameters so the billing platform can link to it.
func (h *ProvisionHandler) LicenseKey(w http.ResponseWriter, r *http.Request) {
	req := services.AccountRequest{
		SubscriptionID: r.URL.Query().Get("subscription_id"),
		Username:       r.URL.Query().Get("username"),
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	res, err := h.service.LicenseKey(r.Context(), req)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// TestConnection handles GET /api/v1/connection/test. A failed probe
// is reported in the body, not as an HTTP error, so operators see the
// remediation hint.
func (h *ProvisionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	res := h.service.TestConnection(r.Context())
	if !res.Success {
		h.logger.WarnContext(r.Context(), "connection test failed",
			slog.String("error", res.Error))
	}
	render.JSON(w, r, res)
}
