package services

import (
	"context"
	"log/slog"
	"time"

	"licensebridge/internal/infrastructure"
	"licensebridge/internal/licensing"
)

// ProvisioningService exposes the account lifecycle operations the
// billing platform invokes against a subscription.
type ProvisioningService interface {
	CreateAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error)
	SuspendAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error)
	UnsuspendAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error)
	TerminateAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error)
	RenewAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error)
	ChangePackage(ctx context.Context, req AccountRequest) (*ProvisionResult, error)
	ChangePassword(ctx context.Context, req AccountRequest, password string) (*ProvisionResult, error)
	LicenseKey(ctx context.Context, req AccountRequest) (*LicenseKeyResult, error)
	TestConnection(ctx context.Context) *ConnectionTestResult
}

// AccountRequest identifies the subscription an operation acts on,
// plus the option sources supplied by the billing platform.
type AccountRequest struct {
	SubscriptionID string            `json:"subscription_id" validate:"required,subscriptionid"`
	Username       string            `json:"username" validate:"required"`
	ConfigOptions  map[string]string `json:"config_options,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
	Positional     map[int]string    `json:"-"`
}

// ProvisionResult reports a completed lifecycle operation.
type ProvisionResult struct {
	Result     string    `json:"result"`
	Operation  string    `json:"operation"`
	ServiceID  string    `json:"service_id"`
	LicenseKey string    `json:"license_key,omitempty"`
	TraceID    string    `json:"trace_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// LicenseKeyResult returns the key the client software uses, located
// through the license's service metadata.
type LicenseKeyResult struct {
	LicenseKey string    `json:"license_key"`
	ServiceID  string    `json:"service_id"`
	TraceID    string    `json:"trace_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConnectionTestResult reports remote API reachability with a hint for
// the most likely misconfiguration.
type ConnectionTestResult struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
}

type provisioningService struct {
	reconciler *licensing.Reconciler
	logger     *slog.Logger
	defaults   map[string]string
}

// NewProvisioningService wires the service to a reconciler. defaults
// are operator-configured option values applied when a request does
// not supply its own.
func NewProvisioningService(reconciler *licensing.Reconciler, logger *slog.Logger, defaults map[string]string) ProvisioningService {
	if logger == nil {
		logger = slog.Default()
	}
	return &provisioningService{
		reconciler: reconciler,
		logger:     logger.With(slog.String("service", "provisioning")),
		defaults:   defaults,
	}
}

func (s *provisioningService) params(req AccountRequest) licensing.AccountParams {
	opts := licensing.OptionSet{
		ConfigOptions: req.ConfigOptions,
		CustomFields:  req.CustomFields,
		Positional:    req.Positional,
	}
	if opts.ConfigOptions == nil {
		opts.ConfigOptions = s.defaults
	} else if len(s.defaults) > 0 {
		merged := make(map[string]string, len(s.defaults)+len(opts.ConfigOptions))
		for k, v := range s.defaults {
			merged[k] = v
		}
		for k, v := range opts.ConfigOptions {
			merged[k] = v
		}
		opts.ConfigOptions = merged
	}
	return licensing.AccountParams{
		SubscriptionID: req.SubscriptionID,
		Username:       req.Username,
		Options:        opts,
	}
}

func (s *provisioningService) result(ctx context.Context, operation string, p licensing.AccountParams, key string) *ProvisionResult {
	return &ProvisionResult{
		Result:     "success",
		Operation:  operation,
		ServiceID:  s.reconciler.ServiceID(p),
		LicenseKey: key,
		TraceID:    infrastructure.GetTraceID(ctx),
		Timestamp:  time.Now().UTC(),
	}
}

func (s *provisioningService) CreateAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error) {
	p := s.params(req)
	s.logger.InfoContext(ctx, "create account requested",
		slog.String("subscription_id", p.SubscriptionID),
		slog.String("username", p.Username),
	)
	key, err := s.reconciler.CreateIfAbsent(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.result(ctx, "create", p, key), nil
}

func (s *provisioningService) SuspendAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error) {
	p := s.params(req)
	if err := s.reconciler.Suspend(ctx, p); err != nil {
		return nil, err
	}
	return s.result(ctx, "suspend", p, ""), nil
}

func (s *provisioningService) UnsuspendAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error) {
	p := s.params(req)
	if err := s.reconciler.Unsuspend(ctx, p); err != nil {
		return nil, err
	}
	return s.result(ctx, "unsuspend", p, ""), nil
}

func (s *provisioningService) TerminateAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error) {
	p := s.params(req)
	if err := s.reconciler.Terminate(ctx, p); err != nil {
		return nil, err
	}
	return s.result(ctx, "terminate", p, ""), nil
}

func (s *provisioningService) RenewAccount(ctx context.Context, req AccountRequest) (*ProvisionResult, error) {
	p := s.params(req)
	if err := s.reconciler.Renew(ctx, p); err != nil {
		return nil, err
	}
	return s.result(ctx, "renew", p, ""), nil
}

func (s *provisioningService) ChangePackage(ctx context.Context, req AccountRequest) (*ProvisionResult, error) {
	p := s.params(req)
	if err := s.reconciler.ChangePackage(ctx, p); err != nil {
		return nil, err
	}
	return s.result(ctx, "change_package", p, ""), nil
}

// ChangePassword exists for billing platform parity. The remote
// service has no password concept, so the operation only validates its
// input.
func (s *provisioningService) ChangePassword(ctx context.Context, req AccountRequest, password string) (*ProvisionResult, error) {
	p := s.params(req)
	if err := s.reconciler.ChangePassword(ctx, password); err != nil {
		return nil, err
	}
	return s.result(ctx, "change_password", p, ""), nil
}

func (s *provisioningService) LicenseKey(ctx context.Context, req AccountRequest) (*LicenseKeyResult, error) {
	p := s.params(req)
	key, err := s.reconciler.ClientLicenseKey(ctx, p)
	if err != nil {
		return nil, err
	}
	return &LicenseKeyResult{
		LicenseKey: key,
		ServiceID:  s.reconciler.ServiceID(p),
		TraceID:    infrastructure.GetTraceID(ctx),
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (s *provisioningService) TestConnection(ctx context.Context) *ConnectionTestResult {
	status := s.reconciler.TestConnection(ctx)
	if !status.Success {
		s.logger.WarnContext(ctx, "connection test failed", slog.String("error", status.Error))
	}
	return &ConnectionTestResult{
		Success:   status.Success,
		Error:     status.Error,
		TraceID:   infrastructure.GetTraceID(ctx),
		Timestamp: time.Now().UTC(),
	}
}
