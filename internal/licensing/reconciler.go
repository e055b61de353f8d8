package licensing

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultServicePrefix namespaces serviceid metadata values so licenses
// provisioned by different platforms against the same tenant stay apart.
const DefaultServicePrefix = "BILLING"

// RemoteAPI is the slice of the remote client the reconciler needs.
// Declared here so tests can drive the reconciler against a fake remote.
type RemoteAPI interface {
	ListLicenses(ctx context.Context, customerID, productID string) ([]LicenseRecord, error)
	FindByServiceAndUsername(ctx context.Context, serviceID, username string) (*LicenseRecord, error)
	FindByKey(ctx context.Context, licenseKey string) (*LicenseRecord, error)
	GetLicense(ctx context.Context, id string) (*LicenseRecord, error)
	CreateLicense(ctx context.Context, payload CreateLicenseRequest) (*LicenseRecord, error)
	RecreateLicense(ctx context.Context, payload UpdateLicenseRequest) (*LicenseRecord, error)
	UpdateLicense(ctx context.Context, id string, payload UpdateLicenseRequest) (*LicenseRecord, error)
	DeleteLicense(ctx context.Context, id string) error
}

// AccountParams identifies one subscription for a lifecycle operation and
// carries the option sources resolved per call.
type AccountParams struct {
	// SubscriptionID is the billing platform's identifier for the
	// subscription, without the service prefix.
	SubscriptionID string
	// Username is the subscriber display name stored in license metadata
	// and mixed into the derived key.
	Username string
	// Options are the per-invocation option sources.
	Options OptionSet
}

// KeyInput returns the string the license key is derived from.
func (p AccountParams) KeyInput() string {
	return p.SubscriptionID + "-" + p.Username
}

// Reconciler orchestrates the account lifecycle against the remote
// service: it locates the record for a subscription, reads its current
// state, computes the desired state, and issues a partial update, create
// or delete. It holds no state between operations.
type Reconciler struct {
	client  RemoteAPI
	logger  *slog.Logger
	metrics *Metrics
	prefix  string
}

// NewReconciler wires a reconciler to a remote client. Metrics may be
// nil. An empty prefix falls back to DefaultServicePrefix.
func NewReconciler(client RemoteAPI, logger *slog.Logger, metrics *Metrics, prefix string) *Reconciler {
	if prefix == "" {
		prefix = DefaultServicePrefix
	}
	return &Reconciler{
		client:  client,
		logger:  logger.With(slog.String("component", "reconciler")),
		metrics: metrics,
		prefix:  prefix,
	}
}

// ServiceID returns the namespaced serviceid metadata value for the
// subscription.
func (r *Reconciler) ServiceID(p AccountParams) string {
	return r.prefix + "-" + p.SubscriptionID
}

// CreateIfAbsent provisions a license for the subscription, or returns
// the key of the one that already exists. It never creates a duplicate:
// the metadata lookup runs first and an existing match short-circuits the
// create entirely.
func (r *Reconciler) CreateIfAbsent(ctx context.Context, p AccountParams) (key string, err error) {
	defer r.finish(ctx, "create_if_absent", time.Now(), &err)

	serviceID := r.ServiceID(p)
	existing, err := r.client.FindByServiceAndUsername(ctx, serviceID, p.Username)
	if err == nil {
		r.logger.InfoContext(ctx, "license already exists",
			slog.String("service_id", serviceID),
			slog.String("license_key", existing.LicenseKey))
		return existing.LicenseKey, nil
	}
	if !IsNotFound(err) {
		return "", fmt.Errorf("failed to check account: %w", err)
	}

	opts := p.Options
	var expirationDate *string
	if v := opts.Resolve(OptExpirationDate); v != "" {
		expirationDate = &v
	}
	var expirationDays *int
	if v := opts.Resolve(OptExpirationDays); v != "" {
		days := opts.ResolveInt(OptExpirationDays, 0)
		expirationDays = &days
	}

	record, err := r.client.CreateLicense(ctx, CreateLicenseRequest{
		CustomerIDs:     []string{opts.Resolve(OptCustomerID)},
		ProductIDs:      []string{opts.Resolve(OptProductID)},
		ExpirationDate:  expirationDate,
		ExpirationDays:  expirationDays,
		ExpirationStart: opts.Resolve(OptExpirationStart),
		ExpirationType:  opts.Resolve(OptExpirationType),
		IPLimit:         opts.ResolveInt(OptIPLimit, 0),
		Metadata: []MetadataEntry{
			{Key: MetaServiceID, Value: serviceID, Locked: true},
			{Key: MetaUsername, Value: p.Username, Locked: false},
		},
		Seats:             opts.ResolveInt(OptSeats, 1),
		Suspended:         false,
		SendEmailDelivery: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create license: %w", err)
	}
	return record.LicenseKey, nil
}

// Suspend deactivates the subscription's license while preserving every
// other attribute of the remote record.
func (r *Reconciler) Suspend(ctx context.Context, p AccountParams) (err error) {
	defer r.finish(ctx, "suspend", time.Now(), &err)
	return r.setActive(ctx, p, false)
}

// Unsuspend reactivates the subscription's license. The update payload is
// identical to Suspend's apart from the active flag.
func (r *Reconciler) Unsuspend(ctx context.Context, p AccountParams) (err error) {
	defer r.finish(ctx, "unsuspend", time.Now(), &err)
	return r.setActive(ctx, p, true)
}

// setActive is the shared read-modify-write cycle behind Suspend and
// Unsuspend: fetch by derived key, copy every preserved field, flip the
// flag, push the far-future expiry sentinel.
func (r *Reconciler) setActive(ctx context.Context, p AccountParams, active bool) error {
	record, err := r.client.FindByKey(ctx, DeriveKey(p.KeyInput()))
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}

	payload := UpdateLicenseRequest{
		LicenseKey:        record.LicenseKey,
		Active:            active,
		Name:              record.Name,
		Notes:             record.Notes,
		IPLimit:           record.IPLimit,
		LicenseScope:      record.LicenseScope,
		ExpirationDate:    FarFutureExpiration,
		ValidationPoints:  record.ValidationPoints,
		ValidationLimit:   record.ValidationLimit,
		ReplenishAmount:   record.ValidationPoints,
		ReplenishInterval: record.ReplenishInterval,
	}
	if _, err := r.client.UpdateLicense(ctx, record.ID, payload); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// Terminate destroys the subscription's license. The record is located
// first; terminating an absent license is an error, not a no-op.
func (r *Reconciler) Terminate(ctx context.Context, p AccountParams) (err error) {
	defer r.finish(ctx, "terminate", time.Now(), &err)

	record, err := r.client.FindByKey(ctx, DeriveKey(p.KeyInput()))
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if err := r.client.DeleteLicense(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to terminate account: %w", err)
	}
	return nil
}

// ChangePackage reapplies the subscription's package limits to its
// license: validation token quotas default from the configured limit
// (vtokens = limit*3, vlimit = vtokens*3) unless explicitly overridden,
// and the license is always left active.
func (r *Reconciler) ChangePackage(ctx context.Context, p AccountParams) (err error) {
	defer r.finish(ctx, "change_package", time.Now(), &err)

	record, err := r.client.FindByKey(ctx, DeriveKey(p.KeyInput()))
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	payload := r.packagePayload(p, record.LicenseKey)
	if _, err := r.client.UpdateLicense(ctx, record.ID, payload); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// Renew extends the subscription's license. The located record is probed
// with a read first: if it still exists the renewal is a package update,
// and if it does not the license is recreated under the same derived key.
// Absence at any point of the probe means "never existed, create fresh".
func (r *Reconciler) Renew(ctx context.Context, p AccountParams) (err error) {
	defer r.finish(ctx, "renew", time.Now(), &err)

	key := DeriveKey(p.KeyInput())
	record, err := r.client.FindByKey(ctx, key)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to check account: %w", err)
	}

	if record != nil {
		if _, probeErr := r.client.GetLicense(ctx, record.ID); probeErr == nil {
			payload := r.packagePayload(p, record.LicenseKey)
			if _, err := r.client.UpdateLicense(ctx, record.ID, payload); err != nil {
				return fmt.Errorf("failed to renew account: %w", err)
			}
			return nil
		}
		r.logger.WarnContext(ctx, "license probe failed, recreating",
			slog.String("license_id", record.ID),
			slog.String("license_key", key))
	}

	payload := r.packagePayload(p, key)
	payload.Name = p.Username
	if _, err := r.client.RecreateLicense(ctx, payload); err != nil {
		return fmt.Errorf("failed to recreate account: %w", err)
	}
	return nil
}

// ChangePassword exists for host platform API completeness: licenses
// carry no password, so the only contract is rejecting an empty one.
func (r *Reconciler) ChangePassword(ctx context.Context, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// ClientLicenseKey returns the subscription's license key for display to
// the subscriber, located via metadata.
func (r *Reconciler) ClientLicenseKey(ctx context.Context, p AccountParams) (string, error) {
	record, err := r.client.FindByServiceAndUsername(ctx, r.ServiceID(p), p.Username)
	if err != nil {
		return "", err
	}
	return record.LicenseKey, nil
}

// TestConnection delegates to the client when it supports probing, so
// callers only ever hold a Reconciler.
func (r *Reconciler) TestConnection(ctx context.Context) ConnectionStatus {
	type prober interface {
		TestConnection(ctx context.Context) ConnectionStatus
	}
	if p, ok := r.client.(prober); ok {
		return p.TestConnection(ctx)
	}
	if _, err := r.client.ListLicenses(ctx, "", ""); err != nil {
		return ConnectionStatus{Success: false, Error: err.Error()}
	}
	return ConnectionStatus{Success: true}
}

// packagePayload builds the update body shared by ChangePackage and both
// Renew branches. Each call computes its own values; nothing is carried
// over from earlier operations.
func (r *Reconciler) packagePayload(p AccountParams, licenseKey string) UpdateLicenseRequest {
	opts := p.Options
	limit := opts.ResolveInt(OptLimit, 0)
	vtokens := opts.ResolveInt(OptVTokens, limit*3)
	vlimit := opts.ResolveInt(OptVLimit, vtokens*3)

	return UpdateLicenseRequest{
		LicenseKey:        licenseKey,
		Active:            true,
		Notes:             opts.Resolve(OptNotes),
		IPLimit:           limit,
		LicenseScope:      opts.Resolve(OptScope),
		ExpirationDate:    FarFutureExpiration,
		ValidationPoints:  vtokens,
		ValidationLimit:   vlimit,
		ReplenishAmount:   vtokens,
		ReplenishInterval: opts.Resolve(OptReplenishInterval),
	}
}

func (r *Reconciler) finish(ctx context.Context, operation string, start time.Time, errp *error) {
	err := *errp
	duration := time.Since(start)
	r.metrics.RecordOperation(ctx, operation, err == nil, duration)
	if err != nil {
		r.logger.ErrorContext(ctx, "operation failed",
			slog.String("operation", operation),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return
	}
	r.logger.InfoContext(ctx, "operation completed",
		slog.String("operation", operation),
		slog.Duration("duration", duration))
}
