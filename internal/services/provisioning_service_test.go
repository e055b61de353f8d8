package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/licensing"
)

// stubRemote implements licensing.RemoteAPI backed by an in-memory map
// keyed by license key.
type stubRemote struct {
	byKey   map[string]*licensing.LicenseRecord
	created []licensing.CreateLicenseRequest
	updated []licensing.UpdateLicenseRequest
	deleted []string
	listErr error
}

func newStubRemote() *stubRemote {
	return &stubRemote{byKey: map[string]*licensing.LicenseRecord{}}
}

func (s *stubRemote) ListLicenses(ctx context.Context, customerID, productID string) ([]licensing.LicenseRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]licensing.LicenseRecord, 0, len(s.byKey))
	for _, rec := range s.byKey {
		out = append(out, *rec)
	}
	return out, nil
}

func (s *stubRemote) FindByServiceAndUsername(ctx context.Context, serviceID, username string) (*licensing.LicenseRecord, error) {
	for _, rec := range s.byKey {
		if rec.MetadataValue(licensing.MetaServiceID) == serviceID &&
			rec.MetadataValue(licensing.MetaUsername) == username {
			return rec, nil
		}
	}
	return nil, licensing.ErrLicenseNotFound
}

func (s *stubRemote) FindByKey(ctx context.Context, licenseKey string) (*licensing.LicenseRecord, error) {
	if rec, ok := s.byKey[licenseKey]; ok {
		return rec, nil
	}
	return nil, licensing.ErrLicenseNotFound
}

func (s *stubRemote) GetLicense(ctx context.Context, id string) (*licensing.LicenseRecord, error) {
	for _, rec := range s.byKey {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, licensing.ErrLicenseNotFound
}

func (s *stubRemote) CreateLicense(ctx context.Context, payload licensing.CreateLicenseRequest) (*licensing.LicenseRecord, error) {
	s.created = append(s.created, payload)
	rec := &licensing.LicenseRecord{
		ID:         "lic-new",
		LicenseKey: "AF351-C1564-51A7-882C7ED-8E317A7",
		Metadata:   payload.Metadata,
	}
	s.byKey[rec.LicenseKey] = rec
	return rec, nil
}

func (s *stubRemote) RecreateLicense(ctx context.Context, payload licensing.UpdateLicenseRequest) (*licensing.LicenseRecord, error) {
	rec := &licensing.LicenseRecord{ID: "lic-recreated", LicenseKey: payload.LicenseKey}
	s.byKey[rec.LicenseKey] = rec
	return rec, nil
}

func (s *stubRemote) UpdateLicense(ctx context.Context, id string, payload licensing.UpdateLicenseRequest) (*licensing.LicenseRecord, error) {
	s.updated = append(s.updated, payload)
	for _, rec := range s.byKey {
		if rec.ID == id {
			rec.Suspended = !payload.Active
			return rec, nil
		}
	}
	return nil, licensing.ErrLicenseNotFound
}

func (s *stubRemote) DeleteLicense(ctx context.Context, id string) error {
	for key, rec := range s.byKey {
		if rec.ID == id {
			delete(s.byKey, key)
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return licensing.ErrLicenseNotFound
}

func newTestService(remote *stubRemote, defaults map[string]string) ProvisioningService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := licensing.NewReconciler(remote, logger, nil, "BILLING")
	return NewProvisioningService(rec, logger, defaults)
}

func janeRequest() AccountRequest {
	return AccountRequest{SubscriptionID: "1001", Username: "Jane Doe"}
}

// seedJane registers the record CreateAccount would have produced for
// the jane request, stored under the derived key.
func seedJane(remote *stubRemote) *licensing.LicenseRecord {
	key := licensing.DeriveKey("1001-Jane Doe")
	rec := &licensing.LicenseRecord{
		ID:         "lic-1001",
		LicenseKey: key,
		Metadata: []licensing.MetadataEntry{
			{Key: licensing.MetaServiceID, Value: "BILLING-1001", Locked: true},
			{Key: licensing.MetaUsername, Value: "Jane Doe"},
		},
		ValidationPoints: 300,
	}
	remote.byKey[key] = rec
	return rec
}

func TestCreateAccount(t *testing.T) {
	remote := newStubRemote()
	svc := newTestService(remote, nil)

	res, err := svc.CreateAccount(context.Background(), janeRequest())
	require.NoError(t, err)

	assert.Equal(t, "success", res.Result)
	assert.Equal(t, "create", res.Operation)
	assert.Equal(t, "BILLING-1001", res.ServiceID)
	assert.Equal(t, "AF351-C1564-51A7-882C7ED-8E317A7", res.LicenseKey)
	require.Len(t, remote.created, 1)
}

func TestCreateAccount_AppliesOperatorDefaults(t *testing.T) {
	remote := newStubRemote()
	svc := newTestService(remote, map[string]string{"seats": "5"})

	_, err := svc.CreateAccount(context.Background(), janeRequest())
	require.NoError(t, err)

	require.Len(t, remote.created, 1)
	assert.Equal(t, 5, remote.created[0].Seats)
}

func TestCreateAccount_RequestOverridesDefaults(t *testing.T) {
	remote := newStubRemote()
	svc := newTestService(remote, map[string]string{"seats": "5"})

	req := janeRequest()
	req.ConfigOptions = map[string]string{"seats": "9"}
	_, err := svc.CreateAccount(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, remote.created, 1)
	assert.Equal(t, 9, remote.created[0].Seats)
}

func TestSuspendAndUnsuspendAccount(t *testing.T) {
	remote := newStubRemote()
	seedJane(remote)
	svc := newTestService(remote, nil)

	res, err := svc.SuspendAccount(context.Background(), janeRequest())
	require.NoError(t, err)
	assert.Equal(t, "suspend", res.Operation)
	require.Len(t, remote.updated, 1)
	assert.False(t, remote.updated[0].Active)

	res, err = svc.UnsuspendAccount(context.Background(), janeRequest())
	require.NoError(t, err)
	assert.Equal(t, "unsuspend", res.Operation)
	require.Len(t, remote.updated, 2)
	assert.True(t, remote.updated[1].Active)
}

func TestSuspendAccount_NotFound(t *testing.T) {
	remote := newStubRemote()
	svc := newTestService(remote, nil)

	_, err := svc.SuspendAccount(context.Background(), janeRequest())
	assert.ErrorIs(t, err, licensing.ErrLicenseNotFound)
}

func TestTerminateAccount(t *testing.T) {
	remote := newStubRemote()
	seedJane(remote)
	svc := newTestService(remote, nil)

	res, err := svc.TerminateAccount(context.Background(), janeRequest())
	require.NoError(t, err)
	assert.Equal(t, "terminate", res.Operation)
	assert.Equal(t, []string{"lic-1001"}, remote.deleted)
}

func TestRenewAccount_ExistingRecord(t *testing.T) {
	remote := newStubRemote()
	seedJane(remote)
	svc := newTestService(remote, nil)

	res, err := svc.RenewAccount(context.Background(), janeRequest())
	require.NoError(t, err)
	assert.Equal(t, "renew", res.Operation)
	require.Len(t, remote.updated, 1)
	assert.True(t, remote.updated[0].Active)
}

func TestChangePackage(t *testing.T) {
	remote := newStubRemote()
	seedJane(remote)
	svc := newTestService(remote, nil)

	req := janeRequest()
	req.ConfigOptions = map[string]string{"limit": "100"}
	res, err := svc.ChangePackage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "change_package", res.Operation)
	require.Len(t, remote.updated, 1)
	assert.Equal(t, 300, remote.updated[0].ValidationPoints)
	assert.Equal(t, 900, remote.updated[0].ValidationLimit)
}

func TestChangePassword(t *testing.T) {
	remote := newStubRemote()
	svc := newTestService(remote, nil)

	res, err := svc.ChangePassword(context.Background(), janeRequest(), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "change_password", res.Operation)

	_, err = svc.ChangePassword(context.Background(), janeRequest(), "")
	assert.ErrorIs(t, err, licensing.ErrEmptyPassword)
}

func TestLicenseKey(t *testing.T) {
	remote := newStubRemote()
	seedJane(remote)
	svc := newTestService(remote, nil)

	res, err := svc.LicenseKey(context.Background(), janeRequest())
	require.NoError(t, err)
	assert.Equal(t, licensing.DeriveKey("1001-Jane Doe"), res.LicenseKey)
	assert.Equal(t, "BILLING-1001", res.ServiceID)

	_, err = svc.LicenseKey(context.Background(), AccountRequest{SubscriptionID: "9999", Username: "Nobody"})
	assert.ErrorIs(t, err, licensing.ErrLicenseNotFound)
}

func TestTestConnection(t *testing.T) {
	remote := newStubRemote()
	svc := newTestService(remote, nil)

	res := svc.TestConnection(context.Background())
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
}
