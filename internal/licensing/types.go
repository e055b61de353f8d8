package licensing

// Expiration policy enums understood by the remote service.
const (
	ExpirationNever    = "NEVER"
	ExpirationDate     = "DATE"
	ExpirationDuration = "DURATION"

	ExpirationStartCreation   = "CREATION"
	ExpirationStartActivation = "ACTIVATION"
)

// FarFutureExpiration is the sentinel the remote service treats as "no
// practical expiry". Lifecycle updates force it so that suspension state,
// not date arithmetic, controls whether a license works.
const FarFutureExpiration = "9999-12-31T23:59:59"

// Metadata keys used to correlate a remote record with a subscription.
const (
	MetaServiceID = "serviceid"
	MetaUsername  = "username"
)

// MetadataEntry is one {key, value, locked} triple attached to a license
// record. Locked entries are owned by the connector and must never be
// altered by later updates.
type MetadataEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

// LicenseRecord mirrors the remote service's license entity. The connector
// reads it, copies it, and partially overwrites it; it never invents field
// values the remote did not report.
type LicenseRecord struct {
	ID                string          `json:"id"`
	LicenseKey        string          `json:"licenseKey"`
	Name              string          `json:"name"`
	Notes             string          `json:"notes"`
	CustomerIDs       []string        `json:"customerIds"`
	ProductIDs        []string        `json:"productIds"`
	Metadata          []MetadataEntry `json:"metadata"`
	Suspended         bool            `json:"suspended"`
	IPLimit           int             `json:"ipLimit"`
	Seats             int             `json:"seats"`
	ExpirationType    string          `json:"expirationType"`
	ExpirationStart   string          `json:"expirationStart"`
	ExpirationDate    string          `json:"expirationDate"`
	ExpirationDays    int             `json:"expirationDays"`
	LicenseScope      string          `json:"licenseScope"`
	ValidationPoints  int             `json:"validationPoints"`
	ValidationLimit   int             `json:"validationLimit"`
	ReplenishAmount   int             `json:"replenishAmount"`
	ReplenishInterval string          `json:"replenishInterval"`
}

// MetadataValue returns the value of the first metadata entry with the
// given key, or "" if none exists.
func (r *LicenseRecord) MetadataValue(key string) string {
	for _, m := range r.Metadata {
		if m.Key == key {
			return m.Value
		}
	}
	return ""
}

// CreateLicenseRequest is the POST payload for a brand new license created
// from resolved provisioning options.
type CreateLicenseRequest struct {
	CustomerIDs       []string        `json:"customerIds"`
	ProductIDs        []string        `json:"productIds"`
	ExpirationDate    *string         `json:"expirationDate"`
	ExpirationDays    *int            `json:"expirationDays"`
	ExpirationStart   string          `json:"expirationStart"`
	ExpirationType    string          `json:"expirationType"`
	IPLimit           int             `json:"ipLimit"`
	Metadata          []MetadataEntry `json:"metadata"`
	Seats             int             `json:"seats"`
	Suspended         bool            `json:"suspended"`
	SendEmailDelivery bool            `json:"sendEmailDelivery"`
}

// UpdateLicenseRequest is the PATCH payload for lifecycle updates, and
// doubles as the POST payload when Renew has to recreate a license from
// its derived key. Every preserved field must be populated from a freshly
// fetched record; zero values here clobber remote state.
type UpdateLicenseRequest struct {
	LicenseKey        string `json:"licenseKey"`
	Active            bool   `json:"active"`
	Name              string `json:"name,omitempty"`
	Notes             string `json:"notes"`
	IPLimit           int    `json:"ipLimit"`
	LicenseScope      string `json:"licenseScope"`
	ExpirationDate    string `json:"expirationDate"`
	ValidationPoints  int    `json:"validationPoints"`
	ValidationLimit   int    `json:"validationLimit"`
	ReplenishAmount   int    `json:"replenishAmount"`
	ReplenishInterval string `json:"replenishInterval"`
}

// ConnectionStatus is the result of a connectivity probe against the
// remote service, shaped for direct display by the billing platform.
type ConnectionStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
