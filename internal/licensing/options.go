package licensing

import "strconv"

// Option identifiers recognized by the connector. They match the option
// names the billing platform stores per product.
const (
	OptCustomerID        = "customerid"
	OptProductID         = "productid"
	OptIPLimit           = "iplimit"
	OptSeats             = "seats"
	OptExpirationType    = "expirationtype"
	OptExpirationStart   = "expirationstart"
	OptExpirationDate    = "expirationdate"
	OptExpirationDays    = "expirationdays"
	OptNotes             = "notes"
	OptLimit             = "limit"
	OptScope             = "scope"
	OptVTokens           = "vtokens"
	OptVLimit            = "vlimit"
	OptReplenishInterval = "rinterval"
)

// OptionDef describes one provisioning option: its identifier, the
// friendly name the billing platform may store it under, and the default
// applied when no override is present anywhere.
type OptionDef struct {
	ID           string
	FriendlyName string
	Default      string
}

// optionTable is the immutable option catalog. Order matters: the
// 1-based position of each entry is the numbered override slot the
// billing platform uses for positional option storage.
var optionTable = []OptionDef{
	{OptCustomerID, "Customer ID", ""},
	{OptProductID, "Product ID", ""},
	{OptIPLimit, "IP Limit", "1"},
	{OptSeats, "License Seats", "1"},
	{OptExpirationType, "Expiration Type", ""},
	{OptExpirationStart, "Expiration Start", ""},
	{OptExpirationDate, "Expiration Date", "9999-12-31"},
	{OptExpirationDays, "Expiration Days", "30"},
	{OptNotes, "Notes", "Provisioned by license bridge"},
	{OptLimit, "Validation Point Limit", ""},
	{OptScope, "License Scope", ""},
	{OptVTokens, "Validation Points", ""},
	{OptVLimit, "Validation Limit", ""},
	{OptReplenishInterval, "Replenish Interval", "HOUR"},
}

// OptionTable returns a copy of the option catalog.
func OptionTable() []OptionDef {
	out := make([]OptionDef, len(optionTable))
	copy(out, optionTable)
	return out
}

// OptionSet carries the raw per-invocation option sources supplied by the
// billing platform. Resolution walks the sources most-specific-first; the
// set itself is never mutated.
type OptionSet struct {
	// ConfigOptions holds per-product options, keyed by either the option
	// identifier or its friendly name.
	ConfigOptions map[string]string
	// CustomFields holds per-subscription overrides, same keying.
	CustomFields map[string]string
	// Positional holds numbered overrides ("option 3"), keyed by the
	// 1-based position of the option in the catalog.
	Positional map[int]string
}

// Resolve returns the effective value for the option with the given id:
// named config option (friendly name, then id) → custom field (friendly
// name, then id) → numbered positional override → catalog default.
// Unknown ids resolve through the id-keyed sources only and default to "".
func (s OptionSet) Resolve(id string) string {
	def, pos := lookupOption(id)

	for _, key := range []string{def.FriendlyName, id} {
		if key == "" {
			continue
		}
		if v, ok := s.ConfigOptions[key]; ok && v != "" {
			return v
		}
	}
	for _, key := range []string{def.FriendlyName, id} {
		if key == "" {
			continue
		}
		if v, ok := s.CustomFields[key]; ok && v != "" {
			return v
		}
	}
	if pos > 0 {
		if v, ok := s.Positional[pos]; ok && v != "" {
			return v
		}
	}
	return def.Default
}

// ResolveOr behaves like Resolve but substitutes fallback when the chain
// produces no value. Used for options whose defaults are computed at the
// call site (validation token quotas).
func (s OptionSet) ResolveOr(id, fallback string) string {
	if v := s.Resolve(id); v != "" {
		return v
	}
	return fallback
}

// ResolveInt resolves an option as an integer, substituting fallback when
// the option is absent or not numeric.
func (s OptionSet) ResolveInt(id string, fallback int) int {
	v := s.Resolve(id)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func lookupOption(id string) (OptionDef, int) {
	for i, def := range optionTable {
		if def.ID == id {
			return def, i + 1
		}
	}
	return OptionDef{ID: id}, 0
}
