package licensing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionSet_Resolve_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		set      OptionSet
		id       string
		expected string
	}{
		{
			name: "friendly named config option wins over everything",
			set: OptionSet{
				ConfigOptions: map[string]string{"Customer ID": "cust-named", "customerid": "cust-id"},
				CustomFields:  map[string]string{"Customer ID": "cust-field"},
				Positional:    map[int]string{1: "cust-pos"},
			},
			id:       OptCustomerID,
			expected: "cust-named",
		},
		{
			name: "id-keyed config option beats custom fields",
			set: OptionSet{
				ConfigOptions: map[string]string{"customerid": "cust-id"},
				CustomFields:  map[string]string{"Customer ID": "cust-field"},
			},
			id:       OptCustomerID,
			expected: "cust-id",
		},
		{
			name: "custom field beats positional",
			set: OptionSet{
				CustomFields: map[string]string{"customerid": "cust-field"},
				Positional:   map[int]string{1: "cust-pos"},
			},
			id:       OptCustomerID,
			expected: "cust-field",
		},
		{
			name:     "positional by catalog position",
			set:      OptionSet{Positional: map[int]string{2: "prod-pos"}},
			id:       OptProductID,
			expected: "prod-pos",
		},
		{
			name:     "catalog default when nothing set",
			set:      OptionSet{},
			id:       OptIPLimit,
			expected: "1",
		},
		{
			name:     "unknown id resolves empty",
			set:      OptionSet{},
			id:       "nosuchoption",
			expected: "",
		},
		{
			name:     "empty string values are skipped",
			set:      OptionSet{ConfigOptions: map[string]string{"License Seats": ""}, Positional: map[int]string{4: "5"}},
			id:       OptSeats,
			expected: "5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.set.Resolve(tt.id))
		})
	}
}

func TestOptionSet_ResolveOr(t *testing.T) {
	set := OptionSet{ConfigOptions: map[string]string{"vtokens": "42"}}
	assert.Equal(t, "42", set.ResolveOr(OptVTokens, "9"))
	assert.Equal(t, "9", set.ResolveOr(OptVLimit, "9"))
}

func TestOptionSet_ResolveInt(t *testing.T) {
	set := OptionSet{ConfigOptions: map[string]string{
		"iplimit": "25",
		"seats":   "not-a-number",
	}}
	assert.Equal(t, 25, set.ResolveInt(OptIPLimit, 3))
	assert.Equal(t, 3, set.ResolveInt(OptSeats, 3), "unparsable falls back")
	assert.Equal(t, 7, set.ResolveInt(OptVTokens, 7), "absent with empty default falls back")
}

func TestOptionTable_CopyIsIsolated(t *testing.T) {
	table := OptionTable()
	table[0].Default = "mutated"
	assert.Equal(t, "", OptionTable()[0].Default)
}
