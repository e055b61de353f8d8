package licensing

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{4}-[0-9A-F]{7}-[0-9A-F]{7}$`)

func TestDeriveKey_KnownVectors(t *testing.T) {
	// Oracles computed by hand from the digest/obfuscation steps. These
	// must never change: every issued license key depends on them.
	tests := []struct {
		input    string
		expected string
	}{
		{"42-Alice", "FD9AC-48B85-8B23-D6C3DC0-8EACA23"},
		{"1001-Jane Doe", "AF351-C1564-51A7-882C7ED-8E317A7"},
		{"7-Bob Smith", "12494-0AED1-C3C1-DAF3E2C-3A368C1"},
		{"abc", "90015-0983C-D2F3-6927F71-E82D7F3"},
		{"", "D41D8-CD98F-0090-08E7248-FCE8990"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveKey(tt.input))
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	inputs := []string{"42-Alice", "svc-1", "鍵-unicode", "a very long subscription identifier with spaces"}
	for _, input := range inputs {
		first := DeriveKey(input)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, DeriveKey(input), "input %q must derive stably", input)
		}
	}
}

func TestDeriveKey_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		key := DeriveKey(fmt.Sprintf("%d-subscriber-%d", i, i*31))
		assert.Regexp(t, keyPattern, key)
		assert.Len(t, key, 32)
	}
}

func TestDeriveKey_DistinctInputsDistinctKeys(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 100; i++ {
		input := fmt.Sprintf("%d-User", i)
		key := DeriveKey(input)
		prev, dup := seen[key]
		require.False(t, dup, "key collision between %q and %q", input, prev)
		seen[key] = input
	}
}
