package licensing

import (
	"crypto/md5" //nolint:gosec // formatting source only, key compatibility requires MD5
	"encoding/hex"
	"strings"
)

// Group boundaries of the formatted key: 5-5-4-7-7.
var keyGroups = [][2]int{{0, 5}, {5, 10}, {10, 14}, {14, 21}, {21, 28}}

// DeriveKey computes the deterministic license key for the given input
// string, typically "<subscriptionID>-<username>". The same input always
// yields the same key, which lets lifecycle operations locate a license
// without a metadata scan.
//
// The digest is shuffled rather than used directly so the key does not
// visually resemble an MD5 sum: the first 12 hex chars are kept, four are
// taken from the middle of the reversed digest, and the last 12 are
// reversed in place. The result is grouped 5-5-4-7-7 and uppercased:
//
//	XXXXX-XXXXX-XXXX-XXXXXXX-XXXXXXX
//
// Changing any part of this algorithm orphans every previously issued
// license, so it is frozen as-is.
func DeriveKey(input string) string {
	sum := md5.Sum([]byte(input)) //nolint:gosec // not used for security
	digest := hex.EncodeToString(sum[:])
	reversed := reverseString(digest)

	obfuscated := digest[0:12] + reversed[10:14] + reverseString(digest[20:32])

	parts := make([]string, 0, len(keyGroups))
	for _, g := range keyGroups {
		parts = append(parts, obfuscated[g[0]:g[1]])
	}
	return strings.ToUpper(strings.Join(parts, "-"))
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
