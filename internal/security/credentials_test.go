package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpenRoundTrip(t *testing.T) {
	sealed, err := SealAPIKey("remote-api-key-123", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, uint8(1), sealed.Version)
	require.Len(t, sealed.Nonce, 12)
	require.NotEmpty(t, sealed.Ciphertext)

	got, err := OpenAPIKey(sealed, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "remote-api-key-123", got)
}

func TestOpenAPIKey_WrongPassphrase(t *testing.T) {
	sealed, err := SealAPIKey("remote-api-key-123", "right")
	require.NoError(t, err)

	_, err = OpenAPIKey(sealed, "wrong")
	assert.ErrorIs(t, err, ErrSealedKeyInvalid)
}

func TestOpenAPIKey_TamperedCiphertext(t *testing.T) {
	sealed, err := SealAPIKey("remote-api-key-123", "pass")
	require.NoError(t, err)

	sealed.Ciphertext[0] ^= 0xFF
	_, err = OpenAPIKey(sealed, "pass")
	assert.ErrorIs(t, err, ErrSealedKeyInvalid)
}

func TestOpenAPIKey_MissingPassphrase(t *testing.T) {
	sealed, err := SealAPIKey("remote-api-key-123", "pass")
	require.NoError(t, err)

	_, err = OpenAPIKey(sealed, "")
	assert.ErrorIs(t, err, ErrPassphraseMissing)
}

func TestSealedKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_key.sealed")

	require.NoError(t, WriteSealedKey(path, "file-key-456", "pass"))

	got, err := ReadSealedKey(path, "pass")
	require.NoError(t, err)
	assert.Equal(t, "file-key-456", got)
}

func TestReadSealedKey_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_key.sealed")
	require.NoError(t, WriteSealedKey(path, "file-key-456", "pass"))

	// Overwrite with broken JSON.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := ReadSealedKey(path, "pass")
	assert.ErrorIs(t, err, ErrSealedKeyInvalid)
}

func TestResolveAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_key.sealed")
	require.NoError(t, WriteSealedKey(path, "sealed-key", "pass"))

	tests := []struct {
		name       string
		apiKey     string
		keyFile    string
		passphrase string
		want       string
		wantErr    bool
	}{
		{name: "plaintext key wins", apiKey: "env-key", keyFile: path, passphrase: "pass", want: "env-key"},
		{name: "sealed file fallback", keyFile: path, passphrase: "pass", want: "sealed-key"},
		{name: "nothing configured", want: ""},
		{name: "sealed file without passphrase", keyFile: path, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAPIKey(tt.apiKey, tt.keyFile, tt.passphrase)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
