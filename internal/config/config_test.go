package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRemote() RemoteConfig {
	return RemoteConfig{
		Hostname: "panel.example.com",
		Secure:   true,
		TeamID:   "team-1",
		APIKey:   "secret",
	}
}

func TestRemoteConfig_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		secure   bool
		expected string
	}{
		{
			name:     "plain hostname with secure",
			hostname: "panel.example.com",
			secure:   true,
			expected: "https://panel.example.com",
		},
		{
			name:     "plain hostname without secure",
			hostname: "panel.example.com",
			secure:   false,
			expected: "http://panel.example.com",
		},
		{
			name:     "mangled DOT and DASH are restored",
			hostname: "licenseDASHpanelDOTexampleDOTcom",
			secure:   true,
			expected: "https://license-panel.example.com",
		},
		{
			name:     "ip literal is always http",
			hostname: "192.168.10.20",
			secure:   true,
			expected: "http://192.168.10.20",
		},
		{
			name:     "explicit scheme kept",
			hostname: "https://panel.example.com",
			secure:   false,
			expected: "https://panel.example.com",
		},
		{
			name:     "trailing slash trimmed",
			hostname: "https://panel.example.com/",
			secure:   true,
			expected: "https://panel.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RemoteConfig{Hostname: tt.hostname, Secure: tt.secure}
			url, err := r.BaseURL()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, url)
		})
	}
}

func TestRemoteConfig_BaseURL_Empty(t *testing.T) {
	_, err := RemoteConfig{}.BaseURL()
	assert.ErrorIs(t, err, ErrHostnameMissing)
}

func TestRemoteConfig_NormalizedTeamID(t *testing.T) {
	r := RemoteConfig{TeamID: "teamDASH42"}
	teamID, err := r.NormalizedTeamID()
	require.NoError(t, err)
	assert.Equal(t, "team-42", teamID)

	_, err = RemoteConfig{}.NormalizedTeamID()
	assert.ErrorIs(t, err, ErrTeamIDMissing)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr error
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing hostname",
			mutate:    func(c *Config) { c.Remote.Hostname = "  " },
			expectErr: ErrHostnameMissing,
		},
		{
			name:      "missing team id",
			mutate:    func(c *Config) { c.Remote.TeamID = "" },
			expectErr: ErrTeamIDMissing,
		},
		{
			name:      "missing api key",
			mutate:    func(c *Config) { c.Remote.APIKey = "" },
			expectErr: ErrAPIKeyMissing,
		},
		{
			name: "api key file is enough",
			mutate: func(c *Config) {
				c.Remote.APIKey = ""
				c.Remote.APIKeyFile = "creds.sealed"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Remote: validRemote()}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_MergePrefersEnvironment(t *testing.T) {
	env := Config{Remote: RemoteConfig{Hostname: "from-env.example.com"}}
	file := Config{Remote: RemoteConfig{
		Hostname: "from-file.example.com",
		TeamID:   "file-team",
		APIKey:   "file-key",
	}}

	env.merge(&file)
	assert.Equal(t, "from-env.example.com", env.Remote.Hostname)
	assert.Equal(t, "file-team", env.Remote.TeamID)
	assert.Equal(t, "file-key", env.Remote.APIKey)
}
