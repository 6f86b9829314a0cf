package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AuditConfig {
	cfg := DefaultAuditConfig()
	cfg.StartURL = "https://example.com/"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60, cfg.MaxPages)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.Delay)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 200, cfg.Thresholds.ThinTextLength)
	assert.Equal(t, 20000, cfg.Thresholds.CSRMinHTMLBytes)
}

func TestValidate_StartURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"https", "https://example.com/", true},
		{"http", "http://example.com", true},
		{"with path", "https://example.com/docs/start", true},
		{"empty", "", false},
		{"no scheme", "example.com", false},
		{"ftp", "ftp://example.com/", false},
		{"scheme only", "https://", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.StartURL = tc.url
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validConfig()
	cfg.MaxPages = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.MaxDepth = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.MaxDepth = 0
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Delay = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Delay = 0
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.SaveHTML = true
	cfg.SaveHTMLLimit = -1
	assert.Error(t, cfg.Validate())
}
