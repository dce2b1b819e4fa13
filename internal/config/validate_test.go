package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.ApplicationID = "app-1"
	return cfg
}

// findError returns the first error whose field path ends with field.
func findError(errs []ValidationError, field string) (ValidationError, bool) {
	for _, e := range errs {
		if e.Field == field || strings.HasSuffix(e.Field, "."+field) {
			return e, true
		}
	}
	return ValidationError{}, false
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, Validate(validConfig()))
	assert.NoError(t, Check(validConfig()))
}

func TestValidate_SchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty application id",
			mutate: func(c *Config) { c.ApplicationID = "" },
			field:  "application_id",
		},
		{
			name:   "sample rate above 100",
			mutate: func(c *Config) { c.SampleRate = 150 },
			field:  "sample_rate",
		},
		{
			name:   "negative sample rate",
			mutate: func(c *Config) { c.SampleRate = -1 },
			field:  "sample_rate",
		},
		{
			name:   "unknown encoding",
			mutate: func(c *Config) { c.Store.Encoding = "protobuf" },
			field:  "encoding",
		},
		{
			name:   "empty store path",
			mutate: func(c *Config) { c.Store.Path = "" },
			field:  "path",
		},
		{
			name:   "unknown connectivity",
			mutate: func(c *Config) { c.Network.Connectivity = "bluetooth" },
			field:  "connectivity",
		},
		{
			name:   "empty first party host",
			mutate: func(c *Config) { c.FirstPartyHosts = []string{"api.example.com", ""} },
			field:  "1",
		},
		{
			name:   "negative duration",
			mutate: func(c *Config) { c.VitalsInterval = Duration(-time.Second) },
			field:  "vitals_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := Validate(cfg)
			require.NotEmpty(t, errs)

			e, ok := findError(errs, tt.field)
			require.True(t, ok, "no error for %s in %v", tt.field, errs)
			assert.Equal(t, ErrSchema, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.ApplicationID = ""
	cfg.SampleRate = 101

	errs := Validate(cfg)

	_, hasApp := findError(errs, "application_id")
	_, hasRate := findError(errs, "sample_rate")
	assert.True(t, hasApp)
	assert.True(t, hasRate)
}

func TestValidate_ActionTimeoutOrder(t *testing.T) {
	cfg := validConfig()
	cfg.ActionInactivity = Duration(10 * time.Second)
	cfg.ActionMaxDuration = Duration(time.Second)

	errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrActionTimeout, errs[0].Code)
	assert.Equal(t, "action_inactivity", errs[0].Field)
}

func TestCheck_JoinsErrors(t *testing.T) {
	cfg := validConfig()
	cfg.SampleRate = 200

	err := Check(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "[E200]")
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "[E202] action_inactivity: too long",
		ValidationError{Field: "action_inactivity", Message: "too long", Code: ErrActionTimeout}.Error())
	assert.Equal(t, "[E201] boom",
		ValidationError{Message: "boom", Code: ErrEncode}.Error())
}
