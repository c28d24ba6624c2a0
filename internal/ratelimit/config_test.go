package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/rateguard/internal/ratelimit"
)

func TestConfig_Validate(t *testing.T) {
	valid := ratelimit.Config{
		Window:        time.Minute,
		MaxHits:       10,
		BlockDuration: 5 * time.Minute,
	}

	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *ratelimit.Config)
		field  string
	}{
		{
			name:   "zero window",
			mutate: func(c *ratelimit.Config) { c.Window = 0 },
			field:  "window",
		},
		{
			name:   "negative window",
			mutate: func(c *ratelimit.Config) { c.Window = -time.Second },
			field:  "window",
		},
		{
			name:   "zero max hits",
			mutate: func(c *ratelimit.Config) { c.MaxHits = 0 },
			field:  "maxHits",
		},
		{
			name:   "zero block duration",
			mutate: func(c *ratelimit.Config) { c.BlockDuration = 0 },
			field:  "blockDuration",
		},
		{
			name: "escalation factor below one",
			mutate: func(c *ratelimit.Config) {
				c.Escalation = ratelimit.Escalation{Enabled: true, Factor: 0.5}
			},
			field: "escalation.factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()

			var vErr *ratelimit.ValidationError

			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	t.Run("disabled escalation is not validated", func(t *testing.T) {
		cfg := valid
		cfg.Escalation = ratelimit.Escalation{Enabled: false, Factor: 0}

		assert.NoError(t, cfg.Validate())
	})
}

func TestErrors(t *testing.T) {
	t.Run("validation error names the field", func(t *testing.T) {
		err := &ratelimit.ValidationError{Field: "key", Reason: "must not be empty"}

		assert.Equal(t, "invalid key: must not be empty", err.Error())
	})

	t.Run("store error unwraps its cause", func(t *testing.T) {
		cause := assert.AnError
		err := &ratelimit.StoreError{Op: "check", Err: cause}

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "check")
	})
}
