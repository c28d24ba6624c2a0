package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casevault/rateguard/internal/handlers"
)

func TestErrorMessages(t *testing.T) {
	cfgErr := &handlers.ConfigurationError{Name: "CRON_AUTH_KEY"}
	assert.Equal(t, "required configuration CRON_AUTH_KEY is not set", cfgErr.Error())

	authErr := &handlers.AuthorizationError{Reason: "bearer token mismatch"}
	assert.Equal(t, "authorization failed: bearer token mismatch", authErr.Error())
}
