package handlers

import "fmt"

// ConfigurationError reports a required secret or setting missing at call
// time. Surfaced as a 500; distinct from an auth failure so a broken
// deployment is never mistaken for a bad caller.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required configuration %s is not set", e.Name)
}

// AuthorizationError reports a credential mismatch. Surfaced as a 401.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}
