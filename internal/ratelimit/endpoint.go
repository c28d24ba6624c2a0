package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the operation metadata key carrying per-endpoint rate limit
// configuration.
const MetadataKey = "rateLimit"

// EndpointConfig attaches rate limiting to a huma operation via its Metadata
// field.
type EndpointConfig struct {
	// Action labels the rate limit domain for the endpoint. Empty means
	// the middleware falls back to the operation's route template, so
	// endpoints sharing an action must set it explicitly.
	Action string

	// Config overrides the middleware's default limits when MaxHits is set.
	Config Config

	// Disabled skips rate limiting entirely for this endpoint.
	Disabled bool
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if
// present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
