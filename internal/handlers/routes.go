package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/casevault/rateguard/internal/ratelimit"
)

// RegisterRoutes registers the portal API and the internal maintenance
// surface. Internal endpoints carry Disabled metadata so the rate limit
// middleware never throttles cron or operator traffic.
func RegisterRoutes(
	api huma.API,
	submissions *SubmissionHandler,
	maintenance *MaintenanceHandler,
	cronStats *CronStatsHandler,
	health *HealthHandler,
) {
	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/submissions",
		Summary:     "Submit evidence",
		Description: "Accepts one evidence submission for a case.",
		Tags:        []string{"Submissions"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Action: "submit-evidence",
				Config: ratelimit.Config{
					Window:        time.Minute,
					MaxHits:       10,
					BlockDuration: 15 * time.Minute,
					WarnWithin:    2,
					Escalation: ratelimit.Escalation{
						Enabled:  true,
						Factor:   2,
						Window:   time.Hour,
						MaxBlock: 24 * time.Hour,
					},
				},
			},
		},
	}, submissions.Submit)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/internal/ratelimit/cleanup",
		Summary:     "Delete expired hit records",
		Description: "Deletes hit records older than the retention horizon. Invoked by the external scheduler.",
		Tags:        []string{"Internal"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, maintenance.Cleanup)

	huma.Register(api, huma.Operation{
		Method:      http.MethodDelete,
		Path:        "/internal/ratelimit/{key}/{action}",
		Summary:     "Reset a rate limit pair",
		Description: "Clears the hits and block for one (key, action) pair. Violations are kept.",
		Tags:        []string{"Internal"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, maintenance.ResetPair)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/internal/cron/stats",
		Summary:     "Refresh the statistics cache",
		Description: "Refreshes cached rate limit aggregates. Requires the cron bearer token.",
		Tags:        []string{"Internal"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, cronStats.Refresh)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/health",
		Summary: "Health check",
		Tags:    []string{"Internal"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, health.Check)
}
