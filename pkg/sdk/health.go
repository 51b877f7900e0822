package exifdex

import (
	"context"

	healthuc "github.com/kailas-cloud/exifdex/internal/usecase/health"
	"github.com/kailas-cloud/exifdex/internal/version"
)

// HealthStatus is the outcome of Health.
type HealthStatus struct {
	Status  string            // "ok", "degraded" or "error"
	Checks  map[string]string // component name to "ok" or "error"
	Stats   *Stats            // nil when storage did not answer
	Version string
}

// OK reports whether every component answered.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Health probes storage and reports collection stats.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	h := HealthStatus{
		Status:  string(report.Status),
		Checks:  make(map[string]string, len(report.Checks)),
		Stats:   report.Stats,
		Version: version.Version,
	}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}
	return h
}
