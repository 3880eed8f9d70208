package stage

import "context"

// HealthChecker is implemented by stage runners and backends that can report
// readiness before a run (credentials present, endpoint reachable).
type HealthChecker interface {
	HealthCheck(context.Context) Health
}

// Check returns v's own health when it implements HealthChecker and a ready
// record otherwise.
func Check(ctx context.Context, name string, v any) Health {
	if v == nil {
		return Unhealthy(name, "not configured")
	}
	checker, ok := v.(HealthChecker)
	if !ok {
		return Healthy(name)
	}
	health := checker.HealthCheck(ctx)
	if health.Name == "" {
		health.Name = name
	}
	return health
}
