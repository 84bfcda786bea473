// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the Taskdeck server.
//
// Logging is built on stdlib slog with a JSON handler. Request-scoped
// loggers carry the request ID stamped by the HTTP metrics middleware:
//
//	logger := observability.FromContext(ctx)
//	logger.WithField("team_id", teamID).Info("member added")
//
// Metrics cover HTTP traffic, authorization decisions by action and
// outcome, guard denials by reason, storage errors, and a handful of
// business gauges. The /metrics, /health, /health/live and /health/ready
// endpoints are served on a separate listener so probes stay reachable
// while the API drains.
package observability
