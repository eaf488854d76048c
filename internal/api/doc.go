// Package api hosts the operator HTTP listener. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/ledger and /api/ledger/{category} for the failed-site ledger.
//   - GET /api/status for per-routing counts of the current status file.
package api
