// Package api assembles the lineage HTTP server.
//
// NewServer mounts the provenance routes behind the shared middleware stack:
// request ids and access logs, panic recovery, CORS, per-route metrics, a
// request deadline, bearer token authentication and rate limiting.
//
//	GET /arvados/v1/collections/{id}/provenance
//	GET /arvados/v1/collections/{id}/used_by
//	GET /api/v1/lineage/{id}/ancestors
//	GET /api/v1/lineage/{id}/descendants
//
// NewHealthRouter serves /health, /health/live, /health/ready and /metrics on
// the separate health port.
package api
