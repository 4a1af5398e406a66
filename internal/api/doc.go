// Package api hosts the HTTP server, middleware, and REST handlers for the
// news services. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/collect/{start,now,batch} and GET /v1/collect/status on the
//     collector role.
//   - GET /v1/news and /v1/news/stats on the read role.
package api
