// Package main hosts the news collector entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and the /v1/collect routes. Query parameters are
//     validated and turned into collector.Request values before the collector runs them.
//   - Collection: internal/collector takes a single-flight flag, resolves the newest stored publication time,
//     searches the news API, and drops anything at or before that watermark. Only one run is active at a time;
//     concurrent requests get 409.
//   - Enrichment: surviving records fan out to a fixed worker pool (internal/enrich) that fetches the article page
//     through Colly, picks an image with goquery, downloads it, and re-hosts it on the configured blob sink.
//     Any failure leaves the record without an image.
//   - Persistence: records go to the configured record store (memory, Postgres, or MongoDB); a failed write is
//     counted and the run keeps going. A completion event is published to Pub/Sub when a topic is configured.
//   - Scheduler: when enabled, internal/scheduler runs the configured queries on a fixed interval and skips ticks
//     that find a run already active.
//
// Configuration is loaded with Viper from an optional file (-config) and NEWS_* environment variables.
package main
