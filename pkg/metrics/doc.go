/*
Package metrics provides Prometheus metrics and HTTP health/readiness
handlers for the block token authority's master and slave daemons.

Metrics cover the operations the core package performs (mint, verify,
rotate, export, import) plus the registry's live-key count, so an
operator can see rotation cadence and verification rejection rates
without reading logs. Metrics are registered at package init and
exposed via Handler() for scraping.

The health sub-component (health.go) is independent of Prometheus: it
tracks named component health (e.g. "registry", "transport") and
serves /health, /ready, and /live JSON endpoints, the way a daemon's
liveness and readiness probes are usually wired in this stack.
*/
package metrics
