package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mint/verify counters
	TokensMintedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blockauth_tokens_minted_total",
			Help: "Total number of tokens minted by this master",
		},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockauth_verifications_total",
			Help: "Total number of CheckAccess calls by outcome",
		},
		[]string{"result"},
	)

	MintDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockauth_mint_duration_seconds",
			Help:    "Time taken to mint a token",
			Buckets: prometheus.DefBuckets,
		},
	)

	VerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockauth_verify_duration_seconds",
			Help:    "Time taken to verify a token",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Key registry metrics
	RegistrySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockauth_registry_keys_total",
			Help: "Number of live keys currently held in the registry",
		},
	)

	RotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blockauth_rotations_total",
			Help: "Total number of successful key rotations performed by this master",
		},
	)

	CurrentKeyID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockauth_current_key_id",
			Help: "key_id of the master's current signing key",
		},
	)

	// Snapshot export/import metrics
	SnapshotsExportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blockauth_snapshots_exported_total",
			Help: "Total number of snapshots exported by this master",
		},
	)

	SnapshotsImportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockauth_snapshots_imported_total",
			Help: "Total number of snapshots imported by this slave, by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(TokensMintedTotal)
	prometheus.MustRegister(VerificationsTotal)
	prometheus.MustRegister(MintDuration)
	prometheus.MustRegister(VerifyDuration)
	prometheus.MustRegister(RegistrySize)
	prometheus.MustRegister(RotationsTotal)
	prometheus.MustRegister(CurrentKeyID)
	prometheus.MustRegister(SnapshotsExportedTotal)
	prometheus.MustRegister(SnapshotsImportedTotal)
}

// Handler returns the Prometheus HTTP handler, mounted by the master
// and slave daemons at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing mint/verify operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec
// with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
