package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vectors",
		Name:      "model_cache_lookups_total",
		Help:      "Model cache lookups by cache and result (hit or miss).",
	}, []string{"cache", "result"})

	ModelConstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vectors",
		Name:      "model_constructions_total",
		Help:      "Model construction attempts by cache and outcome.",
	}, []string{"cache", "outcome"})

	EncodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vectors",
		Name:      "encode_duration_seconds",
		Help:      "Time spent holding a model handle while encoding, by cache and canonical model name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"cache", "model"})

	EncodeInputs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vectors",
		Name:      "encode_inputs_total",
		Help:      "Inputs submitted to encoders, by cache and canonical model name.",
	}, []string{"cache", "model"})

	MemoLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vectors",
		Name:      "vector_memo_lookups_total",
		Help:      "Vector memo lookups by tier and result.",
	}, []string{"tier", "result"})

	SwallowedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vectors",
		Name:      "batch_fallback_errors_total",
		Help:      "Per-record failures ignored by the best-effort batch fallback.",
	})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vectors",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and outcome (ok, error or skipped).",
	}, []string{"job", "outcome"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
