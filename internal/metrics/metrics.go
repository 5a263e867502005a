// Package metrics exposes Prometheus counters for the auth and profile flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements profilesync.Recorder and records auth and HTTP outcomes.
type Collector struct {
	saves       *prometheus.CounterVec
	saveLatency prometheus.Histogram
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Counter
	loads       *prometheus.CounterVec
	logins      *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_saves_total",
			Help: "Profile saves by outcome.",
		}, []string{"outcome"}),
		saveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "profile_save_duration_seconds",
			Help:    "Time spent uploading and upserting a profile.",
			Buckets: prometheus.DefBuckets,
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatar_uploads_total",
			Help: "Avatar uploads by result.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avatar_upload_bytes_total",
			Help: "Bytes sent to object storage for accepted avatar uploads.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_loads_total",
			Help: "Profile loads, split by whether a stored row was found.",
		}, []string{"found"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Password sign-ins by result.",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.saves,
		c.saveLatency,
		c.uploads,
		c.uploadBytes,
		c.loads,
		c.logins,
		c.httpStatus,
	)
	return c
}

func (c *Collector) RecordSave(outcome string, elapsed time.Duration) {
	c.saves.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		c.saveLatency.Observe(elapsed.Seconds())
	}
}

func (c *Collector) RecordUpload(ok bool, size int64) {
	if !ok {
		c.uploads.WithLabelValues("error").Inc()
		return
	}
	c.uploads.WithLabelValues("ok").Inc()
	if size > 0 {
		c.uploadBytes.Add(float64(size))
	}
}

func (c *Collector) RecordLoad(found bool) {
	c.loads.WithLabelValues(strconv.FormatBool(found)).Inc()
}

func (c *Collector) RecordLogin(ok bool) {
	if ok {
		c.logins.WithLabelValues("ok").Inc()
		return
	}
	c.logins.WithLabelValues("error").Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
