// Package metrics exposes auth counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middlewares report to.
type Recorder interface {
	Login(provider, result string)
	GuardRejected(code string)
	TwoFaCheck(result string)
	HTTPRequest(method string, status int, d time.Duration)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	logins      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	twoFa       *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by provider and result.",
		}, []string{"provider", "result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_guard_rejections_total",
			Help: "Requests rejected by the session guard, by error code.",
		}, []string{"code"}),
		twoFa: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_twofa_checks_total",
			Help: "One-time code checks by result.",
		}, []string{"result"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	reg.MustRegister(c.logins, c.rejections, c.twoFa, c.httpLatency)
	return c
}

func (c *Collector) Login(provider, result string) {
	c.logins.WithLabelValues(provider, result).Inc()
}

func (c *Collector) GuardRejected(code string) {
	c.rejections.WithLabelValues(code).Inc()
}

func (c *Collector) TwoFaCheck(result string) {
	c.twoFa.WithLabelValues(result).Inc()
}

func (c *Collector) HTTPRequest(method string, status int, d time.Duration) {
	c.httpLatency.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) Login(string, string)                   {}
func (Nop) GuardRejected(string)                   {}
func (Nop) TwoFaCheck(string)                      {}
func (Nop) HTTPRequest(string, int, time.Duration) {}

// Handler serves the registry for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
