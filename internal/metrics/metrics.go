// Package metrics exposes Prometheus instruments for prompt rendering and
// the HTTP API on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry and the instruments registered on it.
type Collector struct {
	registry       *prometheus.Registry
	promptsTotal   *prometheus.CounterVec
	promptDuration *prometheus.HistogramVec
	requestsTotal  *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		promptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiprompt_prompts_rendered_total",
			Help: "Prompts rendered, by persona.",
		}, []string{"persona"}),
		promptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apiprompt_prompt_render_seconds",
			Help:    "Time spent rendering a prompt.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"persona"}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiprompt_http_requests_total",
			Help: "HTTP requests served, by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
	}
}

// ObservePrompt records one render.
func (c *Collector) ObservePrompt(persona string, d time.Duration) {
	c.promptsTotal.WithLabelValues(persona).Inc()
	c.promptDuration.WithLabelValues(persona).Observe(d.Seconds())
}

// ObserveRequest records one HTTP response.
func (c *Collector) ObserveRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
