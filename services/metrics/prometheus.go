// Package metricsvc exposes the academy's domain counters and HTTP latencies to Prometheus.
package metricsvc

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mabu007/czane-beauty-academy/core"
)

const namespace = "academy"

type PrometheusMetrics struct {
	enrollments  *prometheus.CounterVec
	quizzes      *prometheus.CounterVec
	certificates prometheus.Counter
	requests     *prometheus.HistogramVec
}

var _ core.Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collectors and registers them on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Enrollments created, by payment status.",
		}, []string{"status"}),
		quizzes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_submissions_total",
			Help:      "Graded quiz and exam submissions, by result.",
		}, []string{"result"}),
		certificates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued for the first time.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.enrollments, m.quizzes, m.certificates, m.requests)
	return m
}

func (m *PrometheusMetrics) Enrolled(paymentStatus string) {
	m.enrollments.WithLabelValues(paymentStatus).Inc()
}

func (m *PrometheusMetrics) QuizSubmitted(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	m.quizzes.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) CertificateIssued() {
	m.certificates.Inc()
}

// Middleware observes the latency of every request, labelled by route pattern.
func (m *PrometheusMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					code = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
