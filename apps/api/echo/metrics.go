package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	scores          prometheus.Histogram
}

// newMetrics registers the API collectors on their own registry, so that several servers may coexist.
func newMetrics(namespace string) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quiz_submissions_total",
				Help:      "Total number of graded quiz submissions",
			},
			[]string{"passed", "first_pass"},
		),
		scores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quiz_submission_score",
				Help:      "Score of graded quiz submissions, in percent",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		m.requests,
		m.requestDuration,
		m.submissions,
		m.scores,
	)
	return m
}

func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err) // commits the error response
			}

			status := ctx.Response().Status
			endpoint := ctx.Path() // route pattern, e.g. /v1/courses/:courseId
			m.requests.WithLabelValues(ctx.Request().Method, endpoint, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(ctx.Request().Method, endpoint).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func (m *metrics) observeSubmission(score int, passed, firstPass bool) {
	m.submissions.WithLabelValues(strconv.FormatBool(passed), strconv.FormatBool(firstPass)).Inc()
	m.scores.Observe(float64(score))
}

func (m *metrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
