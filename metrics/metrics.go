package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CollectionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bggproxy_collection_requests_total",
			Help: "Collection proxy requests by result",
		},
		[]string{"result"}, // ok|processing|error
	)

	UpstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bggproxy_upstream_attempts_total",
			Help: "Individual upstream BGG calls by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bggproxy_fetch_duration_seconds",
			Help:    "Duration of a full fetch cycle including retries",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(CollectionRequests)
	prometheus.MustRegister(UpstreamAttempts)
	prometheus.MustRegister(FetchDuration)
}

func Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
