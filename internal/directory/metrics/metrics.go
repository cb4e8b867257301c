// Package metrics holds the Prometheus metrics of the directory service.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds all Prometheus metrics for the directory service.
type Metrics struct {
	CompaniesCreated prometheus.Counter
	CompaniesDeleted prometheus.Counter
	DeedsAppended    prometheus.Counter
	PartialFailures  prometheus.Counter
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CompaniesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexapp_companies_created_total",
			Help: "Total number of companies created in the directory",
		}),
		CompaniesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexapp_companies_deleted_total",
			Help: "Total number of companies deleted together with their deeds",
		}),
		DeedsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexapp_deeds_appended_total",
			Help: "Total number of deeds appended to an existing company",
		}),
		PartialFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexapp_registration_partial_failures_total",
			Help: "Registrations that left a company behind without its initial deed",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dexapp_grpc_requests_total",
			Help: "gRPC requests handled, by method and status code",
		}, []string{"method", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dexapp_grpc_request_duration_seconds",
			Help:    "gRPC request latency, by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// IncrementCompaniesCreated increments the companies created counter by 1
func (m *Metrics) IncrementCompaniesCreated() {
	m.CompaniesCreated.Inc()
}

func (m *Metrics) IncrementCompaniesDeleted() {
	m.CompaniesDeleted.Inc()
}

func (m *Metrics) IncrementDeedsAppended() {
	m.DeedsAppended.Inc()
}

func (m *Metrics) IncrementPartialFailures() {
	m.PartialFailures.Inc()
}

// UnaryInterceptor records request counts and latency for every unary call.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
