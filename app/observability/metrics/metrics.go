package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	UserRequestsTotal       metric.Int64Counter
	LastAccessUpdatesTotal  metric.Int64Counter
	LastAccessFailuresTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("user-identity-service")
		var err error
		m := &AppMetrics{}

		m.UserRequestsTotal, err = meter.Int64Counter(
			"user_requests_total",
			metric.WithDescription("Total number of requests handled on the authenticated API surface"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create user_requests_total: %v", err)
		}

		m.LastAccessUpdatesTotal, err = meter.Int64Counter(
			"last_access_updates_total",
			metric.WithDescription("Total number of fire-and-forget lastAccess updates issued"),
			metric.WithUnit("{update}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create last_access_updates_total: %v", err)
		}

		m.LastAccessFailuresTotal, err = meter.Int64Counter(
			"last_access_failures_total",
			metric.WithDescription("Total number of lastAccess updates that failed and were discarded"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create last_access_failures_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
