package database

import "context"

// MetricsDatabase stores one BatchRequestMetric per batch handled by the gateway.
type MetricsDatabase interface {
	SaveBatchRequestMetric(ctx context.Context, metric *BatchRequestMetric) error
	ListBatchRequestMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*BatchRequestMetric, int64, error)
	CountBatchRequestMetrics(ctx context.Context) (int64, error)
	DeleteBatchRequestMetricsOlderThanNDays(ctx context.Context, n int64) error
	HealthCheck() error
}
