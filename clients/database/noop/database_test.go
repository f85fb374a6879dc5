package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/clients/database"
)

func TestUnitTestNoopDatabase(t *testing.T) {
	ctx := context.Background()
	db := New()

	require.NoError(t, db.SaveBatchRequestMetric(ctx, &database.BatchRequestMetric{BatchID: "1"}))

	metrics, cursor, err := db.ListBatchRequestMetricsWithPagination(ctx, 0, 10)
	require.NoError(t, err)
	require.Empty(t, metrics)
	require.Zero(t, cursor)

	count, err := db.CountBatchRequestMetrics(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, db.DeleteBatchRequestMetricsOlderThanNDays(ctx, 1))
	require.NoError(t, db.HealthCheck())
}
