package postgres

import (
	"context"

	"github.com/kava-labs/odata-batch-proxy/clients/database"
)

const (
	BatchRequestMetricsTableName = "batch_request_metrics"
)

// SaveBatchRequestMetric saves the metric to the database, returning error (if any).
func (c *Client) SaveBatchRequestMetric(ctx context.Context, metric *database.BatchRequestMetric) error {
	if c.db == nil {
		return ErrNoDatabase
	}

	brm := convertBatchRequestMetric(metric)
	_, err := c.db.NewInsert().Model(brm).Exec(ctx)
	if err != nil {
		return err
	}

	metric.ID = brm.ID

	return nil
}

// ListBatchRequestMetricsWithPagination returns a page of max
// `limit` BatchRequestMetrics from the offset specified by `cursor`
// error (if any) along with a cursor to use to fetch the next page
// if the cursor is 0 no more pages exists.
func (c *Client) ListBatchRequestMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.BatchRequestMetric, int64, error) {
	if c.db == nil {
		return nil, 0, ErrNoDatabase
	}

	var batchRequestMetrics []BatchRequestMetric
	var nextCursor int64

	err := c.db.NewSelect().
		Model(&batchRequestMetrics).
		Where("id > ?", cursor).
		Order("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	// a full page means there may be more rows
	if limit > 0 && len(batchRequestMetrics) == limit {
		nextCursor = batchRequestMetrics[len(batchRequestMetrics)-1].ID
	}

	metrics := make([]*database.BatchRequestMetric, 0, len(batchRequestMetrics))
	for i := range batchRequestMetrics {
		metrics = append(metrics, batchRequestMetrics[i].ToBatchRequestMetric())
	}

	return metrics, nextCursor, nil
}

// CountBatchRequestMetrics returns the number of stored metrics.
// Used for the database status check.
func (c *Client) CountBatchRequestMetrics(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, ErrNoDatabase
	}

	count, err := c.db.NewSelect().Model((*BatchRequestMetric)(nil)).Count(ctx)
	if err != nil {
		return 0, err
	}

	return int64(count), nil
}

// DeleteBatchRequestMetricsOlderThanNDays deletes
// all batch request metrics older than the specified
// days, returning error (if any).
// Used during pruning process.
func (c *Client) DeleteBatchRequestMetricsOlderThanNDays(ctx context.Context, n int64) error {
	if c.db == nil {
		return ErrNoDatabase
	}

	_, err := c.db.NewDelete().
		Model((*BatchRequestMetric)(nil)).
		Where("request_time < now() - make_interval(days => ?)", n).
		Exec(ctx)

	return err
}
