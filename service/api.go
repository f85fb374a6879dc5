package service

// DatabaseStatusResponse wraps values
// returned by calls to /status/database
type DatabaseStatusResponse struct {
	MetricDatabaseEnabled    bool  `json:"metric_database_enabled"`     // whether batch metrics are being stored
	TotalBatchRequestMetrics int64 `json:"total_batch_request_metrics"` // total number of stored batch request metrics
}
