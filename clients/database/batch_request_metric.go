package database

import "time"

// BatchRequestMetric contains metrics for a single batch
// request handled by the gateway
type BatchRequestMetric struct {
	ID                          int64
	BatchID                     string
	RetrieveCount               int
	ChangesetCount              int
	OperationCount              int
	FailedCount                 int
	CacheHits                   int
	BackendStatusCode           int
	ResponseLatencyMilliseconds int64
	Hostname                    string
	RequestIP                   string
	RequestTime                 time.Time
	UserAgent                   *string
	Referer                     *string
	Origin                      *string
	ErrorMessage                *string
}

// ItemCount returns the number of top level items in the batch
func (m *BatchRequestMetric) ItemCount() int {
	return m.RetrieveCount + m.ChangesetCount
}
