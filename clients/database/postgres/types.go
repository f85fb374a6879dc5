package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kava-labs/odata-batch-proxy/clients/database"
)

// BatchRequestMetric is the bun model of database.BatchRequestMetric
type BatchRequestMetric struct {
	bun.BaseModel `bun:"table:batch_request_metrics,alias:brm"`

	ID                          int64 `bun:",pk,autoincrement"`
	BatchID                     string
	RetrieveCount               int
	ChangesetCount              int
	OperationCount              int
	FailedCount                 int
	CacheHits                   int
	BackendStatusCode           int
	ResponseLatencyMilliseconds int64
	Hostname                    string
	RequestIP                   string `bun:"request_ip"`
	RequestTime                 time.Time
	UserAgent                   *string
	Referer                     *string
	Origin                      *string
	ErrorMessage                *string
}

func (brm *BatchRequestMetric) ToBatchRequestMetric() *database.BatchRequestMetric {
	return &database.BatchRequestMetric{
		ID:                          brm.ID,
		BatchID:                     brm.BatchID,
		RetrieveCount:               brm.RetrieveCount,
		ChangesetCount:              brm.ChangesetCount,
		OperationCount:              brm.OperationCount,
		FailedCount:                 brm.FailedCount,
		CacheHits:                   brm.CacheHits,
		BackendStatusCode:           brm.BackendStatusCode,
		ResponseLatencyMilliseconds: brm.ResponseLatencyMilliseconds,
		Hostname:                    brm.Hostname,
		RequestIP:                   brm.RequestIP,
		RequestTime:                 brm.RequestTime,
		UserAgent:                   brm.UserAgent,
		Referer:                     brm.Referer,
		Origin:                      brm.Origin,
		ErrorMessage:                brm.ErrorMessage,
	}
}

func convertBatchRequestMetric(metric *database.BatchRequestMetric) *BatchRequestMetric {
	return &BatchRequestMetric{
		ID:                          metric.ID,
		BatchID:                     metric.BatchID,
		RetrieveCount:               metric.RetrieveCount,
		ChangesetCount:              metric.ChangesetCount,
		OperationCount:              metric.OperationCount,
		FailedCount:                 metric.FailedCount,
		CacheHits:                   metric.CacheHits,
		BackendStatusCode:           metric.BackendStatusCode,
		ResponseLatencyMilliseconds: metric.ResponseLatencyMilliseconds,
		Hostname:                    metric.Hostname,
		RequestIP:                   metric.RequestIP,
		RequestTime:                 metric.RequestTime,
		UserAgent:                   metric.UserAgent,
		Referer:                     metric.Referer,
		Origin:                      metric.Origin,
		ErrorMessage:                metric.ErrorMessage,
	}
}
