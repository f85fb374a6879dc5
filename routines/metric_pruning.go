// package routines provides configuration and logic
// for running background routines such as metric pruning
// for removing historical batch request metrics
package routines

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/odata-batch-proxy/clients/database"
	"github.com/kava-labs/odata-batch-proxy/logging"
)

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval                     time.Duration
	StartDelay                   time.Duration
	MaxRequestMetricsHistoryDays int64
	Database                     database.MetricsDatabase
	Logger                       logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical batch request metrics
type MetricPruningRoutine struct {
	id                           string
	interval                     time.Duration
	startDelay                   time.Duration
	maxRequestMetricsHistoryDays int64
	db                           database.MetricsDatabase
	logging.ServiceLogger
}

// Run runs the metric pruning routine for pruning historical
// batch request metrics, returning error (if any)
// from starting the routine and an error channel which any errors
// encountered during running will be sent on
func (mpr *MetricPruningRoutine) Run() (<-chan error, error) {
	errorChannel := make(chan error)

	go func() {
		time.Sleep(mpr.startDelay)

		timer := time.Tick(mpr.interval)

		for tick := range timer {
			mpr.Trace().
				Str("routine", mpr.id).
				Time("tick", tick).
				Msg("pruning batch request metrics")

			err := mpr.db.DeleteBatchRequestMetricsOlderThanNDays(context.Background(), mpr.maxRequestMetricsHistoryDays)
			if err != nil {
				errorChannel <- fmt.Errorf("%s: error pruning batch request metrics older than %d days: %w", mpr.id, mpr.maxRequestMetricsHistoryDays, err)
				continue
			}

			mpr.Debug().
				Str("routine", mpr.id).
				Int64("max_history_days", mpr.maxRequestMetricsHistoryDays).
				Msg("pruned batch request metrics")
		}
	}()

	return errorChannel, nil
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Interval <= 0 {
		return nil, errors.New("metric pruning interval must be greater than zero")
	}
	if config.MaxRequestMetricsHistoryDays <= 0 {
		return nil, errors.New("metric pruning max history days must be greater than zero")
	}
	if config.Database == nil {
		return nil, errors.New("metric pruning requires a database")
	}

	return &MetricPruningRoutine{
		id:                           uuid.New().String(),
		interval:                     config.Interval,
		startDelay:                   config.StartDelay,
		maxRequestMetricsHistoryDays: config.MaxRequestMetricsHistoryDays,
		db:                           config.Database,
		ServiceLogger:                *logging.OrNop(&config.Logger),
	}, nil
}
