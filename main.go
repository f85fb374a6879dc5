// package main reads & validates configuration for the batch gateway service
// and if the config is valid starts and monitors an instance of the service
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kava-labs/odata-batch-proxy/config"
	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/routines"
	"github.com/kava-labs/odata-batch-proxy/service"
)

var (
	serviceConfig config.Config
	serviceLogger logging.ServiceLogger
)

// loadConfig reads & validates the service config and creates the service logger,
// panicking if either is invalid
func loadConfig() {
	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel)

	if err != nil {
		panic(err)
	}
}

func startMetricPruningRoutine(batchService *service.BatchService) {
	if !serviceConfig.MetricPruningEnabled || !serviceConfig.MetricDatabaseEnabled {
		serviceLogger.Info().Msg("skipping starting metric pruning routine since it is disabled via config")
		return
	}

	metricPruningRoutine, err := routines.NewMetricPruningRoutine(routines.MetricPruningRoutineConfig{
		Interval:                     serviceConfig.MetricPruningRoutineInterval,
		StartDelay:                   serviceConfig.MetricPruningRoutineDelayFirstRun,
		MaxRequestMetricsHistoryDays: int64(serviceConfig.MetricPruningMaxHistoryDays),
		Database:                     batchService.Database,
		Logger:                       serviceLogger,
	})

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}

	errChannel, err := metricPruningRoutine.Run()

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}

	go func() {
		for routineErr := range errChannel {
			serviceLogger.Error().Msg(fmt.Sprintf("metric pruning routine encountered error %s", routineErr))
		}
	}()
}

func main() {
	loadConfig()

	serviceLogger.Debug().Msg(fmt.Sprintf("initial config: %+v", serviceConfig))

	startupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	batchService, err := service.New(startupCtx, serviceConfig, &serviceLogger)
	cancel()

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}

	startMetricPruningRoutine(batchService)

	if err := batchService.Run(); err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}
}
