// package service provides functions and methods
// for creating and running the api of the odata batch gateway
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/odata-batch-proxy/clients/cache"
	"github.com/kava-labs/odata-batch-proxy/clients/database"
	"github.com/kava-labs/odata-batch-proxy/clients/database/noop"
	"github.com/kava-labs/odata-batch-proxy/clients/database/postgres"
	"github.com/kava-labs/odata-batch-proxy/clients/database/postgres/migrations"
	"github.com/kava-labs/odata-batch-proxy/clients/odata"
	"github.com/kava-labs/odata-batch-proxy/config"
	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/service/batchmdw"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

const (
	BatchPath          = "/batch"
	HealthcheckPath    = "/healthcheck"
	ServicecheckPath   = "/servicecheck"
	DatabaseStatusPath = "/status/database"

	// bounds on retrying startup dependencies
	startupRetryMaxElapsedTime = 30 * time.Second
)

// BatchService represents an instance of the batch gateway API
type BatchService struct {
	Database    database.MetricsDatabase
	Cache       *cachemdw.ServiceCache
	ODataClient *odata.Client
	server      *http.Server
	handler     http.Handler
	config      config.Config
	*logging.ServiceLogger
}

// New returns a new BatchService with the specified config and error (if any)
func New(ctx context.Context, config config.Config, serviceLogger *logging.ServiceLogger) (*BatchService, error) {
	service := &BatchService{
		config:        config,
		ServiceLogger: logging.OrNop(serviceLogger),
	}

	db, err := createDatabaseClient(ctx, config, service.ServiceLogger)
	if err != nil {
		return nil, err
	}
	service.Database = db

	cacheClient, err := createCacheClient(ctx, config, service.ServiceLogger)
	if err != nil {
		return nil, err
	}
	service.Cache = cachemdw.NewServiceCache(
		cacheClient,
		DecodedRequestContextKey,
		config.CachePrefix,
		config.CacheEnabled,
		cachemdw.DefaultWhitelistedHeaders,
		config.CacheTTL,
		service.ServiceLogger,
	)

	odataClient, err := odata.NewClient(odata.ClientConfig{
		ServiceRootURL: config.ODataServiceRootURL,
		BatchPath:      config.ODataBatchPath,
		Timeout:        config.ODataBackendTimeout,
		Logger:         service.ServiceLogger,
	})
	if err != nil {
		return nil, err
	}
	service.ODataClient = odataClient

	// create an http router for registering handlers for a given route
	mux := http.NewServeMux()

	// the batch middleware chain, in order of execution:
	// request logging -> decode -> cache lookup -> batch handler -> caching -> metric finalizer
	afterBatchFinalizer := createAfterBatchFinalizer(service)

	cachingMiddleware := service.Cache.CachingMiddleware(afterBatchFinalizer)

	batchHandler := batchmdw.CreateBatchProcessingMiddleware(cachingMiddleware, &batchmdw.BatchMiddlewareConfig{
		ServiceLogger:                 service.ServiceLogger,
		ContextKeyDecodedRequestBatch: DecodedRequestContextKey,
		Executor:                      service.ODataClient,
		WhitelistedHeaders:            service.Cache.WhitelistedHeaders(),
	})

	isCachedMiddleware := service.Cache.IsCachedMiddleware(batchHandler)

	decodeRequestMiddleware := createDecodeRequestMiddleware(isCachedMiddleware, config, service.ServiceLogger)

	mux.HandleFunc(BatchPath, createRequestLoggingMiddleware(decodeRequestMiddleware, service.ServiceLogger))

	mux.HandleFunc(HealthcheckPath, createHealthcheckHandler(service))
	mux.HandleFunc(ServicecheckPath, createServicecheckHandler(service))
	mux.HandleFunc(DatabaseStatusPath, createDatabaseStatusHandler(service))

	service.handler = mux

	// create an http server for the caller to start at their own discretion
	service.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", config.BatchServicePort),
		Handler:      mux,
		ReadTimeout:  time.Duration(config.HTTPReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(config.HTTPWriteTimeoutSeconds) * time.Second,
	}

	return service, nil
}

// Handler returns the http handler serving every route of the service
func (s *BatchService) Handler() http.Handler {
	return s.handler
}

// Run runs the batch service, returning error (if any) in the event
// the batch service stops
func (s *BatchService) Run() error {
	s.Info().Str("addr", s.server.Addr).Msg("batch service listening")

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown gracefully stops the http server
func (s *BatchService) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// createDatabaseClient connects to the metrics database, running migrations
// if configured to, or returns a no-op database when metrics are disabled
func createDatabaseClient(ctx context.Context, config config.Config, logger *logging.ServiceLogger) (database.MetricsDatabase, error) {
	if !config.MetricDatabaseEnabled {
		logger.Info().Msg("metric database is disabled, batch metrics won't be stored")
		return noop.New(), nil
	}

	client, err := postgres.NewClient(postgres.DatabaseConfig{
		DatabaseName:                     config.DatabaseName,
		DatabaseEndpointURL:              config.DatabaseEndpointURL,
		DatabaseUsername:                 config.DatabaseUserName,
		DatabasePassword:                 config.DatabasePassword,
		ReadTimeoutSeconds:               config.DatabaseReadTimeoutSeconds,
		DatabaseMaxIdleConnections:       config.DatabaseMaxIdleConnections,
		DatabaseConnectionMaxIdleSeconds: config.DatabaseConnectionMaxIdleSeconds,
		DatabaseMaxOpenConnections:       config.DatabaseMaxOpenConnections,
		SSLEnabled:                       config.DatabaseSSLEnabled,
		QueryLoggingEnabled:              config.DatabaseQueryLoggingEnabled,
		Logger:                           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating database client: %w", err)
	}

	if !config.RunDatabaseMigrations {
		return client, nil
	}

	// the database may still be starting, retry until it accepts migrations
	migrationBackoff := backoff.NewExponentialBackOff()
	migrationBackoff.MaxElapsedTime = startupRetryMaxElapsedTime

	err = backoff.Retry(func() error {
		migrationGroup, err := client.Migrate(ctx, *migrations.Migrations, logger)
		if err != nil {
			logger.Error().Err(err).Msg("error running database migrations, will retry")
			return err
		}

		logger.Debug().Int("applied", len(*migrationGroup)).Msg("database migrations complete")
		return nil
	}, backoff.WithContext(migrationBackoff, ctx))
	if err != nil {
		return nil, fmt.Errorf("error running database migrations: %w", err)
	}

	return client, nil
}

// createCacheClient returns a redis cache when an endpoint is configured,
// and an in-memory cache otherwise
func createCacheClient(ctx context.Context, config config.Config, logger *logging.ServiceLogger) (cache.Cache, error) {
	if !config.CacheEnabled || config.RedisEndpointURL == "" {
		return cache.NewInMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Address:  config.RedisEndpointURL,
		Password: config.RedisPassword,
		DB:       0,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating redis cache: %w", err)
	}

	healthcheckBackoff := backoff.NewExponentialBackOff()
	healthcheckBackoff.MaxElapsedTime = startupRetryMaxElapsedTime

	err = backoff.Retry(func() error {
		if err := redisCache.Healthcheck(ctx); err != nil {
			logger.Error().Err(err).Msg("cache healthcheck failed, will retry")
			return err
		}
		return nil
	}, backoff.WithContext(healthcheckBackoff, ctx))
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis cache: %w", err)
	}

	return redisCache, nil
}
