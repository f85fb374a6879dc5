// package config provides functions and values
// for reading and validating odata batch gateway configuration
package config

import (
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	LogLevel                          string
	BatchServicePort                  string
	ODataServiceRootURLRaw            string
	ODataServiceRootURL               *url.URL
	ODataBatchPath                    string
	ODataBackendTimeout               time.Duration
	HTTPReadTimeoutSeconds            int64
	HTTPWriteTimeoutSeconds           int64
	HTTPMaxBatchBodyBytes             int64
	DatabaseName                      string
	DatabaseEndpointURL               string
	DatabaseUserName                  string
	DatabasePassword                  string
	DatabaseSSLEnabled                bool
	DatabaseQueryLoggingEnabled       bool
	DatabaseReadTimeoutSeconds        int64
	DatabaseMaxIdleConnections        int64
	DatabaseConnectionMaxIdleSeconds  int64
	DatabaseMaxOpenConnections        int64
	RunDatabaseMigrations             bool
	MetricDatabaseEnabled             bool
	MetricPruningEnabled              bool
	MetricPruningRoutineInterval      time.Duration
	MetricPruningRoutineDelayFirstRun time.Duration
	MetricPruningMaxHistoryDays       int
	CacheEnabled                      bool
	RedisEndpointURL                  string
	RedisPassword                     string
	CacheTTL                          time.Duration
	CachePrefix                       string
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                               = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                       = "INFO"
	BATCH_SERVICE_PORT_ENVIRONMENT_KEY                      = "BATCH_SERVICE_PORT"
	DEFAULT_BATCH_SERVICE_PORT                              = "7777"
	ODATA_SERVICE_ROOT_URL_ENVIRONMENT_KEY                  = "ODATA_SERVICE_ROOT_URL"
	ODATA_BATCH_PATH_ENVIRONMENT_KEY                        = "ODATA_BATCH_PATH"
	DEFAULT_ODATA_BATCH_PATH                                = "$batch"
	ODATA_BACKEND_TIMEOUT_SECONDS_ENVIRONMENT_KEY           = "ODATA_BACKEND_TIMEOUT_SECONDS"
	DEFAULT_ODATA_BACKEND_TIMEOUT_SECONDS                   = 30
	HTTP_READ_TIMEOUT_ENVIRONMENT_KEY                       = "HTTP_READ_TIMEOUT_SECONDS"
	DEFAULT_HTTP_READ_TIMEOUT                               = 30
	HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY                      = "HTTP_WRITE_TIMEOUT_SECONDS"
	DEFAULT_HTTP_WRITE_TIMEOUT                              = 60
	HTTP_MAX_BATCH_BODY_BYTES_ENVIRONMENT_KEY               = "HTTP_MAX_BATCH_BODY_BYTES"
	DEFAULT_HTTP_MAX_BATCH_BODY_BYTES                       = 1 << 20
	DATABASE_NAME_ENVIRONMENT_KEY                           = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                   = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                       = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                       = "DATABASE_PASSWORD"
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                    = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY          = "DATABASE_QUERY_LOGGING_ENABLED"
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY           = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                   = 60
	DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY           = "DATABASE_MAX_IDLE_CONNECTIONS"
	DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS                   = 5
	DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY    = "DATABASE_CONNECTION_MAX_IDLE_SECONDS"
	DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS            = 5
	DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY           = "DATABASE_MAX_OPEN_CONNECTIONS"
	DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS                   = 20
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                 = "RUN_DATABASE_MIGRATIONS"
	METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY                 = "METRIC_DATABASE_ENABLED"
	DEFAULT_METRIC_DATABASE_ENABLED                         = true
	METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY                  = "METRIC_PRUNING_ENABLED"
	DEFAULT_METRIC_PRUNING_ENABLED                          = true
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS         = 10
	METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_KEY      = "METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS  = 10
	METRIC_PRUNING_MAX_HISTORY_DAYS_ENVIRONMENT_KEY         = "METRIC_PRUNING_MAX_HISTORY_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_HISTORY_DAYS                 = 45
	CACHE_ENABLED_ENVIRONMENT_KEY                           = "CACHE_ENABLED"
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                      = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                          = "REDIS_PASSWORD"
	CACHE_TTL_ENVIRONMENT_KEY                               = "CACHE_TTL_SECONDS"
	DEFAULT_CACHE_TTL_SECONDS                               = 600
	CACHE_PREFIX_ENVIRONMENT_KEY                            = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                    = "odata"
)

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultBool fetches a boolean environment variable value, or if not set
// or not parseable returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultInt fetches an int environment variable value, or if not set
// or not parseable returns the fallback value
func EnvOrDefaultInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultInt64 fetches an int64 environment variable value, or if not set
// or not parseable returns the fallback value
func EnvOrDefaultInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// secondsToDuration converts a number of seconds to a duration,
// keeping -1 as the "no expiration" marker understood by the cache clients
func secondsToDuration(seconds int64) time.Duration {
	if seconds == -1 {
		return -1
	}
	return time.Duration(seconds) * time.Second
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	rawRootURL := os.Getenv(ODATA_SERVICE_ROOT_URL_ENVIRONMENT_KEY)
	// best effort, validation reports the parse failure
	rootURL, _ := url.Parse(rawRootURL)

	return Config{
		LogLevel:                          EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		BatchServicePort:                  EnvOrDefault(BATCH_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_BATCH_SERVICE_PORT),
		ODataServiceRootURLRaw:            rawRootURL,
		ODataServiceRootURL:               rootURL,
		ODataBatchPath:                    EnvOrDefault(ODATA_BATCH_PATH_ENVIRONMENT_KEY, DEFAULT_ODATA_BATCH_PATH),
		ODataBackendTimeout:               secondsToDuration(EnvOrDefaultInt64(ODATA_BACKEND_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_ODATA_BACKEND_TIMEOUT_SECONDS)),
		HTTPReadTimeoutSeconds:            EnvOrDefaultInt64(HTTP_READ_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_HTTP_READ_TIMEOUT),
		HTTPWriteTimeoutSeconds:           EnvOrDefaultInt64(HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_HTTP_WRITE_TIMEOUT),
		HTTPMaxBatchBodyBytes:             EnvOrDefaultInt64(HTTP_MAX_BATCH_BODY_BYTES_ENVIRONMENT_KEY, DEFAULT_HTTP_MAX_BATCH_BODY_BYTES),
		DatabaseName:                      os.Getenv(DATABASE_NAME_ENVIRONMENT_KEY),
		DatabaseEndpointURL:               os.Getenv(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY),
		DatabaseUserName:                  os.Getenv(DATABASE_USERNAME_ENVIRONMENT_KEY),
		DatabasePassword:                  os.Getenv(DATABASE_PASSWORD_ENVIRONMENT_KEY),
		DatabaseSSLEnabled:                EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:       EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseReadTimeoutSeconds:        EnvOrDefaultInt64(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS),
		DatabaseMaxIdleConnections:        EnvOrDefaultInt64(DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS),
		DatabaseConnectionMaxIdleSeconds:  EnvOrDefaultInt64(DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS),
		DatabaseMaxOpenConnections:        EnvOrDefaultInt64(DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS),
		RunDatabaseMigrations:             EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, false),
		MetricDatabaseEnabled:             EnvOrDefaultBool(METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY, DEFAULT_METRIC_DATABASE_ENABLED),
		MetricPruningEnabled:              EnvOrDefaultBool(METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ENABLED),
		MetricPruningRoutineInterval:      secondsToDuration(EnvOrDefaultInt64(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)),
		MetricPruningRoutineDelayFirstRun: secondsToDuration(EnvOrDefaultInt64(METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS)),
		MetricPruningMaxHistoryDays:       EnvOrDefaultInt(METRIC_PRUNING_MAX_HISTORY_DAYS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_MAX_HISTORY_DAYS),
		CacheEnabled:                      EnvOrDefaultBool(CACHE_ENABLED_ENVIRONMENT_KEY, false),
		RedisEndpointURL:                  os.Getenv(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY),
		RedisPassword:                     os.Getenv(REDIS_PASSWORD_ENVIRONMENT_KEY),
		CacheTTL:                          secondsToDuration(EnvOrDefaultInt64(CACHE_TTL_ENVIRONMENT_KEY, DEFAULT_CACHE_TTL_SECONDS)),
		CachePrefix:                       EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),
	}
}

// BatchURL returns the absolute url of the backend's $batch endpoint
func (c Config) BatchURL() *url.URL {
	if c.ODataServiceRootURL == nil {
		return nil
	}

	return c.ODataServiceRootURL.JoinPath(c.ODataBatchPath)
}
