package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/service/batchmdw"
)

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the batch service is able to connect to
// it's dependencies and functioning as expected
func createHealthcheckHandler(service *BatchService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var combinedErrors error

		service.Debug().Msg("/healthcheck called")

		// check that the database is reachable
		err := service.Database.HealthCheck()
		if err != nil {
			service.Error().
				Err(err).
				Msg("database healthcheck failed")

			errMsg := fmt.Errorf("batch service unable to connect to database: %v", err)
			combinedErrors = errors.Join(combinedErrors, errMsg)
		}

		if service.Cache.IsCacheEnabled() {
			// check that the cache is reachable
			err := service.Cache.Healthcheck(r.Context())
			if err != nil {
				service.Error().
					Err(err).
					Msg("cache healthcheck failed")

				errMsg := fmt.Errorf("batch service unable to connect to cache: %v", err)
				combinedErrors = errors.Join(combinedErrors, errMsg)
			}
		}

		if combinedErrors != nil {
			w.WriteHeader(http.StatusInternalServerError)

			w.Write([]byte(combinedErrors.Error()))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("batch service is healthy"))
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok if the batch service is running
func createServicecheckHandler(service *BatchService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/servicecheck called")

		w.WriteHeader(http.StatusOK)

		w.Write([]byte("batch service is in service"))
	}
}

// createDatabaseStatusHandler creates a database status handler
// function responding to requests for the status of the metrics database
func createDatabaseStatusHandler(service *BatchService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/status/database called")

		count, err := service.Database.CountBatchRequestMetrics(r.Context())
		if err != nil {
			service.Error().Err(err).Msg("error counting batch request metrics")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		response := DatabaseStatusResponse{
			MetricDatabaseEnabled:    service.config.MetricDatabaseEnabled,
			TotalBatchRequestMetrics: count,
		}

		// return response for client
		if err := MarshalJSONResponse(&response, w); err != nil {
			service.Error().Err(err).Msg("error encoding database status response")
		}
	}
}

// MarshalJSONResponse marshals an interface into the response body and sets JSON content type headers
func MarshalJSONResponse(obj interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		return err
	}
	return nil
}

func writeErrorResponse(w http.ResponseWriter, logger *logging.ServiceLogger, status int, message string) {
	if err := batchmdw.WriteJSONResponse(w, status, batchmdw.ErrorResponse{Error: message}); err != nil {
		logger.Error().Err(err).Msg("error writing error response")
	}
}
