package batchmdw

import (
	"context"
	"net/http"
	"time"

	"github.com/kava-labs/odata-batch-proxy/decode"
	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

type batchContextKey string

const (
	BatchResultContextKey batchContextKey = "X-ODATA-BATCH-RESULT"
)

// BatchResult summarizes a processed batch for the middleware
// running after the batch handler
type BatchResult struct {
	ItemCount         int
	RetrieveCount     int
	ChangesetCount    int
	OperationCount    int
	FailedCount       int
	CacheHits         int
	BackendStatusCode int
	// StatusCode is the status returned to the client
	StatusCode int
	Latency    time.Duration
	Err        error
}

type BatchMiddlewareConfig struct {
	ServiceLogger *logging.ServiceLogger

	ContextKeyDecodedRequestBatch any
	Executor                      BatchExecutor
	// WhitelistedHeaders are the sub-response headers kept when caching retrieves
	WhitelistedHeaders []string
}

// CreateBatchProcessingMiddleware creates the batch handler. It expects the
// decoded batch in the context and, when caching is enabled, the cached
// responses set by cachemdw.IsCachedMiddleware. After writing the response it
// calls next with the fresh retrieve responses and the BatchResult set in
// the context.
func CreateBatchProcessingMiddleware(next http.Handler, config *BatchMiddlewareConfig) http.HandlerFunc {
	logger := logging.OrNop(config.ServiceLogger)

	return func(w http.ResponseWriter, r *http.Request) {
		decodedReq, ok := r.Context().Value(config.ContextKeyDecodedRequestBatch).(*decode.BatchRequestEnvelope)
		if !ok {
			logger.Error().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Str("host", r.Host).
				Msg("can't cast request to *BatchRequestEnvelope type")

			WriteJSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: "batch request body is missing or invalid"})
			return
		}

		processor := NewBatchProcessor(
			config.Executor,
			decodedReq.Items,
			cachemdw.CachedResponses(r.Context()),
			config.WhitelistedHeaders,
			logger,
		)

		startedAt := time.Now()
		err := processor.Process(r.Context())

		result := &BatchResult{
			ItemCount:         len(decodedReq.Items),
			RetrieveCount:     decodedReq.RetrieveCount(),
			ChangesetCount:    decodedReq.ChangesetCount(),
			OperationCount:    decodedReq.OperationCount(),
			FailedCount:       processor.FailedCount(),
			CacheHits:         processor.CacheHits(),
			BackendStatusCode: processor.BackendStatusCode(),
			Latency:           time.Since(startedAt),
			Err:               err,
		}
		resultContext := context.WithValue(r.Context(), BatchResultContextKey, result)

		if err != nil {
			logger.Error().
				Err(err).
				Int("items", result.ItemCount).
				Int("backend_status", result.BackendStatusCode).
				Msg("batch failed")

			result.StatusCode = http.StatusBadGateway
			if writeErr := WriteJSONResponse(w, result.StatusCode, ErrorResponse{Error: err.Error()}); writeErr != nil {
				logger.Error().Err(writeErr).Msg("error writing batch error response")
			}

			next.ServeHTTP(w, r.WithContext(resultContext))
			return
		}

		logger.Debug().
			Int("items", result.ItemCount).
			Int("operations", result.OperationCount).
			Int("cache_hits", result.CacheHits).
			Int("failed", result.FailedCount).
			Dur("latency", result.Latency).
			Msg("batch processed")

		result.StatusCode = http.StatusOK
		w.Header().Set(cachemdw.CacheHeaderKey, processor.CacheStatus())
		if err := WriteJSONResponse(w, result.StatusCode, BatchResponse{Items: processor.Responses()}); err != nil {
			logger.Error().Err(err).Msg("error writing batch response")
		}

		next.ServeHTTP(w, r.WithContext(cachemdw.WithFreshResponses(resultContext, processor.FreshResponses())))
	}
}

// GetBatchResult returns the BatchResult set in ctx by the batch handler, if any
func GetBatchResult(ctx context.Context) (*BatchResult, bool) {
	result, ok := ctx.Value(BatchResultContextKey).(*BatchResult)
	return result, ok
}
