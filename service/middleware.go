package service

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/negroni"

	"github.com/kava-labs/odata-batch-proxy/clients/database"
	"github.com/kava-labs/odata-batch-proxy/config"
	"github.com/kava-labs/odata-batch-proxy/decode"
	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/service/batchmdw"
)

const (
	DecodedRequestContextKey   = "X-ODATA-BATCH-DECODED-REQUEST-BODY"
	RequestStartTimeContextKey = "X-ODATA-BATCH-REQUEST-START-TIME"
	RequestIDContextKey        = "X-ODATA-BATCH-REQUEST-ID"

	RequestIDHeaderKey = "X-Batch-Request-Id"

	// bound on how long saving a metric may take once the response was sent
	metricSaveTimeout = 10 * time.Second
)

// createRequestLoggingMiddleware returns a handler that assigns every request
// an id, records when it started and, once handled, logs the status
// and size of the response along with the request latency
func createRequestLoggingMiddleware(h http.HandlerFunc, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestStartTime := time.Now()
		requestID := uuid.New().String()

		lrw := negroni.NewResponseWriter(w)
		lrw.Header().Set(RequestIDHeaderKey, requestID)

		ctx := context.WithValue(r.Context(), RequestStartTimeContextKey, requestStartTime)
		ctx = context.WithValue(ctx, RequestIDContextKey, requestID)

		h.ServeHTTP(lrw, r.WithContext(ctx))

		serviceLogger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", lrw.Status()).
			Int("size", lrw.Size()).
			Dur("latency", time.Since(requestStartTime)).
			Msg("handled request")
	}
}

// createDecodeRequestMiddleware returns a handler that reads and decodes the
// batch request body, rejecting the request if it can't be decoded, and adds
// the decoded request to the context under DecodedRequestContextKey
// so that later middleware don't need to read the body again
func createDecodeRequestMiddleware(next http.Handler, config config.Config, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeErrorResponse(w, serviceLogger, http.StatusMethodNotAllowed, "batch requests must be POSTed")
			return
		}

		rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.HTTPMaxBatchBodyBytes))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeErrorResponse(w, serviceLogger, http.StatusRequestEntityTooLarge, err.Error())
				return
			}

			writeErrorResponse(w, serviceLogger, http.StatusBadRequest, err.Error())
			return
		}

		decodedRequest, err := decode.DecodeBatchRequest(rawBody)
		if err != nil {
			serviceLogger.Debug().
				Err(err).
				Int("body_size", len(rawBody)).
				Msg("error decoding batch request")

			writeErrorResponse(w, serviceLogger, http.StatusBadRequest, err.Error())
			return
		}

		serviceLogger.Trace().
			Int("items", len(decodedRequest.Items)).
			Int("operations", decodedRequest.OperationCount()).
			Msg("decoded batch request")

		decodedRequestBodyContext := context.WithValue(r.Context(), DecodedRequestContextKey, decodedRequest)

		next.ServeHTTP(w, r.WithContext(decodedRequestBodyContext))
	}
}

// createAfterBatchFinalizer returns a handler that records a metric for the
// batch handled earlier in the chain. The metric is saved in the background
// so the database never delays the response.
func createAfterBatchFinalizer(service *BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := batchmdw.GetBatchResult(r.Context())
		if !ok {
			service.Error().Msg("batch result missing from context, not recording metric")
			return
		}

		metric := newBatchRequestMetric(r, result)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricSaveTimeout)
			defer cancel()

			if err := service.Database.SaveBatchRequestMetric(ctx, metric); err != nil {
				service.Error().
					Err(err).
					Str("batch_id", metric.BatchID).
					Msg("error saving batch request metric")
				return
			}

			service.Trace().
				Str("batch_id", metric.BatchID).
				Int64("id", metric.ID).
				Msg("saved batch request metric")
		}()
	}
}

func newBatchRequestMetric(r *http.Request, result *batchmdw.BatchResult) *database.BatchRequestMetric {
	requestTime, ok := r.Context().Value(RequestStartTimeContextKey).(time.Time)
	if !ok {
		requestTime = time.Now()
	}

	batchID, ok := r.Context().Value(RequestIDContextKey).(string)
	if !ok {
		batchID = uuid.New().String()
	}

	metric := &database.BatchRequestMetric{
		BatchID:                     batchID,
		RetrieveCount:               result.RetrieveCount,
		ChangesetCount:              result.ChangesetCount,
		OperationCount:              result.OperationCount,
		FailedCount:                 result.FailedCount,
		CacheHits:                   result.CacheHits,
		BackendStatusCode:           result.BackendStatusCode,
		ResponseLatencyMilliseconds: time.Since(requestTime).Milliseconds(),
		Hostname:                    r.Host,
		RequestIP:                   requestIP(r),
		RequestTime:                 requestTime,
		UserAgent:                   optionalHeader(r, "User-Agent"),
		Referer:                     optionalHeader(r, "Referer"),
		Origin:                      optionalHeader(r, "Origin"),
	}

	if result.Err != nil {
		message := result.Err.Error()
		metric.ErrorMessage = &message
	}

	return metric
}

// requestIP returns the first X-Forwarded-For address, falling back to the remote address
func requestIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func optionalHeader(r *http.Request, name string) *string {
	value := r.Header.Get(name)
	if value == "" {
		return nil
	}

	return &value
}
