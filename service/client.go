package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kava-labs/odata-batch-proxy/decode"
	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/service/batchmdw"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

// BatchServiceClient provides a client
// for making requests and decoding responses
// to the batch service API
type BatchServiceClient struct {
	*http.Client
	config            BatchServiceClientConfig
	DebugLogResponses bool
	*logging.ServiceLogger
}

// BatchServiceClientConfig wraps values used to
// create a new BatchServiceClient
type BatchServiceClientConfig struct {
	BatchServiceHostname string
	DebugLogResponses    bool
	Logger               *logging.ServiceLogger
}

// NewBatchServiceClient creates a new BatchServiceClient
// using the provided config, returning the client and error (if any)
func NewBatchServiceClient(config BatchServiceClientConfig) (*BatchServiceClient, error) {
	httpClient := &http.Client{}
	return &BatchServiceClient{
		Client:            httpClient,
		DebugLogResponses: config.DebugLogResponses,
		config:            config,
		ServiceLogger:     logging.OrNop(config.Logger),
	}, nil
}

// GetDatabaseStatus calls `DatabaseStatusPath` to
// get metadata related to batch service database operations
func (c *BatchServiceClient) GetDatabaseStatus(ctx context.Context) (DatabaseStatusResponse, error) {
	var response DatabaseStatusResponse
	url := c.config.BatchServiceHostname + DatabaseStatusPath

	request, err := CreateRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response, err
	}

	_, err = Call(*c, request, &response)

	return response, err
}

// PostBatch calls `BatchPath` with the batch, returning the decoded
// response, the value of the cache status header and error (if any)
func (c *BatchServiceClient) PostBatch(ctx context.Context, batch decode.BatchRequestEnvelope) (batchmdw.BatchResponse, string, error) {
	var response batchmdw.BatchResponse
	url := c.config.BatchServiceHostname + BatchPath

	request, err := CreateRequest(ctx, http.MethodPost, url, batch)
	if err != nil {
		return response, "", err
	}

	header, err := Call(*c, request, &response)
	if err != nil {
		return response, "", err
	}

	return response, header.Get(cachemdw.CacheHeaderKey), nil
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message, url, statusCode}
}

// CreateRequest isolates duplicate code in creating http search request.
func CreateRequest(ctx context.Context, method string, path string, params interface{}) (*http.Request, error) {
	var buf bytes.Buffer
	var req *http.Request
	err := json.NewEncoder(&buf).Encode(&params)
	if err != nil {
		return req, err
	}
	req, err = http.NewRequestWithContext(ctx, method, path, &buf)
	if err != nil {
		return req, &RequestError{
			URL:     path,
			message: err.Error(),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Call makes an http request to a JSON HTTP api
// decoding the JSON response to the result interface if non-nil
// returning the response headers and error (if any)
func Call(client BatchServiceClient, request *http.Request, result interface{}) (http.Header, error) {
	response, err := client.Do(request)

	if err != nil {
		return nil, &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	defer response.Body.Close()

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		requestURL := request.URL.String()
		var errorResponse batchmdw.ErrorResponse
		_ = json.NewDecoder(response.Body).Decode(&errorResponse)

		return response.Header, &RequestError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			message:    fmt.Sprintf("request to %s error server http error %d: %s", requestURL, response.StatusCode, errorResponse.Error),
		}
	}

	// If no result is expected, don't attempt to decode a potentially
	// empty response stream and avoid incurring EOF errors
	if result == nil {
		return response.Header, nil
	}
	// Check if debug is on
	if client.DebugLogResponses {
		var bodyBytes []byte
		if response.Body != nil {
			bodyBytes, err = io.ReadAll(response.Body)
			if err != nil {
				return response.Header, &RequestError{
					URL:     request.URL.String(),
					message: err.Error(),
				}
			}
			client.Debug().
				Str("url", request.URL.String()).
				Int("status", response.StatusCode).
				Str("body", string(bodyBytes)).
				Msg("batch service response")
		}
		// Repopulate body with the data read
		response.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	err = json.NewDecoder(response.Body).Decode(&result)
	if err != nil {
		return response.Header, &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}
	return response.Header, nil
}
