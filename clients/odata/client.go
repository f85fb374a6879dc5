// Package odata provides the transport for sending batches to an OData service.
package odata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/logging"
)

const (
	DefaultBatchPath = "$batch"
	// maximum number of bytes of a failed batch response kept in the error message
	maxErrorBodyBytes = 512
)

// ClientConfig wraps values used to create a new Client
type ClientConfig struct {
	// ServiceRootURL is the root of the OData service, e.g. https://host/service.svc/
	ServiceRootURL *url.URL
	// BatchPath is joined to ServiceRootURL, defaults to DefaultBatchPath
	BatchPath string
	// Timeout bounds a whole batch round trip, including reading the response
	Timeout time.Duration
	// Header is sent with every batch request
	Header http.Header
	Logger *logging.ServiceLogger
}

// Client sends batches to an OData service's $batch endpoint
type Client struct {
	*http.Client
	batchURL string
	header   http.Header
	*logging.ServiceLogger
}

// NewClient creates a new Client using the provided config,
// returning the client and error (if any)
func NewClient(config ClientConfig) (*Client, error) {
	if config.ServiceRootURL == nil || config.ServiceRootURL.Host == "" {
		return nil, errors.New("odata service root url must be an absolute url")
	}

	batchPath := config.BatchPath
	if batchPath == "" {
		batchPath = DefaultBatchPath
	}

	header := config.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	return &Client{
		Client:        &http.Client{Timeout: config.Timeout},
		batchURL:      config.ServiceRootURL.JoinPath(batchPath).String(),
		header:        header,
		ServiceLogger: logging.OrNop(config.Logger),
	}, nil
}

// BatchURL returns the url batches are posted to
func (c *Client) BatchURL() string {
	return c.batchURL
}

// ExecuteBatch streams the batch assembled by build to the service and
// returns a demultiplexer over the response.
//
// build runs on its own goroutine and writes into a pipe that is the
// request body, so the batch is never held in memory as a whole. It must not
// close the writer. The caller must Close the returned demultiplexer.
func (c *Client) ExecuteBatch(ctx context.Context, build func(w *batch.Writer) error) (*batch.ResponseDemultiplexer, error) {
	reader, writer := io.Pipe()
	w := batch.NewWriter(writer, c.ServiceLogger)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.batchURL, reader)
	if err != nil {
		reader.Close()
		return nil, &RequestError{
			URL:     c.batchURL,
			message: err.Error(),
			err:     err,
		}
	}

	for name, values := range c.header {
		request.Header[name] = append([]string(nil), values...)
	}
	request.Header.Set("Content-Type", w.ContentType())
	if request.Header.Get("Accept") == "" {
		request.Header.Set("Accept", batch.ContentTypeMultipartMixed)
	}

	writeErrs := make(chan error, 1)
	go func() {
		if err := build(w); err != nil {
			writer.CloseWithError(err)
			writeErrs <- err
			return
		}

		writeErrs <- w.Close()
	}()

	requestedAt := time.Now()
	response, err := c.Do(request)
	if err != nil {
		// unblock the writer if the transport gave up before draining the pipe
		reader.CloseWithError(err)
		if writeErr := <-writeErrs; writeErr != nil && !errors.Is(writeErr, err) && !errors.Is(err, writeErr) {
			err = errors.Join(writeErr, err)
		}

		return nil, &RequestError{
			URL:     c.batchURL,
			message: fmt.Sprintf("request to %s failed: %s", c.batchURL, err),
			err:     err,
		}
	}

	var writeErr error
	select {
	case writeErr = <-writeErrs:
	case <-ctx.Done():
		reader.CloseWithError(ctx.Err())
		writeErr = <-writeErrs
	}

	if writeErr != nil {
		response.Body.Close()
		return nil, writeErr
	}

	c.Debug().
		Str("url", c.batchURL).
		Int("status", response.StatusCode).
		Int("items", len(w.ExpectedItems())).
		Dur("latency", time.Since(requestedAt)).
		Msg("batch response received")

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		defer response.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))

		return nil, &RequestError{
			StatusCode: response.StatusCode,
			URL:        c.batchURL,
			message:    fmt.Sprintf("request to %s error server http error %d: %s", c.batchURL, response.StatusCode, body),
		}
	}

	demux, err := batch.NewResponseDemultiplexer(response, w.ExpectedItems(), c.ServiceLogger)
	if err != nil {
		response.Body.Close()
		return nil, err
	}

	return demux, nil
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
	err        error
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// Unwrap returns the transport error behind the failure, if any.
func (err *RequestError) Unwrap() error {
	return err.err
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message: message, URL: url, StatusCode: statusCode}
}
