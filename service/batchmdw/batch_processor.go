package batchmdw

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/clients/odata"
	"github.com/kava-labs/odata-batch-proxy/decode"
	"github.com/kava-labs/odata-batch-proxy/logging"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

// BatchExecutor sends a batch to the OData backend
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, build func(w *batch.Writer) error) (*batch.ResponseDemultiplexer, error)
}

// BatchProcessor combines the cached responses of a batch with the
// responses read from the backend for the remaining items
type BatchProcessor struct {
	executor           BatchExecutor
	items              []decode.BatchItemEnvelope
	cached             map[int]*cachemdw.QueryResponse
	whitelistedHeaders []string
	logger             *logging.ServiceLogger

	responses []BatchItemResponse
	// fresh holds the retrieve responses read from the backend, keyed by item index
	fresh map[int]*cachemdw.QueryResponse

	backendStatusCode int
	failedCount       int
}

func NewBatchProcessor(
	executor BatchExecutor,
	items []decode.BatchItemEnvelope,
	cached map[int]*cachemdw.QueryResponse,
	whitelistedHeaders []string,
	logger *logging.ServiceLogger,
) *BatchProcessor {
	if cached == nil {
		cached = make(map[int]*cachemdw.QueryResponse)
	}

	return &BatchProcessor{
		executor:           executor,
		items:              items,
		cached:             cached,
		whitelistedHeaders: whitelistedHeaders,
		logger:             logging.OrNop(logger),
		responses:          make([]BatchItemResponse, len(items)),
		fresh:              make(map[int]*cachemdw.QueryResponse),
	}
}

// Process fills in the response of every item, sending the items that
// weren't cached to the backend as one batch
func (bp *BatchProcessor) Process(ctx context.Context) error {
	pending := make([]int, 0, len(bp.items))
	for index, item := range bp.items {
		cachedResponse, ok := bp.cached[index]
		if !ok || !item.IsRetrieve() {
			pending = append(pending, index)
			continue
		}

		response := newSubResponse(cachedResponse.StatusCode, cachedResponse.Reason, "", cachedResponse.Header(), cachedResponse.Body)
		response.Cached = true
		bp.responses[index] = BatchItemResponse{Response: &response}
	}

	if len(pending) == 0 {
		bp.logger.Debug().Int("items", len(bp.items)).Msg("batch served from cache")
		return nil
	}

	demux, err := bp.executor.ExecuteBatch(ctx, func(w *batch.Writer) error {
		return bp.writeItems(w, pending)
	})
	if err != nil {
		var requestErr *odata.RequestError
		if errors.As(err, &requestErr) {
			bp.backendStatusCode = requestErr.StatusCode
		}
		return err
	}
	defer demux.Close()

	bp.backendStatusCode = demux.StatusCode()

	for _, index := range pending {
		item, err := demux.Next()
		if err != nil {
			return fmt.Errorf("reading response to item %d: %w", index, err)
		}

		if bp.items[index].IsRetrieve() {
			err = bp.readRetrieve(index, item)
		} else {
			err = bp.readChangeset(index, item)
		}
		if err != nil {
			return fmt.Errorf("reading response to item %d: %w", index, err)
		}
	}

	return demux.Close()
}

// Responses returns the item responses in request order
func (bp *BatchProcessor) Responses() []BatchItemResponse {
	return bp.responses
}

// FreshResponses returns the retrieve responses read from the backend, keyed by item index
func (bp *BatchProcessor) FreshResponses() map[int]*cachemdw.QueryResponse {
	return bp.fresh
}

// CacheHits returns the number of items served from the cache
func (bp *BatchProcessor) CacheHits() int {
	var hits int
	for _, response := range bp.responses {
		if response.Response != nil && response.Response.Cached {
			hits++
		}
	}
	return hits
}

// CacheStatus returns the value of the cache status header for the batch
func (bp *BatchProcessor) CacheStatus() string {
	return cacheHitValue(len(bp.items), bp.CacheHits())
}

// BackendStatusCode returns the status of the backend batch response, 0 if none was received
func (bp *BatchProcessor) BackendStatusCode() int {
	return bp.backendStatusCode
}

// FailedCount returns the number of sub-responses with a failure status
func (bp *BatchProcessor) FailedCount() int {
	return bp.failedCount
}

func (bp *BatchProcessor) writeItems(w *batch.Writer, pending []int) error {
	for _, index := range pending {
		item := bp.items[index]

		if item.IsRetrieve() {
			retrieve, err := w.OpenRetrieve()
			if err != nil {
				return err
			}
			if err := retrieve.SetRequest(item.Request.ToOperation()); err != nil {
				return fmt.Errorf("item %d: %w", index, err)
			}
			continue
		}

		changeset, err := w.OpenChangeset()
		if err != nil {
			return err
		}
		for _, operation := range item.Changeset {
			if _, err := changeset.AddRequest(operation.ToOperation()); err != nil {
				return fmt.Errorf("item %d: %w", index, err)
			}
		}
	}

	return nil
}

func (bp *BatchProcessor) readRetrieve(index int, item batch.ResponseItem) error {
	if item.Kind() != batch.KindRetrieve {
		return fmt.Errorf("%w: expected %s, found %s", batch.ErrUnexpectedItemKind, batch.KindRetrieve, item.Kind())
	}

	subResponse, err := item.Next()
	if err != nil {
		return err
	}

	body, err := io.ReadAll(subResponse.Body)
	if err != nil {
		return err
	}

	if subResponse.IsFailure() {
		bp.failedCount++
	}

	response := newSubResponse(subResponse.StatusCode, subResponse.Reason, "", subResponse.Header, body)
	bp.responses[index] = BatchItemResponse{Response: &response}
	bp.fresh[index] = cachemdw.NewQueryResponse(subResponse, body, bp.whitelistedHeaders)

	return nil
}

func (bp *BatchProcessor) readChangeset(index int, item batch.ResponseItem) error {
	responses := make([]SubResponse, 0, len(bp.items[index].Changeset))

	for item.HasNext() {
		subResponse, err := item.Next()
		if err != nil {
			return err
		}

		body, err := io.ReadAll(subResponse.Body)
		if err != nil {
			return err
		}

		if subResponse.IsFailure() {
			bp.failedCount++
		}

		responses = append(responses, newSubResponse(subResponse.StatusCode, subResponse.Reason, subResponse.ContentID, subResponse.Header, body))
	}

	itemResponse := BatchItemResponse{Changeset: responses}
	if changeset, ok := item.(*batch.ChangesetResult); ok {
		itemResponse.Aborted = changeset.Broken() && len(responses) < len(bp.items[index].Changeset)
	}
	bp.responses[index] = itemResponse

	bp.logger.Trace().
		Int("item", index).
		Int("responses", len(responses)).
		Bool("aborted", itemResponse.Aborted).
		Msg("changeset read")

	return nil
}

// cacheHitValue handles the combined response's cache status header
func cacheHitValue(totalNum, cacheHits int) string {
	// NOTE: middleware assumes non-zero batch length.
	// totalNum should never be 0. if it is, this will indicate a cache MISS.
	if cacheHits == 0 || totalNum == 0 {
		// case 1. no results from cache => MISS
		return cachemdw.CacheMissHeaderValue
	} else if cacheHits == totalNum {
		// case 2: all results from cache => HIT
		return cachemdw.CacheHitHeaderValue
	}
	//case 3: some results from cache => PARTIAL
	return cachemdw.CachePartialHeaderValue
}
