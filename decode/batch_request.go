package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kava-labs/odata-batch-proxy/batch"
)

// Errors that might result from decoding parts or the whole of
// a gateway batch request
var (
	ErrEmptyBatch             = errors.New("batch request must contain at least one item")
	ErrInvalidBatchItem       = errors.New("batch item must contain exactly one of request or changeset")
	ErrInvalidRetrieveMethod  = errors.New("retrieve request method must be GET")
	ErrInvalidChangesetMethod = errors.New("changeset request method must not be GET")
	ErrEmptyChangeset         = errors.New("changeset must contain at least one request")
	ErrMissingURL             = errors.New("request url must not be empty")
	ErrMissingMethod          = errors.New("request method must not be empty")
)

// BatchRequestEnvelope is the JSON body accepted by the gateway's batch endpoint
type BatchRequestEnvelope struct {
	Items []BatchItemEnvelope `json:"items"`
}

// BatchItemEnvelope is one item of a batch: either a single GET request
// or a changeset of mutating requests
type BatchItemEnvelope struct {
	Request   *OperationEnvelope  `json:"request,omitempty"`
	Changeset []OperationEnvelope `json:"changeset,omitempty"`
}

// OperationEnvelope describes a single OData operation. URL is relative to
// the OData service root. Body is sent verbatim, except that a JSON string
// is unquoted first so non-JSON payloads can be carried.
type OperationEnvelope struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// DecodeBatchRequest attempts to decode and validate the provided bytes as a
// BatchRequestEnvelope, returning the decoded request and error (if any)
func DecodeBatchRequest(body []byte) (*BatchRequestEnvelope, error) {
	var request BatchRequestEnvelope
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, err
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	return &request, nil
}

// Validate checks the shape of every item of the batch
func (r *BatchRequestEnvelope) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyBatch
	}

	for index, item := range r.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", index, err)
		}
	}

	return nil
}

// RetrieveCount returns the number of retrieve items
func (r *BatchRequestEnvelope) RetrieveCount() int {
	var count int
	for _, item := range r.Items {
		if item.IsRetrieve() {
			count++
		}
	}
	return count
}

// ChangesetCount returns the number of changeset items
func (r *BatchRequestEnvelope) ChangesetCount() int {
	return len(r.Items) - r.RetrieveCount()
}

// OperationCount returns the number of operations across all items
func (r *BatchRequestEnvelope) OperationCount() int {
	var count int
	for _, item := range r.Items {
		if item.IsRetrieve() {
			count++
			continue
		}
		count += len(item.Changeset)
	}
	return count
}

// IsRetrieve reports whether the item is a single GET request
func (i *BatchItemEnvelope) IsRetrieve() bool {
	return i.Request != nil
}

// Validate checks that the item is either a retrieve or a changeset,
// with methods allowed for its kind
func (i *BatchItemEnvelope) Validate() error {
	if (i.Request == nil) == (i.Changeset == nil) {
		return ErrInvalidBatchItem
	}

	if i.Request != nil {
		if err := i.Request.Validate(); err != nil {
			return err
		}
		if i.Request.NormalizedMethod() != http.MethodGet {
			return fmt.Errorf("%w, got %s", ErrInvalidRetrieveMethod, i.Request.Method)
		}
		return nil
	}

	if len(i.Changeset) == 0 {
		return ErrEmptyChangeset
	}

	for index, operation := range i.Changeset {
		if err := operation.Validate(); err != nil {
			return fmt.Errorf("changeset request %d: %w", index, err)
		}
		if operation.NormalizedMethod() == http.MethodGet {
			return fmt.Errorf("changeset request %d: %w", index, ErrInvalidChangesetMethod)
		}
	}

	return nil
}

// NormalizedMethod returns the upper-cased, trimmed request method
func (o *OperationEnvelope) NormalizedMethod() string {
	return strings.ToUpper(strings.TrimSpace(o.Method))
}

// Validate checks the operation has a method and a url
func (o *OperationEnvelope) Validate() error {
	if o.NormalizedMethod() == "" {
		return ErrMissingMethod
	}
	if strings.TrimSpace(o.URL) == "" {
		return ErrMissingURL
	}
	return nil
}

// ToOperation converts the envelope into a batch operation.
// A JSON body without a Content-Type header is sent as application/json.
func (o *OperationEnvelope) ToOperation() *batch.Operation {
	header := make(http.Header, len(o.Headers))
	for name, value := range o.Headers {
		header.Set(name, value)
	}

	body, isJSON := o.bodyBytes()
	if len(body) > 0 && isJSON && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	return batch.NewOperation(o.NormalizedMethod(), strings.TrimSpace(o.URL), header, body)
}

func (o *OperationEnvelope) bodyBytes() ([]byte, bool) {
	raw := []byte(strings.TrimSpace(string(o.Body)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []byte(text), false
	}

	return raw, true
}
