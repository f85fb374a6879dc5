package batchmdw

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// BatchResponse is the JSON body returned for a processed batch.
// Items are in the order of the request items.
type BatchResponse struct {
	Items []BatchItemResponse `json:"items"`
}

// BatchItemResponse holds the result of one batch item: Response for a
// retrieve, Changeset for a changeset
type BatchItemResponse struct {
	Response  *SubResponse  `json:"response,omitempty"`
	Changeset []SubResponse `json:"changeset,omitempty"`
	// Aborted is set when the backend stopped processing the changeset after a failed request
	Aborted bool `json:"aborted,omitempty"`
}

// SubResponse is the JSON form of the response to a single operation
type SubResponse struct {
	StatusCode int               `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	ContentID  string            `json:"content_id,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	// Body is embedded as is when it is JSON, otherwise as a JSON string
	Body   json.RawMessage `json:"body,omitempty"`
	Cached bool            `json:"cached,omitempty"`
}

// ErrorResponse is the JSON body returned when a batch can't be processed
type ErrorResponse struct {
	Error string `json:"error"`
}

// newSubResponse builds the JSON form of a sub-response whose body has been read
func newSubResponse(statusCode int, reason string, contentID string, header http.Header, body []byte) SubResponse {
	headers := make(map[string]string, len(header))
	for name := range header {
		headers[http.CanonicalHeaderKey(name)] = strings.Join(header[name], ", ")
	}

	return SubResponse{
		StatusCode: statusCode,
		Reason:     reason,
		ContentID:  contentID,
		Headers:    headers,
		Body:       encodeBody(header.Get("Content-Type"), body),
	}
}

// encodeBody returns body as raw JSON when the content type says it is JSON
// and it parses as such, and as a JSON string otherwise
func encodeBody(contentType string, body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	if isJSONContentType(contentType) && json.Valid(body) {
		return json.RawMessage(body)
	}

	// keep markup such as atom feeds readable
	encoded := new(bytes.Buffer)
	encoder := json.NewEncoder(encoded)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(string(body)); err != nil {
		return nil
	}

	return json.RawMessage(bytes.TrimRight(encoded.Bytes(), "\n"))
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// WriteJSONResponse marshals obj into the response body with the given status
func WriteJSONResponse(w http.ResponseWriter, status int, obj interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	return encoder.Encode(obj)
}
