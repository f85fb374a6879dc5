// Package batch implements the OData batch protocol: packing retrieve
// requests and atomic changesets into one multipart/mixed request body,
// and unpacking the matching multipart response into per-operation results.
//
// # Writing
//
// A Writer owns the request body sink. Items are opened one at a time and
// opening an item closes the previous one:
//
//	w := batch.NewWriter(sink, logger)
//
//	retrieve, _ := w.OpenRetrieve()
//	_ = retrieve.SetRequest(batch.NewOperation(http.MethodGet, "Products(1)", nil, nil))
//
//	changeset, _ := w.OpenChangeset()
//	id, _ := changeset.AddRequest(batch.NewOperation(http.MethodPost, "Products", header, body))
//
//	_ = w.Close()
//
// The request must be sent with w.ContentType() as its Content-Type.
//
// # Reading
//
// w.ExpectedItems() records what was written. A ResponseDemultiplexer
// replays that list against the response stream and yields one
// ResponseItem per written item, in order:
//
//	demux, err := batch.NewResponseDemultiplexer(resp, w.ExpectedItems(), logger)
//	defer demux.Close()
//
//	for demux.HasNext() {
//	    item, err := demux.Next()
//	    ...
//	    for item.HasNext() {
//	        sub, err := item.Next()
//	        ...
//	    }
//	}
//
// All items share one LineCursor over the response body and must be
// consumed in order. Calling demux.Next releases the previous item.
//
// A changeset whose sub-response fails with a status of 400 or more stops
// yielding results: the server may abort the rest of the changeset.
package batch
