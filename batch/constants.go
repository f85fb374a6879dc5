package batch

// Wire format constants
const (
	CRLF = "\r\n"

	// DashDash prefixes every boundary line and suffixes the close delimiter
	DashDash = "--"

	// HTTPVersion is written on every sub-request line
	HTTPVersion = "HTTP/1.1"

	HeaderContentType             = "Content-Type"
	HeaderContentTransferEncoding = "Content-Transfer-Encoding"
	HeaderContentID               = "Content-ID"
	HeaderContentLength           = "Content-Length"

	ContentTypeMultipartMixed  = "multipart/mixed"
	ContentTypeApplicationHTTP = "application/http"
	TransferEncodingBinary     = "binary"

	// BatchBoundaryPrefix and ChangesetBoundaryPrefix are followed by a random uuid
	BatchBoundaryPrefix     = "batch_"
	ChangesetBoundaryPrefix = "changeset_"

	// RetrieveSlotKey is the slot key used by items outside of a changeset
	RetrieveSlotKey = "__RETRIEVE__"
)

// ItemKind classifies a part of a batch body.
type ItemKind int

const (
	KindNone ItemKind = iota
	KindRetrieve
	KindChangeset
)

func (k ItemKind) String() string {
	switch k {
	case KindRetrieve:
		return "retrieve"
	case KindChangeset:
		return "changeset"
	default:
		return "none"
	}
}
