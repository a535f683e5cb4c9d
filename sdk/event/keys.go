package event

// EventDataKey defines standard keys used in event data
type EventDataKey string

const (
	// Common data keys
	KeyError   EventDataKey = "error"
	KeyKind    EventDataKey = "kind"
	KeyOp      EventDataKey = "op"
	KeyReason  EventDataKey = "reason"
	KeyMessage EventDataKey = "message"

	// State machine keys
	KeyFrom  EventDataKey = "from"
	KeyTo    EventDataKey = "to"
	KeyState EventDataKey = "state"

	// Content keys
	KeyIdentifier EventDataKey = "identifier"
	KeyBlobID     EventDataKey = "blob_id"
	KeyCID        EventDataKey = "cid"
	KeyBytesTotal EventDataKey = "bytes_total"
	KeySlivers    EventDataKey = "slivers"

	// Ledger keys
	KeyTxKind         EventDataKey = "tx_kind"
	KeyRegisterDigest EventDataKey = "register_digest"
	KeyCertifyDigest  EventDataKey = "certify_digest"
	KeyResultIDs      EventDataKey = "result_ids"

	// Upload keys
	KeyAttempt        EventDataKey = "attempt"
	KeyElapsedSeconds EventDataKey = "elapsed_seconds"
	KeyUpload         EventDataKey = "upload"
)
