package domain

// RejectReason says why a signed request was refused. It is logged and
// counted but never returned to the caller.
type RejectReason string

const (
	RejectMissingHeaders     RejectReason = "missing_headers"
	RejectMalformedTimestamp RejectReason = "malformed_timestamp"
	RejectUnknownKey         RejectReason = "unknown_key"
	RejectBadSignature       RejectReason = "bad_signature"
	RejectStaleTimestamp     RejectReason = "stale_timestamp"
	RejectReplayedTimestamp  RejectReason = "replayed_timestamp"
)

// SignedRequest is the ephemeral authentication material of one API call.
type SignedRequest struct {
	APIKey    string
	Timestamp string // Unix seconds as sent on the wire
	Body      []byte
	Signature string
}
