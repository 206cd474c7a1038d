package gmail

import "time"

// Message holds the essential information extracted from a Gmail message.
// Once fetched it is never mutated; callers re-fetch if staleness matters.
type Message struct {
	ID           string
	ThreadID     string
	From         string
	To           string
	Cc           string
	Date         time.Time
	Subject      string
	Snippet      string
	Body         string // Full plain text body
	InternalDate int64  // Epoch milliseconds when the message was sent; 0 if unknown
}
