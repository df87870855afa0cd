// Package messaging defines the events the storefront publishes and the publisher contract.
package messaging

import "context"

// SyncFailedSubject carries operations the sync queue gave up on.
const SyncFailedSubject = "storefront.sync.failed"

// Event is a message with its own subject and encoding.
type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MessageID returns the deduplication id of event, or "" when it has none.
func MessageID(event Event) string {
	if e, ok := event.(interface{ MessageID() string }); ok {
		return e.MessageID()
	}
	return ""
}
