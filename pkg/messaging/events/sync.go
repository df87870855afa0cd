package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/bazaar/pkg/messaging"
	"github.com/google/uuid"
)

// SyncFailedEvent is published when a queued cart or wishlist mutation is discarded.
type SyncFailedEvent struct {
	OperationID uuid.UUID `json:"operation_id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	Action      string    `json:"action"`
	ProductID   uuid.UUID `json:"product_id"`
	Reason      string    `json:"reason"`
	FailedAt    time.Time `json:"failed_at"`
}

func (e SyncFailedEvent) Subject() string {
	return messaging.SyncFailedSubject
}

func (e SyncFailedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// MessageID deduplicates republished failures of the same operation.
func (e SyncFailedEvent) MessageID() string {
	return e.OperationID.String()
}
