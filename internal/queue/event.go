// Package queue carries the engine's outbound messages over RabbitMQ.
package queue

// NotificationMessage is published to the notification queue for every
// user-facing notification.  Delivery (push, mail) is handled by the
// consumer side.
type NotificationMessage struct {
	UserID    uint64         `json:"user_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// BadgeCheckMessage asks the badge engine to re-evaluate one konfi after
// a point change.
type BadgeCheckMessage struct {
	KonfiID     uint64 `json:"konfi_id"`
	RequestedAt string `json:"requested_at"`
}
