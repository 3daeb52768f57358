package domain

// Envelope is the JSON message exchanged over the broker.
type Envelope struct {
	EventType  string          `json:"event_type"`
	EventID    string          `json:"event_id"`
	OccurredAt string          `json:"occurred_at"` // RFC 3339, UTC
	Payload    EnvelopePayload `json:"payload"`
}

// EnvelopePayload is empty for unhandled kinds, identity-only for
// UserActivated and carries Code for the code-bearing kinds.
type EnvelopePayload struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Code   string `json:"code,omitempty"`
}
