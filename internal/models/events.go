package models

// ThreadEvent is pushed over websocket connections on a provider's private channel.
type ThreadEvent struct {
	Event    string `json:"event"`
	ThreadID string `json:"thread_id"`
	Data     any    `json:"data,omitempty"`
}
