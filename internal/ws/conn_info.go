package ws

import (
	"time"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// ConnInfo identifies one websocket connection of a provider.
type ConnInfo struct {
	ConnID      string
	Owner       models.ProviderRef
	Client      observability.Client
	TraceID     string
	ConnectedAt time.Time
}

// LifecycleEvent is published when a provider connects, disconnects or fails.
type LifecycleEvent struct {
	Channel    string             `json:"channel"`
	ConnID     string             `json:"conn_id"`
	Owner      models.ProviderRef `json:"owner"`
	DeviceID   string             `json:"device_id,omitempty"`
	IP         string             `json:"ip,omitempty"`
	UserAgent  string             `json:"user_agent,omitempty"`
	DurationMS int64              `json:"duration_ms"`
	Reason     string             `json:"reason,omitempty"`
}

func (i ConnInfo) lifecycle(reason string) LifecycleEvent {
	return LifecycleEvent{
		Channel:    Channel(i.Owner),
		ConnID:     i.ConnID,
		Owner:      i.Owner,
		DeviceID:   i.Client.DeviceID,
		IP:         i.Client.IP,
		UserAgent:  i.Client.UserAgent,
		DurationMS: time.Since(i.ConnectedAt).Milliseconds(),
		Reason:     reason,
	}
}
