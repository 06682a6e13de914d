// Package push fans notifications out to the device-notifiable owners of a set of records.
package push

import (
	"context"

	"go.uber.org/zap"

	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/providers"
)

// Recipient is anything that resolves to a provider reference: providers,
// thread participants, call participants or bare references.
type Recipient interface {
	Owner() models.ProviderRef
}

// Event names the broadcast emitted to devices.
type Event interface {
	BroadcastAs() string
}

// Notification is the single emission produced by one Notify call.
type Notification struct {
	BroadcastAs string               `json:"broadcast_as"`
	Recipients  []models.ProviderRef `json:"recipients"`
	Data        any                  `json:"data"`
}

// Broadcaster delivers a notification to the downstream push subsystem.
type Broadcaster interface {
	Broadcast(ctx context.Context, n Notification) error
}

// Service filters and deduplicates candidates, then emits at most one notification.
type Service struct {
	directory   *providers.Directory
	broadcaster Broadcaster
	enabled     bool
}

func NewService(directory *providers.Directory, broadcaster Broadcaster, enabled bool) *Service {
	return &Service{directory: directory, broadcaster: broadcaster, enabled: enabled}
}

// Recipients normalizes candidates, drops those whose type is not registered or not
// device-notifiable, and deduplicates in order of first occurrence.
func (s *Service) Recipients(candidates ...Recipient) []models.ProviderRef {
	seen := make(map[models.ProviderRef]struct{}, len(candidates))
	recipients := make([]models.ProviderRef, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		ref := candidate.Owner()
		if ref.IsZero() || !s.directory.IsDeviceNotifiable(ref.Type) {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		recipients = append(recipients, ref)
	}
	return recipients
}

// Notify emits one notification for the eligible candidates. It reports whether
// anything was emitted. Delivery errors are logged and never returned.
func (s *Service) Notify(ctx context.Context, event Event, data any, candidates ...Recipient) bool {
	if s == nil || !s.enabled || s.broadcaster == nil {
		return false
	}

	recipients := s.Recipients(candidates...)
	if len(recipients) == 0 {
		return false
	}

	n := Notification{BroadcastAs: event.BroadcastAs(), Recipients: recipients, Data: data}
	if err := s.broadcaster.Broadcast(ctx, n); err != nil {
		logger.FromContext(ctx).Warn("push broadcast failed",
			zap.String("broadcast_as", n.BroadcastAs),
			zap.Int("recipients", len(recipients)),
			zap.Error(err))
		observability.IncPushFailure(n.BroadcastAs)
		return true
	}
	observability.IncPushSent(n.BroadcastAs, len(recipients))
	return true
}

// From adapts a typed slice of records into candidates.
func From[T Recipient](items []T) []Recipient {
	out := make([]Recipient, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
