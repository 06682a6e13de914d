package ws

import (
	"fmt"

	"github.com/google/uuid"

	"messenger-service/internal/models"
)

const channelPrefix = "private-messenger"

// Channel names the private channel of a provider.
func Channel(ref models.ProviderRef) string {
	return fmt.Sprintf("%s.%s.%s", channelPrefix, ref.Type, ref.ID)
}

func newConnID() string {
	return uuid.NewString()
}
