package ws

import (
	"time"

	"collab-service/internal/observability"
)

// ConnInfo describes one socket for lifecycle events. Kind is group, chat or notifications.
type ConnInfo struct {
	ConnID      string
	Kind        string
	UserID      int
	ResourceID  int
	Client      observability.ClientInfo
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) uptime() time.Duration {
	if i.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(i.ConnectedAt)
}
