package middleware

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Reconciler ensures default-group membership for a user.
type Reconciler interface {
	ReconcileDefaultMembership(ctx context.Context, userID int) (int, error)
}

// SessionTracker remembers which sessions were already reconciled.
type SessionTracker interface {
	FirstSeen(ctx context.Context, userID int, sessionID string) (bool, error)
	Forget(ctx context.Context, userID int, sessionID string) error
}

// ReconcileMiddleware reconciles default-group membership on the first request of each
// session. Without a tracker every request reconciles. Failures are logged and retried
// on the next request; they never fail the request itself.
func ReconcileMiddleware(reconciler Reconciler, tracker SessionTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		first := true
		if tracker != nil {
			seen, err := tracker.FirstSeen(ctx, caller.UserID, caller.SessionID)
			if err != nil {
				slog.Warn("session tracker unavailable", "user_id", caller.UserID, "err", err)
			} else {
				first = seen
			}
		}

		if first {
			added, err := reconciler.ReconcileDefaultMembership(ctx, caller.UserID)
			switch {
			case err != nil:
				slog.Error("default group reconciliation failed", "user_id", caller.UserID, "err", err)
				if tracker != nil {
					if err := tracker.Forget(ctx, caller.UserID, caller.SessionID); err != nil {
						slog.Warn("session tracker forget failed", "user_id", caller.UserID, "err", err)
					}
				}
			case added > 0:
				slog.Info("joined default groups", "user_id", caller.UserID, "count", added)
			}
		}
		c.Next()
	}
}
