package store

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper launches a background loop that removes expired
// sessions every interval until ctx is cancelled.
func StartSweeper(ctx context.Context, repo Repository, ttl, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			deleted, err := repo.DeleteExpiredSessions(ctx, ttl)
			if err != nil {
				slog.Error("Session sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("Expired sessions removed", "count", deleted, "ttl", ttl)
			}
		}
	}()
}
