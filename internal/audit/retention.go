package audit

import (
	"context"
	"log"
	"time"
)

// Pruner deletes audit events older than a cutoff.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunRetention deletes events older than retention once immediately and
// then every interval, until ctx is cancelled.
func RunRetention(ctx context.Context, store Pruner, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		prune(ctx, store, time.Now().Add(-retention))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func prune(ctx context.Context, store Pruner, cutoff time.Time) {
	n, err := store.DeleteBefore(ctx, cutoff)
	if err != nil {
		log.Printf("audit: retention failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("audit: pruned %d events older than %s", n, cutoff.Format(time.RFC3339))
	}
}
