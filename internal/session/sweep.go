package session

import (
	"context"
	"time"
)

// StartCleanupWorker runs a background goroutine that periodically removes
// sessions older than maxAge. Age-based cleanup is the only way a session
// leaves the table; gameplay never deletes records.
func (c *Controller) StartCleanupWorker(ctx context.Context, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		c.logger.Info("Session cleanup worker started", "interval", interval, "max_age", maxAge)

		for {
			select {
			case <-ticker.C:
				c.cleanupExpired(ctx, maxAge)
			case <-ctx.Done():
				c.logger.Info("Session cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (c *Controller) cleanupExpired(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	var removed []string
	for id, sess := range c.sessions {
		if sess.SessionStart.Before(cutoff) {
			delete(c.sessions, id)
			removed = append(removed, id)
		}
	}
	c.mu.Unlock()

	c.completionMu.Lock()
	for _, id := range removed {
		delete(c.completing, id)
	}
	c.completionMu.Unlock()

	deleted, err := c.repo.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("Cleanup worker failed to delete old sessions", "error", err)
		return
	}
	if len(removed) > 0 || deleted > 0 {
		c.logger.Info("Session cleanup completed", "in_memory", len(removed), "stored", deleted)
	}
}
