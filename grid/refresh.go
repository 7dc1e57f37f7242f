package grid

import (
	"context"
	"fmt"
	"log"
	"time"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// Refresh re-fetches the canonical list. The manual refresh button and
// the auto-refresh timer share this path; concurrent callers are
// collapsed onto one in-flight fetch. While a row is mid-edit the whole
// cycle is skipped so a refresh can never clobber an open draft.
// The returned bool reports whether a refresh actually ran.
func (g *Engine) Refresh(ctx context.Context) (bool, error) {
	g.mu.Lock()
	if g.editing != "" {
		g.mu.Unlock()
		return false, nil
	}
	g.mu.Unlock()

	result, err, _ := g.sf.Do("events", func() (any, error) {
		return g.cfg.Fetcher.FetchEvents(ctx, g.cfg.FetchLimit)
	})
	if err != nil {
		return false, fmt.Errorf("failed to refresh events: %w", err)
	}
	events := result.([]domain.Event)

	g.mu.Lock()
	defer g.mu.Unlock()
	// An edit may have started while the fetch was in flight; a stale
	// response must not revert newer local state.
	if g.editing != "" {
		return false, nil
	}
	g.mergeEventsLocked(events)
	return true, nil
}

// StartAutoRefresh begins periodic refreshes. Interval must be one of
// AutoRefreshIntervals; zero stops the timer.
func (g *Engine) StartAutoRefresh(interval time.Duration) error {
	allowed := false
	for _, opt := range AutoRefreshIntervals {
		if interval == opt {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("unsupported auto-refresh interval %s", interval)
	}

	g.StopAutoRefresh()
	if interval == 0 {
		return nil
	}

	stop := make(chan struct{})
	g.mu.Lock()
	g.refreshStop = stop
	g.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := g.Refresh(context.Background()); err != nil {
					log.Printf("[grid] auto-refresh failed: %v", err)
				}
			}
		}
	}()
	return nil
}

// StopAutoRefresh stops the periodic refresh timer.
func (g *Engine) StopAutoRefresh() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refreshStop != nil {
		close(g.refreshStop)
		g.refreshStop = nil
	}
}
