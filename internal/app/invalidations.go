package app

import (
	"context"
	"log/slog"
)

// InvalidationSource streams the view paths other processes invalidate.
type InvalidationSource interface {
	Subscribe(ctx context.Context, fn func(path string)) error
}

// InvalidationObserver records one invalidated path.
type InvalidationObserver interface {
	ObserveInvalidation(path string)
}

// WatchInvalidations records every invalidation published on the shared channel, including
// those from the worker, until ctx is done. It returns once the subscription is live.
func WatchInvalidations(ctx context.Context, src InvalidationSource, obs InvalidationObserver, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return src.Subscribe(ctx, func(path string) {
		logger.Debug("view invalidated", slog.String("path", path))
		if obs != nil {
			obs.ObserveInvalidation(path)
		}
	})
}
