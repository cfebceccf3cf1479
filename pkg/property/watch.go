package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// DefaultWatchDebounce is how long Watch waits for events to settle.
const DefaultWatchDebounce = 250 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WithDebounce sets how long Watch waits after the last event before calling back.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithWatchLogger sets a custom logger. Nil is ignored.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Watch calls onChange after the file at path is written, created, replaced
// or removed, at most once per burst of events. It blocks until ctx is done.
//
// Source does not need Watch to see changes. Watch exists for callers that
// cache in front of it, typically to purge a feature.CachingSource:
//
//	go property.Watch(ctx, path, cache.Purge)
func Watch(ctx context.Context, path string, onChange func(), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultWatchDebounce, logger: logger.Noop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create properties watcher: %w", err)
	}
	defer w.Close()

	// Atomic rewrites replace the file, so the directory is watched instead.
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %q: %w", filepath.Dir(path), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op == fsnotify.Chmod {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cfg.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				cfg.logger.DebugContext(ctx, "properties file changed", logger.Path(path))
				onChange()
			})
			mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				onChange()
				continue
			}
			cfg.logger.ErrorContext(ctx, "properties watcher failed", logger.Path(path), logger.Error(err))
		}
	}
}
