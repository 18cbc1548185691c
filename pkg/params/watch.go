package params

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch delivers the [params] table of path each time the file is written
// or replaced, until ctx is done. The directory is watched so editors that
// save by rename are seen. Only the newest unread Values is kept; files
// that fail to parse are logged and skipped.
func Watch(ctx context.Context, path string, logger *zap.Logger) (<-chan Values, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch params: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch params: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch params: %w", err)
	}

	out := make(chan Values, 1)
	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				v, err := ReadFile(abs)
				if err != nil {
					logger.Warn("ignoring params reload", zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Debug("params reloaded", zap.String("path", abs))
				// Replace any unread value with the newer one.
				select {
				case <-out:
				default:
				}
				out <- v
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("params watcher", zap.Error(err))
			}
		}
	}()
	return out, nil
}
