package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the reloader waits after the last write.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the config file and swaps telemetry sinks on change.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	paths   []string
	done    func(error)
}

// NewReloader creates a file watcher for the given paths. Missing files are
// skipped.
func NewReloader(server *Server, paths []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Reloader{
		watcher: watcher,
		server:  server,
		paths:   watched,
	}, nil
}

// Watched returns the paths actually being watched.
func (r *Reloader) Watched() []string {
	return r.paths
}

// OnReload registers a callback run after every reload attempt.
func (r *Reloader) OnReload(fn func(error)) {
	r.done = fn
}

// Run watches for file changes and reloads telemetry. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()
	warn := r.server.cfg.Warn

	// Debounce: wait after last write before reloading
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					err := r.server.ReloadTelemetry()
					if err != nil {
						fmt.Fprintf(warn, "hot-reload failed: %v\n", err)
					} else {
						fmt.Fprintf(warn, "hot-reload: telemetry sinks reloaded\n")
					}
					if r.done != nil {
						r.done(err)
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(warn, "file watcher error: %v\n", err)
		}
	}
}
