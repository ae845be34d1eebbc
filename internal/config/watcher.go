// pattern: Imperative Shell

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CredentialsWatcher watches the credentials file and invokes a callback
// when the API key changes, so the event stream can reconnect with the
// fresh token instead of waiting for the old connection to die.
type CredentialsWatcher struct {
	path     string
	onChange func(key string)
	watcher  *fsnotify.Watcher
	lastKey  string
}

// NewCredentialsWatcher creates a watcher for the credentials file in the
// given config directory. onChange is called with the new key whenever the
// stored key actually changes (rewrites of the same value are ignored).
func NewCredentialsWatcher(dir string, onChange func(key string)) (*CredentialsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	key, _ := LoadAPIKey(dir)
	return &CredentialsWatcher{
		path:     CredentialsPath(dir),
		onChange: onChange,
		watcher:  watcher,
		lastKey:  key,
	}, nil
}

// Start begins watching. It returns when the context is cancelled.
func (w *CredentialsWatcher) Start(ctx context.Context) error {
	// Watch the parent directory; the file may not exist yet and editors
	// often replace it via rename.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	// Polling safeguard for filesystems without reliable notify support.
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.checkForChange()
			}

		case <-ticker.C:
			w.checkForChange()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			// Transient watch errors are not fatal; the poll ticker covers us.
		}
	}
}

// checkForChange re-reads the key and fires the callback on a real change.
func (w *CredentialsWatcher) checkForChange() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	key := strings.TrimSpace(string(data))
	if key == w.lastKey {
		return
	}
	w.lastKey = key
	w.onChange(key)
}

// Close stops the underlying watcher.
func (w *CredentialsWatcher) Close() error {
	return w.watcher.Close()
}
