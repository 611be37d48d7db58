package host

import (
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"
)

const settingsDebounce = 200 * time.Millisecond

// SettingsWatcher watches the settings documents and reports writes as
// configuration changes. Directories are watched rather than the files
// themselves so documents that do not exist yet are picked up when
// created, and editor save strategies that rename over the file keep
// working. Rapid write bursts are debounced per path.
type SettingsWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	logger   *slog.Logger

	files map[string]bool // absolute settings paths we care about

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	done chan struct{}
}

// NewSettingsWatcher watches the given settings document paths and calls
// onChange (debounced) when one changes.
func NewSettingsWatcher(paths []string, onChange func(path string), logger *slog.Logger) (*SettingsWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &SettingsWatcher{
		watcher:  fsw,
		onChange: onChange,
		logger:   logger,
		files:    make(map[string]bool, len(paths)),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("watching settings dir failed", "dir", dir, "error", err)
		}
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher and cancels pending debounce timers.
func (w *SettingsWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *SettingsWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}

func (w *SettingsWatcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(settingsDebounce)
		return
	}
	w.pending[path] = time.AfterFunc(settingsDebounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		w.logger.Debug("settings document changed", "path", path)
		w.onChange(path)
	})
}
