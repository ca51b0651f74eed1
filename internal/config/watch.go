package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
)

// ReloadCallback receives the freshly loaded Config after a debounced
// file-change event. A non-nil error means the reload failed and cfg
// is nil; the previous Config remains in effect.
type ReloadCallback func(cfg *Config, err error)

// Watcher hot-reloads a config file's adapter table and
// deliberation/decision-graph sections on change. Editor write
// patterns (rename-over, truncate-then-write) produce bursts of
// events, so reloads are debounced.
type Watcher struct {
	cfgFile     string
	projectRoot string
	debounce    time.Duration
	onReload    ReloadCallback

	watcher *fsnotify.Watcher
	timerMu sync.Mutex
	timer   *time.Timer
	stopCh  chan struct{}
}

// NewWatcher creates a Watcher for cfgFile. debounce defaults to
// 500ms when zero, matching the pattern library's hot-reloader.
func NewWatcher(cfgFile, projectRoot string, debounce time.Duration, onReload ReloadCallback) (*Watcher, error) {
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Validation("creating config file watcher: %v", err)
	}
	return &Watcher{
		cfgFile:     cfgFile,
		projectRoot: projectRoot,
		debounce:    debounce,
		onReload:    onReload,
		watcher:     fw,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start begins watching cfgFile's directory (fsnotify watches
// directories, not individual files, to survive editor
// rename-and-replace saves) and returns once the watch loop is
// running.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.cfgFile)
	if err := w.watcher.Add(dir); err != nil {
		return errs.Validation("watching config directory %q: %v", dir, err)
	}
	go w.loop()
	return nil
}

// Stop ends the watch loop and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.cfgFile)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || isTempFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		cfg, err := Load(w.cfgFile, w.projectRoot)
		if err != nil {
			log.Warn("config reload failed, keeping previous config", zap.Error(err))
		} else {
			log.Info("config reloaded", zap.String("file", w.cfgFile))
		}
		w.onReload(cfg, err)
	})
}

// isTempFile filters out editor swap/backup files that aren't the
// real config, for callers that watch a directory rather than one
// named file.
func isTempFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".") || strings.Contains(base, ".tmp")
}
