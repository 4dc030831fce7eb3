// Package watcher reloads the configuration file when it changes on disk.
// It watches the parent directory so atomic saves (write to a temp file,
// rename over the original) are still observed, debounces noisy editor
// events, and skips reloads when the file content hash is unchanged.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/util"
)

const reloadDebounce = 150 * time.Millisecond

// Watcher manages file watching for the configuration file.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu          sync.Mutex
	reloadTimer *time.Timer
	lastHash    string
	config      *config.Config
}

// NewWatcher creates a watcher for configPath. The callback receives every
// successfully reloaded configuration.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}, nil
}

// SetConfig records the currently active configuration so reloads can report
// what changed.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	w.config = cfg
	w.mu.Unlock()
}

// Start begins watching and returns immediately; events are processed until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watchDir := filepath.Dir(w.configPath)
	if errAdd := w.watcher.Add(watchDir); errAdd != nil {
		log.Errorf("failed to watch config directory %s: %v", watchDir, errAdd)
		return errAdd
	}
	log.Debugf("watching config file: %s", w.configPath)

	w.primeHash()
	go w.processEvents(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopReloadTimer()
	return w.watcher.Close()
}

// primeHash records the current file hash so a touch without a content
// change does not trigger the callback.
func (w *Watcher) primeHash() {
	data, errRead := os.ReadFile(w.configPath)
	if errRead != nil || len(data) == 0 {
		return
	}
	sum := sha256.Sum256(data)
	w.mu.Lock()
	w.lastHash = hex.EncodeToString(sum[:])
	w.mu.Unlock()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// The parent directory is watched, so filter to the config file itself.
	configOps := fsnotify.Write | fsnotify.Create | fsnotify.Rename
	if normalizePath(event.Name) != normalizePath(w.configPath) || event.Op&configOps == 0 {
		return
	}
	log.Debugf("config file event detected: %s %s", event.Op.String(), event.Name)
	w.scheduleReload()
}

func (w *Watcher) stopReloadTimer() {
	w.mu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(reloadDebounce, func() {
		w.mu.Lock()
		w.reloadTimer = nil
		w.mu.Unlock()
		w.reloadIfChanged()
	})
}

func (w *Watcher) reloadIfChanged() {
	data, errRead := os.ReadFile(w.configPath)
	if errRead != nil {
		log.Errorf("failed to read config file for hash check: %v", errRead)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	currentHash := w.lastHash
	w.mu.Unlock()

	if currentHash != "" && currentHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	if w.reload() {
		w.mu.Lock()
		w.lastHash = newHash
		w.mu.Unlock()
	}
}

func (w *Watcher) reload() bool {
	newConfig, errLoad := config.LoadConfig(w.configPath)
	if errLoad != nil {
		log.Errorf("failed to reload config: %v", errLoad)
		return false
	}
	if errValidate := newConfig.Validate(); errValidate != nil {
		log.Errorf("reloaded config is invalid, keeping previous: %v", errValidate)
		return false
	}

	w.mu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.mu.Unlock()

	util.SetLogLevel(newConfig)
	if oldConfig != nil && oldConfig.Debug != newConfig.Debug {
		log.Debugf("log level updated, debug mode changed from %t to %t", oldConfig.Debug, newConfig.Debug)
	}

	log.Infof("config successfully reloaded")
	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	return true
}

func normalizePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	cleaned := filepath.Clean(trimmed)
	if runtime.GOOS == "windows" {
		cleaned = strings.TrimPrefix(cleaned, `\\?\`)
		cleaned = strings.ToLower(cleaned)
	}
	return cleaned
}
