package compose

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// Loader serves the latest parsed Snapshot of a compose file, refreshing on
// fsnotify events with a short debounce so a reader never observes a
// half-written file (spec §3 "reflects the file at response time within
// seconds", §5 "compose file ... read-only to the façade").
type Loader struct {
	path string

	mu       sync.RWMutex
	snapshot Snapshot
	parseErr error

	staleness time.Duration
	lastLoad  time.Time

	watcher *fsnotify.Watcher
}

// NewLoader reads path once synchronously and starts a background watch.
// If the watch cannot be established (e.g. unsupported filesystem) the
// loader falls back to re-reading on every Snapshot call older than
// staleness.
func NewLoader(path string, staleness time.Duration) (*Loader, error) {
	l := &Loader{path: path, staleness: staleness}
	l.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		klog.Warningf("compose: fsnotify unavailable, falling back to staleness window: %v", err)
		return l, nil
	}
	if err := watcher.Add(path); err != nil {
		klog.Warningf("compose: failed to watch %s, falling back to staleness window: %v", path, err)
		watcher.Close()
		return l, nil
	}
	l.watcher = watcher
	go l.watchLoop()
	return l, nil
}

func (l *Loader) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(50*time.Millisecond, l.reload)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			klog.Warningf("compose: watch error: %v", err)
		}
	}
}

func (l *Loader) reload() {
	content, err := os.ReadFile(l.path)
	if err != nil {
		l.mu.Lock()
		l.parseErr = err
		l.lastLoad = time.Now()
		l.mu.Unlock()
		return
	}
	snap, err := Parse(content, l.path)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastLoad = time.Now()
	if err != nil {
		l.parseErr = err
		return
	}
	l.snapshot = snap
	l.parseErr = nil
}

// Snapshot returns the most recently loaded snapshot, re-reading the file
// first if the watcher is not active and the last load exceeded the
// staleness window, and the last parse error if the compose file is
// currently unparsable (§4.1: "all subsequent requests return 500").
func (l *Loader) Snapshot(_ context.Context) (Snapshot, error) {
	if l.watcher == nil {
		l.mu.RLock()
		stale := time.Since(l.lastLoad) > l.staleness
		l.mu.RUnlock()
		if stale {
			l.reload()
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot, l.parseErr
}

// Close releases the watcher.
func (l *Loader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
