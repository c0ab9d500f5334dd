// Package store implements the ConfigMap/Secret Loader (C3, spec.md §4.3)
// and the Lease Store (C4, spec.md §4.4).
package store

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
)

// ConfigStore scans a data directory's configmaps/ and secrets/
// subdirectories and serves the result as real corev1 objects, refreshed on
// an fsnotify watch with a staleness-window fallback — the same caching
// idiom pkg/compose.Loader uses for the compose file.
type ConfigStore struct {
	dataDir string

	mu          sync.RWMutex
	configMaps  []corev1.ConfigMap
	secrets     []corev1.Secret
	lastScanned time.Time

	staleness time.Duration
	watcher   *fsnotify.Watcher
}

// NewConfigStore scans dataDir once synchronously and starts a background
// watch over its configmaps/ and secrets/ subdirectories, matching
// pkg/compose.NewLoader's "scan now, watch in the background" shape.
func NewConfigStore(dataDir string, staleness time.Duration) *ConfigStore {
	s := &ConfigStore{dataDir: dataDir, staleness: staleness}
	s.rescan()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		klog.Warningf("store: fsnotify unavailable, falling back to staleness window: %v", err)
		return s
	}
	for _, sub := range []string{"configmaps", "secrets"} {
		dir := filepath.Join(dataDir, sub)
		if err := watcher.Add(dir); err != nil {
			klog.V(2).Infof("store: not watching %s: %v", dir, err)
		}
	}
	s.watcher = watcher
	go s.watchLoop()
	return s
}

func (s *ConfigStore) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(50*time.Millisecond, s.rescan)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			klog.Warningf("store: watch error: %v", err)
		}
	}
}

func (s *ConfigStore) rescan() {
	configMaps := scanDir(filepath.Join(s.dataDir, "configmaps"), toConfigMap)
	secrets := scanDir(filepath.Join(s.dataDir, "secrets"), toSecret)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configMaps = configMaps
	s.secrets = secrets
	s.lastScanned = time.Now()
}

func (s *ConfigStore) maybeRescan() {
	if s.watcher != nil {
		return
	}
	s.mu.RLock()
	stale := time.Since(s.lastScanned) > s.staleness
	s.mu.RUnlock()
	if stale {
		s.rescan()
	}
}

// ConfigMaps returns every scanned configmaps/ entry, in sorted name order.
func (s *ConfigStore) ConfigMaps() []corev1.ConfigMap {
	s.maybeRescan()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]corev1.ConfigMap, len(s.configMaps))
	copy(out, s.configMaps)
	return out
}

// Secrets returns every scanned secrets/ entry, in sorted name order.
func (s *ConfigStore) Secrets() []corev1.Secret {
	s.maybeRescan()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]corev1.Secret, len(s.secrets))
	copy(out, s.secrets)
	return out
}

// ConfigMap returns the scanned configmap with the given name, if any.
func (s *ConfigStore) ConfigMap(name string) (corev1.ConfigMap, bool) {
	for _, cm := range s.ConfigMaps() {
		if cm.Name == name {
			return cm, true
		}
	}
	return corev1.ConfigMap{}, false
}

// Secret returns the scanned secret with the given name, if any.
func (s *ConfigStore) Secret(name string) (corev1.Secret, bool) {
	for _, sec := range s.Secrets() {
		if sec.Name == name {
			return sec, true
		}
	}
	return corev1.Secret{}, false
}

// Close releases the watcher.
func (s *ConfigStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// entry is one top-level file or subdirectory under configmaps/ or secrets/,
// read into a name→bytes data map before being shaped into a corev1 object
// (spec.md §4.3: "a file at the top level becomes a resource whose single
// data entry keys on the file name; a subdirectory becomes a resource with
// one data entry per contained file").
type entry struct {
	name string
	data map[string][]byte
}

func scanDir[T any](dir string, shape func(entry) T) []T {
	infos, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	entries := make([]entry, 0, len(infos))
	for _, info := range infos {
		full := filepath.Join(dir, info.Name())
		if info.IsDir() {
			e := entry{name: info.Name(), data: map[string][]byte{}}
			children, err := os.ReadDir(full)
			if err != nil {
				klog.Warningf("store: failed to read %s: %v", full, err)
				continue
			}
			for _, child := range children {
				if child.IsDir() {
					continue
				}
				content, err := os.ReadFile(filepath.Join(full, child.Name()))
				if err != nil {
					klog.Warningf("store: failed to read %s: %v", full, err)
					continue
				}
				e.data[child.Name()] = content
			}
			entries = append(entries, e)
			continue
		}
		content, err := os.ReadFile(full)
		if err != nil {
			klog.Warningf("store: failed to read %s: %v", full, err)
			continue
		}
		entries = append(entries, entry{name: info.Name(), data: map[string][]byte{info.Name(): content}})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		out = append(out, shape(e))
	}
	return out
}

// toConfigMap splits an entry's files between text (data) and binary
// (binaryData) using net/http's MIME sniffer — the same
// "detect once, route on the result" idiom stdlib already centralises, and
// nothing in the retrieved pack does content-sniffing more idiomatically for
// this narrow a need.
func toConfigMap(e entry) corev1.ConfigMap {
	cm := corev1.ConfigMap{
		TypeMeta:   metav1.TypeMeta{Kind: "ConfigMap", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: e.name},
		Data:       map[string]string{},
		BinaryData: map[string][]byte{},
	}
	names := sortedKeys(e.data)
	for _, key := range names {
		content := e.data[key]
		if isBinary(content) {
			cm.BinaryData[key] = content
		} else {
			cm.Data[key] = string(content)
		}
	}
	if len(cm.BinaryData) == 0 {
		cm.BinaryData = nil
	}
	return cm
}

// toSecret base64-encodes every file's content into Data, per spec.md §4.3
// ("secrets always base64-encode their values") — corev1.Secret.Data is
// already typed []byte with a base64 json encoding, so plain assignment is
// the correct wire behavior; no separate encoding step is needed beyond
// what the struct's marshaler already does.
func toSecret(e entry) corev1.Secret {
	sec := corev1.Secret{
		TypeMeta:   metav1.TypeMeta{Kind: "Secret", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: e.name},
		Type:       corev1.SecretTypeOpaque,
		Data:       map[string][]byte{},
	}
	for key, content := range e.data {
		sec.Data[key] = content
	}
	return sec
}

// isBinary reports whether content's sniffed MIME type is not a kind text
// data usually arrives as.
func isBinary(content []byte) bool {
	ct := http.DetectContentType(content)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return false
	case strings.HasPrefix(ct, "application/json"), strings.HasPrefix(ct, "application/xml"):
		return false
	default:
		return true
	}
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
