package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestConfigStoreTopLevelFileBecomesSingleEntryResource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "configmaps", "app.conf"), []byte("key=value\n"))

	s := NewConfigStore(dir, time.Hour)
	defer s.Close()

	cms := s.ConfigMaps()
	if len(cms) != 1 {
		t.Fatalf("got %d configmaps, want 1", len(cms))
	}
	if cms[0].Name != "app.conf" {
		t.Errorf("got name %q, want app.conf", cms[0].Name)
	}
	if cms[0].Data["app.conf"] != "key=value\n" {
		t.Errorf("got data %+v", cms[0].Data)
	}
}

func TestConfigStoreSubdirectoryBecomesMultiEntryResource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "configmaps", "settings", "a.txt"), []byte("1"))
	writeFile(t, filepath.Join(dir, "configmaps", "settings", "b.txt"), []byte("2"))

	s := NewConfigStore(dir, time.Hour)
	defer s.Close()

	cm, ok := s.ConfigMap("settings")
	if !ok {
		t.Fatal("expected a configmap named settings")
	}
	if cm.Data["a.txt"] != "1" || cm.Data["b.txt"] != "2" {
		t.Errorf("got data %+v", cm.Data)
	}
}

func TestConfigStoreBinaryContentGoesToBinaryData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "configmaps", "blob.bin"), []byte{0x00, 0x01, 0x02, 0xff, 0xfe})

	s := NewConfigStore(dir, time.Hour)
	defer s.Close()

	cm, ok := s.ConfigMap("blob.bin")
	if !ok {
		t.Fatal("expected a configmap named blob.bin")
	}
	if _, isText := cm.Data["blob.bin"]; isText {
		t.Errorf("expected binary content to be excluded from Data")
	}
	if len(cm.BinaryData["blob.bin"]) == 0 {
		t.Errorf("expected binary content in BinaryData")
	}
}

func TestConfigStoreSecretsEncodeValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "secrets", "password"), []byte("hunter2"))

	s := NewConfigStore(dir, time.Hour)
	defer s.Close()

	sec, ok := s.Secret("password")
	if !ok {
		t.Fatal("expected a secret named password")
	}
	if string(sec.Data["password"]) != "hunter2" {
		t.Errorf("got data %+v", sec.Data)
	}
}

func TestConfigStoreMissingDirectoriesYieldNoResources(t *testing.T) {
	dir := t.TempDir()

	s := NewConfigStore(dir, time.Hour)
	defer s.Close()

	if len(s.ConfigMaps()) != 0 || len(s.Secrets()) != 0 {
		t.Errorf("expected no resources for an empty data dir")
	}
}
