package inject

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const planTestCompose = `
name: shop
services:
  app:
    image: x
`

func TestRunProducesOverrideBundleAndKubeconfig(t *testing.T) {
	dir := t.TempDir()
	composePath := filepath.Join(dir, "compose.yml")
	if err := os.WriteFile(composePath, []byte(planTestCompose), 0o644); err != nil {
		t.Fatalf("failed to write compose file: %v", err)
	}

	result, err := Run(context.Background(), Options{
		ComposePath:    composePath,
		ExtraSANs:      []string{"kube.example"},
		ExposeHostPort: "16443",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := os.Stat(result.OverridePath); err != nil {
		t.Errorf("expected override file to exist: %v", err)
	}
	if _, err := os.Stat(result.KubeconfigPath); err != nil {
		t.Errorf("expected kubeconfig to exist: %v", err)
	}
	for _, name := range []string{"ca.crt", "tls.crt", "tls.key", "token", "namespace"} {
		if _, err := os.Stat(filepath.Join(result.BundleDir, name)); err != nil {
			t.Errorf("expected bundle file %s to exist: %v", name, err)
		}
	}

	kubeconfig, err := os.ReadFile(result.KubeconfigPath)
	if err != nil {
		t.Fatalf("failed to read kubeconfig: %v", err)
	}
	if !strings.Contains(string(kubeconfig), "kube.example:16443") {
		t.Errorf("expected kubeconfig to reference kube.example:16443, got:\n%s", kubeconfig)
	}
}

func TestRunWithoutHostExposureSkipsKubeconfig(t *testing.T) {
	dir := t.TempDir()
	composePath := filepath.Join(dir, "compose.yml")
	if err := os.WriteFile(composePath, []byte(planTestCompose), 0o644); err != nil {
		t.Fatalf("failed to write compose file: %v", err)
	}

	result, err := Run(context.Background(), Options{ComposePath: composePath})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.KubeconfigPath != "" {
		t.Errorf("expected no kubeconfig without host exposure, got %s", result.KubeconfigPath)
	}
}
