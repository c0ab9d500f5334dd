package inject

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeDockerOnPath writes a throwaway "docker" script that exits with the
// given code for any "run" invocation and prepends its directory to PATH,
// restoring the original PATH on test cleanup.
func fakeDockerOnPath(t *testing.T, exitCode int) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake docker script is POSIX-shell only")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "docker")
	content := "#!/bin/sh\nexit " + itoaProbe(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("failed to write fake docker script: %v", err)
	}

	original := os.Getenv("PATH")
	os.Setenv("PATH", dir+string(os.PathListSeparator)+original)
	t.Cleanup(func() { os.Setenv("PATH", original) })
}

func itoaProbe(n int) string {
	if n == 0 {
		return "0"
	}
	return "1"
}

func TestProbeSocketsReturnsFirstPassingCandidate(t *testing.T) {
	fakeDockerOnPath(t, 0)

	result := ProbeSockets(context.Background(), []string{"/var/run/docker.sock", "/run/docker.sock"})
	if !result.Available {
		t.Fatal("expected probe to pass with a stub docker that exits 0")
	}
	if result.SocketPath != "/var/run/docker.sock" {
		t.Errorf("expected first candidate to win, got %s", result.SocketPath)
	}
}

func TestProbeSocketsDisablesBridgeWhenAllCandidatesFail(t *testing.T) {
	fakeDockerOnPath(t, 1)

	result := ProbeSockets(context.Background(), []string{"/var/run/docker.sock"})
	if result.Available {
		t.Fatal("expected probe to fail when docker exits non-zero")
	}
}

func TestProbeSocketsDisablesBridgeWhenDockerBinaryMissing(t *testing.T) {
	original := os.Getenv("PATH")
	os.Setenv("PATH", t.TempDir())
	t.Cleanup(func() { os.Setenv("PATH", original) })

	result := ProbeSockets(context.Background(), []string{"/var/run/docker.sock"})
	if result.Available {
		t.Fatal("expected probe to fail when docker binary is absent")
	}
}
