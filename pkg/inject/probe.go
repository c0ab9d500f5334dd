package inject

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultSocketCandidates are the container-runtime socket paths probed in
// order (spec.md §4.8 phase 4): the default Docker socket followed by
// platform variants (Docker Desktop's user-scoped socket, rootless
// Podman's XDG-runtime socket).
var DefaultSocketCandidates = []string{
	"/var/run/docker.sock",
	"/run/docker.sock",
	"/run/user/1000/docker.sock",
	"/run/podman/podman.sock",
}

const probeTimeout = 5 * time.Second
const probeInterval = time.Second
const probeImage = "busybox"

// ProbeResult names the socket that passed the trial mount, if any.
type ProbeResult struct {
	SocketPath string
	Available  bool
}

// ProbeSockets tries each candidate in turn and returns the first that
// passes an actual trial mount (spec.md §4.8 phase 4: "a probe is passing
// only when the container starts and reports the socket node"). It never
// returns an error; an unprobeable host simply yields Available: false, so
// the planner can still emit a compose override with the bridge disabled.
func ProbeSockets(ctx context.Context, candidates []string) ProbeResult {
	for _, candidate := range candidates {
		if trialMount(ctx, candidate) {
			return ProbeResult{SocketPath: candidate, Available: true}
		}
	}
	return ProbeResult{Available: false}
}

// trialMount runs a minimal throwaway container with candidate bind-mounted
// and asks it to stat the socket node, retrying on probeInterval until
// probeTimeout: the first "docker run" against a candidate can transiently
// fail while the runtime is still pulling probeImage or settling after its
// own startup, and a single attempt would wrongly disqualify a socket that
// would have passed a moment later. Any failure that persists the whole
// window — missing docker binary, non-zero exit, timeout — disqualifies
// the candidate, per spec.
func trialMount(ctx context.Context, candidate string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	mount := fmt.Sprintf("%s:%s:ro", candidate, candidate)
	args := []string{"run", "--rm", "--quiet",
		"-v", mount,
		probeImage, "test", "-S", candidate}

	passed := false
	_ = wait.PollUntilContextTimeout(probeCtx, probeInterval, probeTimeout, true, func(pollCtx context.Context) (bool, error) {
		cmd := exec.CommandContext(pollCtx, "docker", args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if cmd.Run() == nil {
			passed = true
			return true, nil
		}
		return false, nil
	})
	return passed
}
