// Package bridge implements the Runtime Bridge (C5, spec.md §4.5): an
// optional HTTP client against a local container-runtime socket exposing a
// Docker-compatible REST API, adapted from the teacher's HTTPClient/
// MakeRequest pattern in pkg/kubernetes/kubernetes.go (a timeout-guarded
// http.Client, "non-2xx is an error" convention) but dialing a Unix socket
// instead of a TCP base URL.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// baseURL is a placeholder host; the Transport below redirects every dial
// to the configured Unix socket regardless of what host/port appears here.
const baseURL = "http://h2c"

// Bridge talks to a Docker-compatible Unix-domain-socket API. It is
// optional: construction never fails on a missing or unreachable socket,
// only individual calls do, so the façade can start without a runtime
// present (spec.md §4.5 "MUST degrade to 501 rather than 5xx").
type Bridge struct {
	client     *http.Client
	socketPath string
	available  bool
}

// New probes socketPath once and returns a Bridge that reports itself
// unavailable rather than erroring, matching the teacher's
// NewKubernetesWithCredentials connectivity check but treating failure as
// a disabled feature, not a constructor error.
func New(socketPath string) *Bridge {
	b := &Bridge{socketPath: socketPath}
	b.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				d := net.Dialer{}
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
	b.available = b.probe()
	return b
}

// DefaultSocketCandidates lists the container-runtime socket paths the
// façade itself tries at startup, in order, mirroring the small fixed list
// the injection planner probes (spec.md §4.8 phase 4) — the façade side
// just needs the first one that is actually present and responding, since
// the planner already decided at install time whether to mount one at all.
var DefaultSocketCandidates = []string{
	"/var/run/docker.sock",
	"/run/docker.sock",
}

// NewFromCandidates probes each path in order and binds to the first one
// that responds, or to the last candidate (left unavailable) if none do.
func NewFromCandidates(paths []string) *Bridge {
	for _, path := range paths {
		b := New(path)
		if b.Available() {
			return b
		}
	}
	if len(paths) == 0 {
		return New("")
	}
	return New(paths[len(paths)-1])
}

// probeTimeout and probeInterval bound the startup dial retry: a runtime
// socket started by the same compose "up" that launched the façade may not
// be listening yet on the first attempt, so probe backs off a few times
// instead of failing the whole bridge on one unlucky dial.
const probeTimeout = 5 * time.Second
const probeInterval = 500 * time.Millisecond

func (b *Bridge) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	ok := false
	_ = wait.PollUntilContextTimeout(ctx, probeInterval, probeTimeout, true, func(context.Context) (bool, error) {
		conn, err := net.DialTimeout("unix", b.socketPath, 2*time.Second)
		if err != nil {
			klog.V(2).Infof("bridge: socket %s unavailable: %v", b.socketPath, err)
			return false, nil
		}
		conn.Close()
		ok = true
		return true, nil
	})
	return ok
}

// Available reports whether the runtime socket responded to the startup
// probe. Callers should still treat every request as capable of failing
// (the runtime can disappear mid-process) and degrade to 501 regardless.
func (b *Bridge) Available() bool { return b.available }

// ErrUnavailable is returned by bridge operations when the socket is
// absent, refuses connections, or returns a non-2xx response — the single
// condition callers map to HTTP 501 (spec.md §4.5).
type ErrUnavailable struct{ Reason string }

func (e *ErrUnavailable) Error() string { return "runtime bridge unavailable: " + e.Reason }

func (b *Bridge) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if !b.available {
		return nil, &ErrUnavailable{Reason: "socket not probed successfully at startup"}
	}
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return nil, &ErrUnavailable{Reason: err.Error()}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Reason: err.Error()}
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, &ErrUnavailable{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}
	return resp, nil
}

// containerNames returns the candidate container names to try for a given
// (project, service) pair, in probe order (spec.md §9 Open Question (a):
// "implementations should probe likely names rather than hard-code one").
func containerNames(project, service string) []string {
	return []string{
		fmt.Sprintf("%s_%s_1", project, service),
		fmt.Sprintf("%s-%s-1", project, service),
		service,
	}
}

// resolveContainer returns the first candidate name the runtime reports as
// existing, by probing its inspect endpoint.
func (b *Bridge) resolveContainer(ctx context.Context, project, service string) (string, error) {
	var lastErr error
	for _, name := range containerNames(project, service) {
		resp, err := b.do(ctx, http.MethodGet, "/containers/"+name+"/json", nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		return name, nil
	}
	if lastErr == nil {
		lastErr = &ErrUnavailable{Reason: "no candidate container name resolved"}
	}
	return "", lastErr
}

// restartRequest is the shape of the body a "rollout restart" idiom PATCH
// sends (spec.md §4.5 Restart): a template annotation change. Any other
// shape is accepted and reported back with no side effect.
type restartRequest struct {
	Spec struct {
		Template struct {
			Metadata struct {
				Annotations map[string]string `json:"annotations"`
			} `json:"metadata"`
		} `json:"template"`
	} `json:"spec"`
}

// isRestartPatch reports whether patch carries the rollout-restart
// annotation-bump shape.
func isRestartPatch(patch []byte) bool {
	var req restartRequest
	if err := json.Unmarshal(patch, &req); err != nil {
		return false
	}
	return len(req.Spec.Template.Metadata.Annotations) > 0
}
