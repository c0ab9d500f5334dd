package apiserver

import (
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/h2c-io/h2c-api/pkg/apierr"
)

// ServeHTTP recognises the single URL grammar spec.md §4.6 declares and
// dispatches to the matching handler. Every branch that does not match a
// known shape falls through to a 404 Status; every recognised shape whose
// verb isn't implemented falls through to 501 — the façade never panics or
// returns a bare 500 for a routing miss.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	segments := splitPath(r.URL.Path)

	if len(segments) == 1 && (segments[0] == "healthz" || segments[0] == "readyz") {
		sr := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		s.serveHealth(sr, r, segments[0])
		logRequest(r, start, sr.code)
		return
	}

	if r.URL.Query().Get("watch") == "true" {
		writeError(w, apierr.NotImplemented("watch is not supported"))
		logRequest(r, start, 501)
		return
	}

	code := s.dispatch(w, r, segments)
	logRequest(r, start, code)
}

func logRequest(r *http.Request, start time.Time, code int) {
	klog.V(1).Infof("%s %s -> %d (%s)", r.Method, r.URL.Path, code, time.Since(start))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// statusRecorder lets handlers report the code they wrote back to
// ServeHTTP's access log without threading a return value through every
// leaf call.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, segments []string) int {
	sr := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

	switch {
	case len(segments) == 1 && segments[0] == "version":
		s.handleVersion(sr, r)

	case len(segments) == 1 && segments[0] == "api":
		writeJSON(sr, http.StatusOK, apiVersions)

	case len(segments) == 2 && segments[0] == "api" && segments[1] == "v1":
		writeJSON(sr, http.StatusOK, coreV1Resources)

	case len(segments) == 1 && segments[0] == "apis":
		writeJSON(sr, http.StatusOK, apiGroupList)

	case len(segments) == 3 && segments[0] == "apis" && segments[1] == "apps" && segments[2] == "v1":
		writeJSON(sr, http.StatusOK, appsV1Resources)

	case len(segments) == 3 && segments[0] == "apis" && segments[1] == "coordination.k8s.io" && segments[2] == "v1":
		writeJSON(sr, http.StatusOK, coordinationV1Resources)

	case len(segments) >= 2 && segments[0] == "api" && segments[1] == "v1":
		s.dispatchCoreV1(sr, r, segments[2:])

	case len(segments) >= 3 && segments[0] == "apis" && segments[1] == "apps" && segments[2] == "v1":
		s.dispatchAppsV1(sr, r, segments[3:])

	case len(segments) >= 3 && segments[0] == "apis" && segments[1] == "coordination.k8s.io" && segments[2] == "v1":
		s.dispatchCoordinationV1(sr, r, segments[3:])

	default:
		writeError(sr, apierr.NotFound("", "", r.URL.Path))
	}

	return sr.code
}

// serveHealth delegates to the teacher-derived health.HealthChecker
// (pkg/health): /healthz always reports liveness, /readyz reflects whether
// NewServer finished wiring every component.
func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request, which string) {
	if which == "healthz" {
		s.health.LivenessHandler().ServeHTTP(w, r)
		return
	}
	s.health.ReadinessHandler().ServeHTTP(w, r)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apierr.NotImplemented("unsupported verb on /version"))
		return
	}
	writeJSON(w, http.StatusOK, currentVersion())
}

// dispatchCoreV1 handles everything under /api/v1/... beyond the bare
// discovery document.
func (s *Server) dispatchCoreV1(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 1:
		s.handleClusterScoped(w, r, rest[0], "")
	case len(rest) == 2:
		s.handleClusterScoped(w, r, rest[0], rest[1])
	case len(rest) >= 3 && rest[0] == "namespaces":
		s.dispatchNamespaced(w, r, rest[1], rest[2:])
	default:
		writeError(w, apierr.NotFound("", "", r.URL.Path))
	}
}

func (s *Server) dispatchNamespaced(w http.ResponseWriter, r *http.Request, ns string, rest []string) {
	switch {
	case len(rest) == 1:
		s.handleNamespacedList(w, r, ns, rest[0])
	case len(rest) == 2:
		s.handleNamespacedItem(w, r, ns, rest[0], rest[1])
	case len(rest) == 3 && rest[0] == "pods" && rest[2] == "log":
		s.handlePodLog(w, r, ns, rest[1])
	default:
		writeError(w, apierr.NotFound("", "", r.URL.Path))
	}
}

func (s *Server) dispatchAppsV1(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) >= 1 && rest[0] == "namespaces" {
		switch {
		case len(rest) == 3:
			s.handleNamespacedList(w, r, rest[1], rest[2])
			return
		case len(rest) == 4:
			s.handleNamespacedItem(w, r, rest[1], rest[2], rest[3])
			return
		}
	}
	writeError(w, apierr.NotFound("", "", r.URL.Path))
}

func (s *Server) dispatchCoordinationV1(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) >= 1 && rest[0] == "namespaces" {
		switch {
		case len(rest) == 3:
			s.handleNamespacedList(w, r, rest[1], rest[2])
			return
		case len(rest) == 4:
			s.handleNamespacedItem(w, r, rest[1], rest[2], rest[3])
			return
		}
	}
	writeError(w, apierr.NotFound("", "", r.URL.Path))
}
