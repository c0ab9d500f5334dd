package apiserver

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/h2c-io/h2c-api/pkg/bridge"
	"github.com/h2c-io/h2c-api/pkg/compose"
	"github.com/h2c-io/h2c-api/pkg/health"
	"github.com/h2c-io/h2c-api/pkg/project"
	"github.com/h2c-io/h2c-api/pkg/store"
)

// systemNamespaces are always enumerable regardless of what the compose
// file projects (spec.md §3 "Project namespace").
var systemNamespaces = []string{"default", "kube-system", "kube-public"}

// Config carries the façade's environment-derived settings (spec.md §6
// "Environment variables").
type Config struct {
	ComposePath string
	DataDir     string
	SADir       string
	Port        string

	RuntimeSockets []string // candidate container-runtime sockets to probe
	StaleAfter     time.Duration
}

// Server holds every component C6 dispatches across: the compose loader
// (C1), resource projector (C2), configmap/secret store (C3), lease store
// (C4), and runtime bridge (C5).
type Server struct {
	cfg Config

	compose   *compose.Loader
	projector *project.Projector
	configs   *store.ConfigStore
	leases    *store.LeaseStore
	bridge    *bridge.Bridge
	health    *health.HealthChecker
}

// NewServer wires every component from cfg. It does not start listening;
// call Serve (tls.go) to bind and accept connections.
func NewServer(cfg Config) (*Server, error) {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 5 * time.Second
	}

	loader, err := compose.NewLoader(cfg.ComposePath, cfg.StaleAfter)
	if err != nil {
		return nil, err
	}

	sockets := cfg.RuntimeSockets
	if len(sockets) == 0 {
		sockets = bridge.DefaultSocketCandidates
	}

	s := &Server{
		cfg:       cfg,
		compose:   loader,
		projector: project.New(),
		configs:   store.NewConfigStore(cfg.DataDir, cfg.StaleAfter),
		leases:    store.NewLeaseStore(),
		bridge:    bridge.NewFromCandidates(sockets),
		health:    health.NewHealthChecker(),
	}
	if s.bridge.Available() {
		klog.V(1).Infof("apiserver: runtime bridge active")
	} else {
		klog.V(1).Infof("apiserver: runtime bridge unavailable, logs/restart will 501")
	}
	s.health.SetReady(true)
	return s, nil
}

// Close releases the server's background watchers.
func (s *Server) Close() error {
	if err := s.compose.Close(); err != nil {
		return err
	}
	return s.configs.Close()
}
