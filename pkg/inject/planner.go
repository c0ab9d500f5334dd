package inject

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/h2c-io/h2c-api/pkg/compose"
)

// Options are the CLI-level inputs to a planning run (spec.md §6
// "Injection planner CLI").
type Options struct {
	ComposePath    string
	ExtraSANs      []string // --host, repeatable
	ExposeHostPort string   // "" if --expose-host-port was not given
	OutputDir      string   // directory the override/kubeconfig/bundle are written under; defaults to the compose file's directory
}

// Result summarizes what a planning run produced, for the CLI to report.
type Result struct {
	OverridePath   string
	KubeconfigPath string
	BundleDir      string
	SocketBridged  bool
}

const saMountTarget = "/var/run/secrets/kubernetes.io/serviceaccount"

// Run executes all six phases of spec.md §4.8 against opts and writes the
// override compose file, SA bundle, and (if host exposure was requested)
// the kubeconfig to opts.OutputDir.
func Run(ctx context.Context, opts Options) (*Result, error) {
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.ComposePath)
	}

	doc, err := os.ReadFile(opts.ComposePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}
	snapshot, err := compose.Parse(doc, opts.ComposePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compose file: %w", err)
	}

	host := "localhost"
	if len(opts.ExtraSANs) > 0 {
		host = opts.ExtraSANs[0]
	}
	port := "6443"
	if opts.ExposeHostPort != "" {
		port = opts.ExposeHostPort
	}

	bundleDir := filepath.Join(outDir, ".h2c", "sa-bundle")
	bundle, err := IssueOrReuse(bundleDir, opts.ExtraSANs)
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate bundle: %w", err)
	}
	if err := WriteServiceAccountBundle(bundleDir, snapshot.ProjectName, bundle); err != nil {
		return nil, fmt.Errorf("failed to write service account bundle: %w", err)
	}
	klog.V(1).Infof("inject: certificate bundle ready at %s with SANs %v", bundleDir, bundle.SANs)

	probe := ProbeSockets(ctx, DefaultSocketCandidates)
	if probe.Available {
		klog.V(0).Infof("inject: runtime bridge enabled via %s", probe.SocketPath)
	} else {
		klog.V(0).Infof("inject: no container-runtime socket passed the trial mount, bridge disabled")
	}

	rewriteOpts := RewriteOptions{
		SAMountTarget:    saMountTarget,
		SABundleHostPath: bundleDir,
		ComposeHostPath:  opts.ComposePath,
		BridgeSocketPath: probe.SocketPath,
		HostPort:         opts.ExposeHostPort,
	}
	rewritten, err := Rewrite(doc, rewriteOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite compose graph: %w", err)
	}

	overridePath := filepath.Join(outDir, "compose.override.yml")
	if err := os.WriteFile(overridePath, rewritten, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write compose override: %w", err)
	}

	result := &Result{OverridePath: overridePath, BundleDir: bundleDir, SocketBridged: probe.Available}

	if opts.ExposeHostPort != "" {
		kubeconfig, err := EmitKubeconfig(host, port, bundle.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
		}
		kubeconfigPath := filepath.Join(outDir, fmt.Sprintf("kubeconfig-%s.conf", host))
		if err := os.WriteFile(kubeconfigPath, kubeconfig, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write kubeconfig: %w", err)
		}
		result.KubeconfigPath = kubeconfigPath
	}

	return result, nil
}
