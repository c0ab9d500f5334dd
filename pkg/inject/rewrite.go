package inject

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/h2c-io/h2c-api/pkg/project"
)

// FacadeServiceName is the name given to the injected façade service in the
// rewritten compose graph.
const FacadeServiceName = "h2c-api"

// RewriteOptions describes the mutation applied to every existing service
// and the new façade service added to the compose graph (spec.md §4.8
// phase 5).
type RewriteOptions struct {
	// SAMountTarget is H2C_SA_DIR inside every container, including the
	// façade itself.
	SAMountTarget string
	// SABundleHostPath is the host directory containing ca.crt/tls.crt/
	// tls.key/token/namespace, bind-mounted read-only.
	SABundleHostPath string
	// ComposeHostPath is the original compose file, mounted read-only into
	// the façade service so it can project it.
	ComposeHostPath string
	// FacadeImage is the image reference used for the injected façade
	// service.
	FacadeImage string
	// BridgeSocketPath is the host container-runtime socket to mount into
	// the façade, or "" if no probe passed (spec.md §4.8 phase 4).
	BridgeSocketPath string
	// HostPort publishes the façade port on the host when non-empty
	// (spec.md §6 "--expose-host-port").
	HostPort string
}

// Rewrite parses doc as a YAML document, mutates it in place per
// RewriteOptions, and re-emits it preserving key order and comments where
// the yaml.v3 Node API allows (spec.md §4.8 phase 5-6).
func Rewrite(doc []byte, opts RewriteOptions) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse compose document: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty compose document")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("compose document root is not a mapping")
	}

	servicesNode := mappingValue(top, "services")
	if servicesNode == nil {
		return nil, fmt.Errorf("compose document has no services block")
	}

	names := serviceNames(servicesNode)
	sort.Strings(names)
	for _, name := range names {
		svc := mappingValue(servicesNode, name)
		injectIntoService(svc, opts)
	}

	appendMappingEntry(servicesNode, FacadeServiceName, facadeServiceNode(opts, names))

	out, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("failed to re-emit compose document: %w", err)
	}
	return out, nil
}

// injectIntoService adds the SA bundle mount, cluster-locator environment
// entries, and a depends_on edge to the façade (spec.md §4.8 phase 5a-c).
//
// environment and depends_on both use setEnvEntry/addDependsOn rather than
// getOrCreateMapping/getOrCreateSequence: a service may already declare
// either key in a shape compose also accepts but that Rewrite doesn't
// default to (array-style "KEY=value" environment, long-form depends_on
// with a condition mapping), and blindly creating a second key under the
// same name would leave two environment: (or depends_on:) entries in the
// document — the first silently dropped by YAML's last-key-wins decoding.
func injectIntoService(svc *yaml.Node, opts RewriteOptions) {
	volumes := getOrCreateSequence(svc, "volumes")
	appendScalar(volumes, fmt.Sprintf("%s:%s:ro", opts.SABundleHostPath, opts.SAMountTarget))

	setEnvEntry(svc, "KUBERNETES_SERVICE_HOST", FacadeServiceName)
	setEnvEntry(svc, "KUBERNETES_SERVICE_PORT", "6443")

	addDependsOn(svc, FacadeServiceName)
}

// setEnvEntry sets key=value on svc's environment block, preserving
// whichever of the two compose-accepted shapes is already there: a mapping
// gets the key set directly; a sequence of "KEY=value" scalars gets its
// matching entry replaced in place (or a new scalar appended). A missing
// block is created as a mapping, matching the façade service's own shape.
func setEnvEntry(svc *yaml.Node, key, value string) {
	existing := mappingValue(svc, "environment")
	switch {
	case existing == nil:
		m := newMapping()
		appendMappingEntry(svc, "environment", m)
		setMappingEntry(m, key, value)
	case existing.Kind == yaml.SequenceNode:
		setSequenceEnvEntry(existing, key, value)
	default:
		setMappingEntry(existing, key, value)
	}
}

func setSequenceEnvEntry(seq *yaml.Node, key, value string) {
	prefix := key + "="
	for _, item := range seq.Content {
		if strings.HasPrefix(item.Value, prefix) {
			item.Value = prefix + value
			return
		}
	}
	appendScalar(seq, prefix+value)
}

// addDependsOn adds name to svc's depends_on block, preserving either
// compose-accepted shape: a plain sequence of service names gets name
// appended (if not already present); a long-form mapping of
// {service: {condition: ...}} gets a new entry with condition
// service_started, the default compose itself applies when none is given.
// A missing block is created as a sequence, matching compose's short form.
func addDependsOn(svc *yaml.Node, name string) {
	existing := mappingValue(svc, "depends_on")
	switch {
	case existing == nil:
		s := newSequence()
		appendMappingEntry(svc, "depends_on", s)
		appendScalar(s, name)
	case existing.Kind == yaml.MappingNode:
		if mappingValue(existing, name) != nil {
			return
		}
		condition := newMapping()
		setMappingEntry(condition, "condition", "service_started")
		appendMappingEntry(existing, name, condition)
	default:
		for _, item := range existing.Content {
			if item.Value == name {
				return
			}
		}
		appendScalar(existing, name)
	}
}

// facadeServiceNode builds the new façade service entry: compose file and
// SA bundle mounted read-only, runtime socket mounted if a probe passed,
// and the host port published if requested.
func facadeServiceNode(opts RewriteOptions, otherServices []string) *yaml.Node {
	svc := newMapping()

	image := opts.FacadeImage
	if image == "" {
		image = "h2c-io/h2c-api:latest"
	}
	setMappingEntry(svc, "image", image)

	labels := getOrCreateMapping(svc, "labels")
	setMappingEntry(labels, project.FacadeLabel, "true")

	volumes := getOrCreateSequence(svc, "volumes")
	appendScalar(volumes, fmt.Sprintf("%s:%s:ro", opts.ComposeHostPath, "/data/compose.yml"))
	appendScalar(volumes, fmt.Sprintf("%s:%s:ro", opts.SABundleHostPath, opts.SAMountTarget))
	if opts.BridgeSocketPath != "" {
		appendScalar(volumes, fmt.Sprintf("%s:%s", opts.BridgeSocketPath, opts.BridgeSocketPath))
	}

	env := getOrCreateMapping(svc, "environment")
	setMappingEntry(env, "H2C_SA_DIR", opts.SAMountTarget)

	if opts.HostPort != "" {
		ports := getOrCreateSequence(svc, "ports")
		appendScalar(ports, fmt.Sprintf("%s:6443", opts.HostPort))
	}

	return svc
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func newSequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func serviceNames(services *yaml.Node) []string {
	names := make([]string, 0, len(services.Content)/2)
	for i := 0; i < len(services.Content); i += 2 {
		names = append(names, services.Content[i].Value)
	}
	return names
}

func appendMappingEntry(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalarNode(key), value)
}

func setMappingEntry(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = scalarNode(value)
			return
		}
	}
	appendMappingEntry(m, key, scalarNode(value))
}

func getOrCreateMapping(svc *yaml.Node, key string) *yaml.Node {
	if existing := mappingValue(svc, key); existing != nil && existing.Kind == yaml.MappingNode {
		return existing
	}
	m := newMapping()
	appendMappingEntry(svc, key, m)
	return m
}

func getOrCreateSequence(svc *yaml.Node, key string) *yaml.Node {
	if existing := mappingValue(svc, key); existing != nil && existing.Kind == yaml.SequenceNode {
		return existing
	}
	s := newSequence()
	appendMappingEntry(svc, key, s)
	return s
}

func appendScalar(seq *yaml.Node, v string) {
	seq.Content = append(seq.Content, scalarNode(v))
}
