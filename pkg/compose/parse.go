package compose

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawDocument mirrors the on-disk shape loosely: most fields are left as
// yaml.Node or interface{} because compose tolerates several shorthand
// forms (ports as strings, environment as a list or a map, ...). Services
// is kept as a raw mapping Node rather than a Go map so Parse can walk its
// Content pairs in file order instead of losing that order to Go's
// unordered map — spec.md §4.2's tie-break rule requires compose-file
// order to survive into every list response.
type rawDocument struct {
	Name     string                    `yaml:"name"`
	Services yaml.Node                 `yaml:"services"`
	Volumes  map[string]map[string]any `yaml:"volumes"`
}

type rawService struct {
	Image       string   `yaml:"image"`
	Command     any      `yaml:"command"`
	Entrypoint  any      `yaml:"entrypoint"`
	Ports       []any    `yaml:"ports"`
	Environment any      `yaml:"environment"`
	Labels      any      `yaml:"labels"`
	Volumes     []string `yaml:"volumes"`
	DependsOn   any      `yaml:"depends_on"`
	Deploy      struct {
		Replicas int32 `yaml:"replicas"`
	} `yaml:"deploy"`
}

// Parse decodes compose YAML content and the path it was read from (used
// only to derive a fallback project name from the parent directory) into a
// Snapshot. Parse failures are the sole source of the façade's 500s per
// spec §4.1 — callers must surface the error verbatim rather than serving
// an empty snapshot.
func Parse(content []byte, sourcePath string) (Snapshot, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("compose: parse %s: %w", sourcePath, err)
	}

	snap := Snapshot{ProjectName: resolveProjectName(doc.Name, sourcePath)}
	for i := 0; i+1 < len(doc.Services.Content); i += 2 {
		name := doc.Services.Content[i].Value
		var raw rawService
		if err := doc.Services.Content[i+1].Decode(&raw); err != nil {
			return Snapshot{}, fmt.Errorf("compose: service %q: %w", name, err)
		}
		svc, err := normalizeService(name, raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("compose: service %q: %w", name, err)
		}
		snap.Services = append(snap.Services, svc)
	}
	return snap, nil
}

func resolveProjectName(explicit, sourcePath string) string {
	if explicit != "" {
		return SanitizeProjectName(explicit)
	}
	dir := filepath.Dir(sourcePath)
	return SanitizeProjectName(filepath.Base(dir))
}

func normalizeService(name string, raw rawService) (Service, error) {
	svc := Service{
		Name:     name,
		Image:    raw.Image,
		Volumes:  append([]string(nil), raw.Volumes...),
		Replicas: raw.Deploy.Replicas,
	}

	cmd, err := normalizeCommand(raw.Command)
	if err != nil {
		return Service{}, err
	}
	svc.Command = cmd

	ports, err := normalizePorts(raw.Ports)
	if err != nil {
		return Service{}, err
	}
	svc.Ports = ports

	env, err := normalizeStringMap(raw.Environment)
	if err != nil {
		return Service{}, fmt.Errorf("environment: %w", err)
	}
	svc.Environment = env

	labels, err := normalizeStringMap(raw.Labels)
	if err != nil {
		return Service{}, fmt.Errorf("labels: %w", err)
	}
	svc.Labels = labels

	svc.DependsOn = normalizeDependsOn(raw.DependsOn)

	return svc, nil
}

func normalizeCommand(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command: non-string element %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("command: unsupported shape %T", v)
	}
}

// normalizePorts accepts the three compose port shapes: short string form
// ("8080:80", "80", "8080:80/udp"), bare int, and the long mapping form
// ({target: 80, published: 8080, protocol: tcp}).
func normalizePorts(raw []any) ([]Port, error) {
	ports := make([]Port, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case string:
			p, err := parsePortString(t)
			if err != nil {
				return nil, err
			}
			ports = append(ports, p)
		case int:
			ports = append(ports, Port{Target: int32(t), Protocol: "tcp"})
		case map[string]any:
			p := Port{Protocol: "tcp"}
			if target, ok := t["target"]; ok {
				p.Target = toInt32(target)
			}
			if published, ok := t["published"]; ok {
				p.Published = fmt.Sprintf("%v", published)
			}
			if proto, ok := t["protocol"].(string); ok && proto != "" {
				p.Protocol = proto
			}
			ports = append(ports, p)
		default:
			return nil, fmt.Errorf("ports: unsupported shape %T", item)
		}
	}
	return ports, nil
}

func parsePortString(s string) (Port, error) {
	proto := "tcp"
	if idx := strings.LastIndex(s, "/"); idx != -1 {
		proto = s[idx+1:]
		s = s[:idx]
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		target, err := strconv.Atoi(parts[0])
		if err != nil {
			return Port{}, fmt.Errorf("ports: invalid target %q", parts[0])
		}
		return Port{Target: int32(target), Protocol: proto}, nil
	case 2:
		target, err := strconv.Atoi(parts[1])
		if err != nil {
			return Port{}, fmt.Errorf("ports: invalid target %q", parts[1])
		}
		return Port{Published: parts[0], Target: int32(target), Protocol: proto}, nil
	default:
		// host-ip:published:target — keep only published/target.
		target, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return Port{}, fmt.Errorf("ports: invalid target %q", parts[len(parts)-1])
		}
		return Port{Published: parts[len(parts)-2], Target: int32(target), Protocol: proto}, nil
	}
}

func toInt32(v any) int32 {
	switch t := v.(type) {
	case int:
		return int32(t)
	case int64:
		return int32(t)
	case float64:
		return int32(t)
	case string:
		n, _ := strconv.Atoi(t)
		return int32(n)
	default:
		return 0
	}
}

// normalizeStringMap accepts both the array style ("- KEY=value") and the
// mapping style ("KEY: value") compose allows for environment/labels.
func normalizeStringMap(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	out := map[string]string{}
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			out[k] = fmt.Sprintf("%v", val)
		}
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported element %v", item)
			}
			k, val, found := strings.Cut(s, "=")
			if !found {
				out[k] = ""
				continue
			}
			out[k] = val
		}
	default:
		return nil, fmt.Errorf("unsupported shape %T", v)
	}
	return out, nil
}

func normalizeDependsOn(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		out := make([]string, 0, len(t))
		for k := range t {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	default:
		return nil
	}
}
