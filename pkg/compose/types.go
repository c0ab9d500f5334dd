// Package compose parses a docker-compose-shaped YAML document into the
// normalised snapshot the rest of the façade projects from (spec §3, §4.1).
package compose

import (
	"regexp"
	"strings"
)

// Port is one compose service port mapping.
type Port struct {
	Published string `json:"published,omitempty" yaml:"published,omitempty"`
	Target    int32  `json:"target" yaml:"target"`
	Protocol  string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// Service is one compose service entry, normalised from whatever shape the
// YAML document used (ports may be "8080:80", "80", or a mapping form).
type Service struct {
	Name        string
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"-"`
	Ports       []Port            `yaml:"-"`
	Environment map[string]string `yaml:"-"`
	Labels      map[string]string `yaml:"-"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	DependsOn   []string          `yaml:"-"`
	Replicas    int32             `yaml:"-"`
}

// Snapshot is the immutable, normalised view of one compose document at a
// point in time.
type Snapshot struct {
	ProjectName string
	Services    []Service // compose-file order, preserved
}

// ServiceByName returns the service with the given name and whether it
// exists, preserving the stable lookup contract list responses rely on.
func (s Snapshot) ServiceByName(name string) (Service, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

var projectNameSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeProjectName lowercases and maps runs of non-alphanumerics to a
// single "-", per spec §4.1's project-name resolution rule.
func SanitizeProjectName(raw string) string {
	lower := strings.ToLower(raw)
	sanitized := projectNameSanitizer.ReplaceAllString(lower, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "default"
	}
	return sanitized
}
