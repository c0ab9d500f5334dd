package apiserver

// resourceKind names the six resource kinds the façade serves, the table
// router.go and discovery.go both key off, adapted from the teacher's
// resourceMap alias table (pkg/kubernetes/utils.go) which maps the same
// kind of short human name to a concrete API coordinate.
type resourceKind string

const (
	kindPod         resourceKind = "pods"
	kindService     resourceKind = "services"
	kindEndpoints   resourceKind = "endpoints"
	kindConfigMap   resourceKind = "configmaps"
	kindSecret      resourceKind = "secrets"
	kindDeployment  resourceKind = "deployments"
	kindLease       resourceKind = "leases"
	kindNamespace   resourceKind = "namespaces"
	kindNode        resourceKind = "nodes"
)

// shortNames resolves the aliases spec.md §4.6 names ("po", "svc", "ep",
// "cm", "no", "ns", "deploy") to their canonical resource before dispatch.
var shortNames = map[string]resourceKind{
	"po":          kindPod,
	"pods":        kindPod,
	"svc":         kindService,
	"services":    kindService,
	"ep":          kindEndpoints,
	"endpoints":   kindEndpoints,
	"cm":          kindConfigMap,
	"configmaps":  kindConfigMap,
	"secrets":     kindSecret,
	"deploy":      kindDeployment,
	"deployments": kindDeployment,
	"leases":      kindLease,
	"no":          kindNode,
	"nodes":       kindNode,
	"ns":          kindNamespace,
	"namespaces":  kindNamespace,
}

// resolveResource maps a path segment (possibly a short-name alias) to its
// canonical resourceKind, reporting whether it is recognised at all.
func resolveResource(segment string) (resourceKind, bool) {
	kind, ok := shortNames[segment]
	return kind, ok
}

// kindFor names the singular "Kind" field for each served resourceKind's
// list/singular shape.
var kindFor = map[resourceKind]string{
	kindPod:        "Pod",
	kindService:    "Service",
	kindEndpoints:  "Endpoints",
	kindConfigMap:  "ConfigMap",
	kindSecret:     "Secret",
	kindDeployment: "Deployment",
	kindLease:      "Lease",
	kindNamespace:  "Namespace",
	kindNode:       "Node",
}
