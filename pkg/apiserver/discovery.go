package apiserver

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/h2c-io/h2c-api/pkg/version"
)

// readOnlyVerbs is what every projected resource actually answers: the
// façade 501s any verb beyond GET/LIST on Pods, Services, Endpoints,
// ConfigMaps, Secrets, Namespaces, and Nodes (pkg/apiserver/handlers.go).
var readOnlyVerbs = metav1.Verbs{"get", "list"}

// leaseVerbs matches the façade's actual Lease CRUD surface (create via
// POST, update via PUT, delete, get, list — no patch) and is the literal
// example spec.md §8 Scenario 1 gives for /apis/coordination.k8s.io/v1.
var leaseVerbs = metav1.Verbs{"create", "delete", "get", "list", "update"}

// deploymentVerbs adds patch to the read-only set: handleDeploymentPatch
// is the one mutating verb Deployments support (a restart trigger via the
// runtime bridge, not a real rolling update).
var deploymentVerbs = metav1.Verbs{"get", "list", "patch"}

// apiResource is a minimal constructor for metav1.APIResource, grounded in
// the teacher's formatAPIResources (pkg/kubernetes/configuration.go), which
// shapes the same {name, kind, namespaced, verbs, shortNames} fields from a
// real cluster's discovery response.
func apiResource(name, kind string, namespaced bool, verbs metav1.Verbs, shortNames ...string) metav1.APIResource {
	return metav1.APIResource{
		Name:       name,
		Kind:       kind,
		Namespaced: namespaced,
		Verbs:      verbs,
		ShortNames: shortNames,
	}
}

var coreV1Resources = metav1.APIResourceList{
	TypeMeta:     metav1.TypeMeta{Kind: "APIResourceList", APIVersion: "v1"},
	GroupVersion: "v1",
	APIResources: []metav1.APIResource{
		apiResource("pods", "Pod", true, readOnlyVerbs, "po"),
		apiResource("services", "Service", true, readOnlyVerbs, "svc"),
		apiResource("endpoints", "Endpoints", true, readOnlyVerbs, "ep"),
		apiResource("configmaps", "ConfigMap", true, readOnlyVerbs, "cm"),
		apiResource("secrets", "Secret", true, readOnlyVerbs),
		apiResource("namespaces", "Namespace", false, readOnlyVerbs, "ns"),
		apiResource("nodes", "Node", false, readOnlyVerbs, "no"),
	},
}

var appsV1Resources = metav1.APIResourceList{
	TypeMeta:     metav1.TypeMeta{Kind: "APIResourceList", APIVersion: "v1"},
	GroupVersion: "apps/v1",
	APIResources: []metav1.APIResource{
		apiResource("deployments", "Deployment", true, deploymentVerbs, "deploy"),
	},
}

var coordinationV1Resources = metav1.APIResourceList{
	TypeMeta:     metav1.TypeMeta{Kind: "APIResourceList", APIVersion: "v1"},
	GroupVersion: "coordination.k8s.io/v1",
	APIResources: []metav1.APIResource{
		apiResource("leases", "Lease", true, leaseVerbs),
	},
}

// apiVersions is the /api payload: the served core group's version list.
var apiVersions = metav1.APIVersions{
	TypeMeta: metav1.TypeMeta{Kind: "APIVersions", APIVersion: "v1"},
	Versions: []string{"v1"},
}

// apiGroupList is the /apis payload: the two served non-core groups.
var apiGroupList = metav1.APIGroupList{
	TypeMeta: metav1.TypeMeta{Kind: "APIGroupList", APIVersion: "v1"},
	Groups: []metav1.APIGroup{
		{
			Name: "apps",
			Versions: []metav1.GroupVersionForDiscovery{
				{GroupVersion: "apps/v1", Version: "v1"},
			},
			PreferredVersion: metav1.GroupVersionForDiscovery{GroupVersion: "apps/v1", Version: "v1"},
		},
		{
			Name: "coordination.k8s.io",
			Versions: []metav1.GroupVersionForDiscovery{
				{GroupVersion: "coordination.k8s.io/v1", Version: "v1"},
			},
			PreferredVersion: metav1.GroupVersionForDiscovery{GroupVersion: "coordination.k8s.io/v1", Version: "v1"},
		},
	},
}

// versionInfo is the /version payload (spec.md §4.6: "gitVersion:
// \"v1.28.0-h2c\", major: \"1\", minor: \"28\", platform strings
// free-form").
type versionInfo struct {
	Major      string `json:"major"`
	Minor      string `json:"minor"`
	GitVersion string `json:"gitVersion"`
	Platform   string `json:"platform"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Major:      version.Major,
		Minor:      version.Minor,
		GitVersion: version.GitVersion,
		Platform:   version.Platform,
	}
}
