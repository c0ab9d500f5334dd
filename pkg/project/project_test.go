package project

import (
	"testing"
	"time"

	"github.com/h2c-io/h2c-api/pkg/compose"
)

func sampleSnapshot() compose.Snapshot {
	return compose.Snapshot{
		ProjectName: "demo",
		Services: []compose.Service{
			{
				Name:  "web",
				Image: "nginx:latest",
				Ports: []compose.Port{{Target: 80, Published: "8080"}},
				Labels: map[string]string{
					"tier": "frontend",
				},
			},
			{
				Name:   "db",
				Image:  "postgres:14",
				Ports:  []compose.Port{{Target: 5432}},
				Labels: map[string]string{"tier": "backend"},
			},
			{
				Name:   "facade",
				Image:  "h2c/apiserver:latest",
				Labels: map[string]string{FacadeLabel: "true"},
			},
		},
	}
}

func TestPodsExcludesFacadeService(t *testing.T) {
	p := &Projector{ProcessStart: time.Unix(0, 0)}
	snap := sampleSnapshot()

	pods := p.Pods(snap)

	t.Run("projects one pod per workload service", func(t *testing.T) {
		if len(pods) != 2 {
			t.Fatalf("got %d pods, want 2", len(pods))
		}
	})

	t.Run("names pods after their service", func(t *testing.T) {
		if pods[0].Name != "web-0" || pods[1].Name != "db-0" {
			t.Errorf("unexpected pod names: %s, %s", pods[0].Name, pods[1].Name)
		}
	})

	t.Run("sets namespace to the project name", func(t *testing.T) {
		if pods[0].Namespace != "demo" {
			t.Errorf("got namespace %q, want demo", pods[0].Namespace)
		}
	})

	t.Run("reports running phase with a ready container", func(t *testing.T) {
		if pods[0].Status.Phase != "Running" {
			t.Errorf("got phase %q, want Running", pods[0].Status.Phase)
		}
		if !pods[0].Status.ContainerStatuses[0].Ready {
			t.Errorf("expected container to be ready")
		}
	})

	for _, pod := range pods {
		if IsFacade(pod.Labels) {
			t.Errorf("facade service leaked into pod listing: %s", pod.Name)
		}
	}
}

func TestServicesProjectClusterIPAndPorts(t *testing.T) {
	p := New()
	snap := sampleSnapshot()

	services := p.Services(snap)
	if len(services) != 2 {
		t.Fatalf("got %d services, want 2", len(services))
	}

	web := services[0]
	t.Run("assigns a ClusterIP service type", func(t *testing.T) {
		if web.Spec.Type != "ClusterIP" {
			t.Errorf("got type %q, want ClusterIP", web.Spec.Type)
		}
	})

	t.Run("mirrors the declared container port", func(t *testing.T) {
		if len(web.Spec.Ports) != 1 || web.Spec.Ports[0].Port != 80 {
			t.Errorf("unexpected ports: %+v", web.Spec.Ports)
		}
	})

	t.Run("selects pods by the app label", func(t *testing.T) {
		if web.Spec.Selector[AppLabel] != "web" {
			t.Errorf("got selector %+v", web.Spec.Selector)
		}
	})
}

func TestEndpointsReferenceTheSynthesizedPod(t *testing.T) {
	p := New()
	snap := sampleSnapshot()

	eps := p.Endpoints(snap)
	if len(eps) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(eps))
	}

	web := eps[0]
	if len(web.Subsets) != 1 || len(web.Subsets[0].Addresses) != 1 {
		t.Fatalf("expected exactly one subset address, got %+v", web.Subsets)
	}
	ref := web.Subsets[0].Addresses[0].TargetRef
	if ref == nil || ref.Name != "web-0" || ref.Kind != "Pod" {
		t.Errorf("unexpected target ref: %+v", ref)
	}
}

func TestDeploymentsAreSingleReplicaRollingUpdate(t *testing.T) {
	p := New()
	snap := sampleSnapshot()

	deploys := p.Deployments(snap)
	if len(deploys) != 2 {
		t.Fatalf("got %d deployments, want 2", len(deploys))
	}

	web := deploys[0]
	if web.Spec.Replicas == nil || *web.Spec.Replicas != 1 {
		t.Errorf("got replicas %v, want 1", web.Spec.Replicas)
	}
	if web.Spec.Strategy.Type != "RollingUpdate" {
		t.Errorf("got strategy %q, want RollingUpdate", web.Spec.Strategy.Type)
	}
	if web.Status.ReadyReplicas != 1 {
		t.Errorf("got ready replicas %d, want 1", web.Status.ReadyReplicas)
	}
}

func TestSyntheticIdentitiesAreDeterministic(t *testing.T) {
	snap := sampleSnapshot()
	p1, p2 := New(), New()

	pods1, pods2 := p1.Pods(snap), p2.Pods(snap)
	if pods1[0].UID != pods2[0].UID {
		t.Errorf("pod UID not deterministic: %s vs %s", pods1[0].UID, pods2[0].UID)
	}
	if pods1[0].UID == "" {
		t.Errorf("expected non-empty pod UID")
	}

	svcs1, svcs2 := p1.Services(snap), p2.Services(snap)
	if svcs1[0].Spec.ClusterIP != svcs2[0].Spec.ClusterIP {
		t.Errorf("cluster IP not deterministic: %s vs %s", svcs1[0].Spec.ClusterIP, svcs2[0].Spec.ClusterIP)
	}

	otherProject := compose.Snapshot{ProjectName: "other", Services: snap.Services}
	svcsOther := p1.Services(otherProject)
	if svcsOther[0].Spec.ClusterIP == svcs1[0].Spec.ClusterIP {
		t.Errorf("expected distinct cluster IPs across projects, got %s for both", svcs1[0].Spec.ClusterIP)
	}
}
