// Package project implements the Resource Projector (spec §4.2): a pure
// mapping from a compose snapshot to synthetic Pod/Service/Endpoints/
// Deployment records, grounded in the teacher's own use of real
// k8s.io/api struct types (pkg/kubernetes/connectivity.go builds
// corev1.Pod literals directly) rather than hand-rolled JSON maps.
package project

import (
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	intstr "k8s.io/apimachinery/pkg/util/intstr"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/h2c-io/h2c-api/pkg/compose"
)

func k8sUID(s string) types.UID { return types.UID(s) }

// Projector turns snapshots into synthetic resources. It is stateless
// except for the process start time used for pod/deployment status.
type Projector struct {
	ProcessStart time.Time
}

func New() *Projector {
	return &Projector{ProcessStart: time.Now()}
}

// workloadServices returns the snapshot's services minus the façade's own,
// in compose-file order (spec §4.2 "Tie-breaks").
func workloadServices(snap compose.Snapshot) []compose.Service {
	out := make([]compose.Service, 0, len(snap.Services))
	for _, svc := range snap.Services {
		if IsFacade(svc.Labels) {
			continue
		}
		out = append(out, svc)
	}
	return out
}

func podName(service string) string { return service + "-0" }

// Pods projects every non-façade compose service to a single-replica,
// Running pod (spec §4.2).
func (p *Projector) Pods(snap compose.Snapshot) []corev1.Pod {
	services := workloadServices(snap)
	pods := make([]corev1.Pod, 0, len(services))
	for _, svc := range services {
		pods = append(pods, p.pod(snap.ProjectName, svc))
	}
	return pods
}

func (p *Projector) pod(project string, svc compose.Service) corev1.Pod {
	var ports []corev1.ContainerPort
	for _, port := range svc.Ports {
		ports = append(ports, corev1.ContainerPort{
			ContainerPort: port.Target,
			Protocol:      protocolOf(port.Protocol),
		})
	}

	var env []corev1.EnvVar
	for k, v := range svc.Environment {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	startTime := metav1.NewTime(p.ProcessStart)
	return corev1.Pod{
		TypeMeta: metav1.TypeMeta{Kind: "Pod", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName(svc.Name),
			Namespace: project,
			UID:       k8sUID(podUID(project, svc.Name)),
			Labels:    mergeLabels(svc.Name, svc.Labels),
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:    svc.Name,
				Image:   svc.Image,
				Command: svc.Command,
				Ports:   ports,
				Env:     env,
			}},
		},
		Status: corev1.PodStatus{
			Phase:     corev1.PodRunning,
			HostIP:    hostIP(project, svc.Name),
			PodIP:     podIP(project, svc.Name),
			StartTime: &startTime,
			ContainerStatuses: []corev1.ContainerStatus{{
				Name:  svc.Name,
				Image: svc.Image,
				Ready: true,
				State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{StartedAt: startTime}},
			}},
		},
	}
}

// Services projects every non-façade compose service to a ClusterIP
// Service mirroring its declared ports (spec §4.2).
func (p *Projector) Services(snap compose.Snapshot) []corev1.Service {
	services := workloadServices(snap)
	out := make([]corev1.Service, 0, len(services))
	for _, svc := range services {
		out = append(out, p.service(snap.ProjectName, svc))
	}
	return out
}

func (p *Projector) service(project string, svc compose.Service) corev1.Service {
	var ports []corev1.ServicePort
	for i, port := range svc.Ports {
		sp := corev1.ServicePort{
			Name:       portName(svc.Name, i),
			Port:       port.Target,
			TargetPort: intstr.FromInt32(port.Target),
			Protocol:   protocolOf(port.Protocol),
		}
		if port.Published != "" {
			sp.NodePort = parsePort(port.Published)
		}
		ports = append(ports, sp)
	}

	return corev1.Service{
		TypeMeta: metav1.TypeMeta{Kind: "Service", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      svc.Name,
			Namespace: project,
			UID:       k8sUID(podUID(project, svc.Name+"#svc")),
			Labels:    mergeLabels(svc.Name, svc.Labels),
		},
		Spec: corev1.ServiceSpec{
			Type:      corev1.ServiceTypeClusterIP,
			ClusterIP: clusterIP(project, svc.Name),
			Selector:  map[string]string{AppLabel: svc.Name},
			Ports:     ports,
		},
	}
}

// Endpoints projects one Endpoints object per non-façade service, with a
// single subset referencing the one synthetic pod address (spec §4.2).
func (p *Projector) Endpoints(snap compose.Snapshot) []corev1.Endpoints {
	services := workloadServices(snap)
	out := make([]corev1.Endpoints, 0, len(services))
	for _, svc := range services {
		out = append(out, p.endpoints(snap.ProjectName, svc))
	}
	return out
}

func (p *Projector) endpoints(project string, svc compose.Service) corev1.Endpoints {
	var ports []corev1.EndpointPort
	for i, port := range svc.Ports {
		ports = append(ports, corev1.EndpointPort{
			Name:     portName(svc.Name, i),
			Port:     port.Target,
			Protocol: protocolOf(port.Protocol),
		})
	}

	return corev1.Endpoints{
		TypeMeta: metav1.TypeMeta{Kind: "Endpoints", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      svc.Name,
			Namespace: project,
			Labels:    mergeLabels(svc.Name, svc.Labels),
		},
		Subsets: []corev1.EndpointSubset{{
			Addresses: []corev1.EndpointAddress{{
				IP: podIP(project, svc.Name),
				TargetRef: &corev1.ObjectReference{
					Kind:      "Pod",
					Name:      podName(svc.Name),
					Namespace: project,
					UID:       k8sUID(podUID(project, svc.Name)),
				},
			}},
			Ports: ports,
		}},
	}
}

// Deployments projects every non-façade compose service to a single-
// replica Deployment with a RollingUpdate strategy (spec §4.2).
func (p *Projector) Deployments(snap compose.Snapshot) []appsv1.Deployment {
	services := workloadServices(snap)
	out := make([]appsv1.Deployment, 0, len(services))
	for _, svc := range services {
		out = append(out, p.deployment(snap.ProjectName, svc))
	}
	return out
}

func (p *Projector) deployment(project string, svc compose.Service) appsv1.Deployment {
	one := int32(1)
	labels := mergeLabels(svc.Name, svc.Labels)

	var ports []corev1.ContainerPort
	for _, port := range svc.Ports {
		ports = append(ports, corev1.ContainerPort{ContainerPort: port.Target, Protocol: protocolOf(port.Protocol)})
	}

	return appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{Kind: "Deployment", APIVersion: "apps/v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      svc.Name,
			Namespace: project,
			UID:       k8sUID(podUID(project, svc.Name+"#deploy")),
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &one,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{AppLabel: svc.Name}},
			Strategy: appsv1.DeploymentStrategy{Type: appsv1.RollingUpdateDeploymentStrategyType},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: svc.Name, Image: svc.Image, Command: svc.Command, Ports: ports}},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			Replicas:          one,
			ReadyReplicas:     one,
			AvailableReplicas: one,
			UpdatedReplicas:   one,
		},
	}
}

func protocolOf(proto string) corev1.Protocol {
	switch proto {
	case "udp", "UDP":
		return corev1.ProtocolUDP
	default:
		return corev1.ProtocolTCP
	}
}

func portName(service string, index int) string {
	if index == 0 {
		return ""
	}
	return service + "-" + string(rune('a'+index))
}

func parsePort(s string) int32 {
	var n int32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int32(c-'0')
	}
	return n
}
