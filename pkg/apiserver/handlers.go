package apiserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	coordinationv1 "k8s.io/api/coordination/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/h2c-io/h2c-api/pkg/apierr"
	"github.com/h2c-io/h2c-api/pkg/bridge"
)

// projectNamespace resolves the current snapshot's project name, or a 500
// Internal error if the compose file is currently unparsable (spec.md §4.1
// "all subsequent requests return 500").
func (s *Server) projectNamespace(r *http.Request) (string, *apierr.Error) {
	snap, err := s.compose.Snapshot(r.Context())
	if err != nil {
		return "", apierr.Internal("compose file is not parsable: " + err.Error())
	}
	return snap.ProjectName, nil
}

// handleClusterScoped serves the two cluster-scoped resources the core
// group exposes: namespaces and nodes.
func (s *Server) handleClusterScoped(w http.ResponseWriter, r *http.Request, resourceSeg, name string) {
	kind, ok := resolveResource(resourceSeg)
	if !ok {
		writeError(w, apierr.NotFound("", "", resourceSeg))
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, apierr.NotImplemented("unsupported verb on "+string(kind)))
		return
	}

	switch kind {
	case kindNamespace:
		s.handleNamespaces(w, r, name)
	case kindNode:
		s.handleNodes(w, name)
	default:
		writeError(w, apierr.NotFound("", "", resourceSeg))
	}
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request, name string) {
	project, apiErr := s.projectNamespace(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	names := append(append([]string{}, systemNamespaces...), project)

	if name != "" {
		for _, n := range names {
			if n == name {
				writeJSON(w, http.StatusOK, namespaceObject(n, s.leases.ResourceVersion()))
				return
			}
		}
		writeError(w, apierr.NotFound("Namespace", "", name))
		return
	}

	items := make([]corev1.Namespace, 0, len(names))
	for _, n := range names {
		items = append(items, namespaceObject(n, s.leases.ResourceVersion()))
	}
	writeJSON(w, http.StatusOK, corev1.NamespaceList{
		TypeMeta: metav1.TypeMeta{Kind: "NamespaceList", APIVersion: "v1"},
		ListMeta: listMeta(s.leases.ResourceVersion()),
		Items:    items,
	})
}

func namespaceObject(name, resourceVersion string) corev1.Namespace {
	return corev1.Namespace{
		TypeMeta:   metav1.TypeMeta{Kind: "Namespace", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: name, ResourceVersion: resourceVersion},
		Status:     corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
	}
}

// handleNodes returns an empty node list: the façade projects no node
// identity of its own (spec.md names no Node synthesis rule), but the
// resource must still exist in discovery and answer LIST/GET without
// error, since partial discovery failure is unacceptable (spec.md §7).
func (s *Server) handleNodes(w http.ResponseWriter, name string) {
	if name != "" {
		writeError(w, apierr.NotFound("Node", "", name))
		return
	}
	writeJSON(w, http.StatusOK, corev1.NodeList{
		TypeMeta: metav1.TypeMeta{Kind: "NodeList", APIVersion: "v1"},
		ListMeta: listMeta(s.leases.ResourceVersion()),
		Items:    []corev1.Node{},
	})
}

// isProjected reports whether kind is derived from the compose snapshot
// (as opposed to the Lease store, which is not namespace-restricted to the
// project namespace).
func isProjected(kind resourceKind) bool {
	switch kind {
	case kindPod, kindService, kindEndpoints, kindDeployment, kindConfigMap, kindSecret:
		return true
	default:
		return false
	}
}

func (s *Server) handleNamespacedList(w http.ResponseWriter, r *http.Request, ns, resourceSeg string) {
	kind, ok := resolveResource(resourceSeg)
	if !ok {
		writeError(w, apierr.NotFound("", ns, resourceSeg))
		return
	}

	sel, apiErr := parseSelector(r.URL.Query().Get("labelSelector"))
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	if kind == kindLease {
		switch r.Method {
		case http.MethodGet:
			s.listLeases(w, ns, sel)
		case http.MethodPost:
			s.handleLeaseCreate(w, r, ns)
		default:
			writeError(w, apierr.NotImplemented("unsupported verb on leases"))
		}
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, apierr.NotImplemented("unsupported verb on "+string(kind)))
		return
	}

	project, projErr := s.projectNamespace(r)
	if projErr != nil {
		writeError(w, projErr)
		return
	}

	// spec.md §3 "Project namespace": requests scoped to any other
	// namespace return an empty list (not 404) for list verbs.
	if isProjected(kind) && ns != project {
		s.writeEmptyProjectedList(w, kind)
		return
	}

	snap, err := s.compose.Snapshot(r.Context())
	if err != nil {
		writeError(w, apierr.Internal("compose file is not parsable: "+err.Error()))
		return
	}
	rv := s.leases.ResourceVersion()

	switch kind {
	case kindPod:
		writeJSON(w, http.StatusOK, corev1.PodList{
			TypeMeta: metav1.TypeMeta{Kind: "PodList", APIVersion: "v1"},
			ListMeta: listMeta(rv),
			Items:    filterPods(s.projector.Pods(snap), sel, rv),
		})
	case kindService:
		writeJSON(w, http.StatusOK, corev1.ServiceList{
			TypeMeta: metav1.TypeMeta{Kind: "ServiceList", APIVersion: "v1"},
			ListMeta: listMeta(rv),
			Items:    filterServices(s.projector.Services(snap), sel, rv),
		})
	case kindEndpoints:
		writeJSON(w, http.StatusOK, corev1.EndpointsList{
			TypeMeta: metav1.TypeMeta{Kind: "EndpointsList", APIVersion: "v1"},
			ListMeta: listMeta(rv),
			Items:    filterEndpoints(s.projector.Endpoints(snap), sel, rv),
		})
	case kindDeployment:
		writeJSON(w, http.StatusOK, appsv1.DeploymentList{
			TypeMeta: metav1.TypeMeta{Kind: "DeploymentList", APIVersion: "apps/v1"},
			ListMeta: listMeta(rv),
			Items:    filterDeployments(s.projector.Deployments(snap), sel, rv),
		})
	case kindConfigMap:
		writeJSON(w, http.StatusOK, corev1.ConfigMapList{
			TypeMeta: metav1.TypeMeta{Kind: "ConfigMapList", APIVersion: "v1"},
			ListMeta: listMeta(rv),
			Items:    filterConfigMaps(s.configs.ConfigMaps(), sel, rv),
		})
	case kindSecret:
		writeJSON(w, http.StatusOK, corev1.SecretList{
			TypeMeta: metav1.TypeMeta{Kind: "SecretList", APIVersion: "v1"},
			ListMeta: listMeta(rv),
			Items:    filterSecrets(s.configs.Secrets(), sel, rv),
		})
	default:
		writeError(w, apierr.NotFound("", ns, resourceSeg))
	}
}

func (s *Server) writeEmptyProjectedList(w http.ResponseWriter, kind resourceKind) {
	rv := s.leases.ResourceVersion()
	meta := listMeta(rv)
	switch kind {
	case kindPod:
		writeJSON(w, http.StatusOK, corev1.PodList{TypeMeta: metav1.TypeMeta{Kind: "PodList", APIVersion: "v1"}, ListMeta: meta, Items: []corev1.Pod{}})
	case kindService:
		writeJSON(w, http.StatusOK, corev1.ServiceList{TypeMeta: metav1.TypeMeta{Kind: "ServiceList", APIVersion: "v1"}, ListMeta: meta, Items: []corev1.Service{}})
	case kindEndpoints:
		writeJSON(w, http.StatusOK, corev1.EndpointsList{TypeMeta: metav1.TypeMeta{Kind: "EndpointsList", APIVersion: "v1"}, ListMeta: meta, Items: []corev1.Endpoints{}})
	case kindDeployment:
		writeJSON(w, http.StatusOK, appsv1.DeploymentList{TypeMeta: metav1.TypeMeta{Kind: "DeploymentList", APIVersion: "apps/v1"}, ListMeta: meta, Items: []appsv1.Deployment{}})
	case kindConfigMap:
		writeJSON(w, http.StatusOK, corev1.ConfigMapList{TypeMeta: metav1.TypeMeta{Kind: "ConfigMapList", APIVersion: "v1"}, ListMeta: meta, Items: []corev1.ConfigMap{}})
	case kindSecret:
		writeJSON(w, http.StatusOK, corev1.SecretList{TypeMeta: metav1.TypeMeta{Kind: "SecretList", APIVersion: "v1"}, ListMeta: meta, Items: []corev1.Secret{}})
	}
}

func filterPods(pods []corev1.Pod, sel labels.Selector, rv string) []corev1.Pod {
	out := make([]corev1.Pod, 0, len(pods))
	for _, p := range pods {
		if !sel.Matches(labels.Set(p.Labels)) {
			continue
		}
		p.ResourceVersion = rv
		out = append(out, p)
	}
	return out
}

func filterServices(svcs []corev1.Service, sel labels.Selector, rv string) []corev1.Service {
	out := make([]corev1.Service, 0, len(svcs))
	for _, svc := range svcs {
		if !sel.Matches(labels.Set(svc.Labels)) {
			continue
		}
		svc.ResourceVersion = rv
		out = append(out, svc)
	}
	return out
}

func filterEndpoints(eps []corev1.Endpoints, sel labels.Selector, rv string) []corev1.Endpoints {
	out := make([]corev1.Endpoints, 0, len(eps))
	for _, ep := range eps {
		if !sel.Matches(labels.Set(ep.Labels)) {
			continue
		}
		ep.ResourceVersion = rv
		out = append(out, ep)
	}
	return out
}

func filterDeployments(deploys []appsv1.Deployment, sel labels.Selector, rv string) []appsv1.Deployment {
	out := make([]appsv1.Deployment, 0, len(deploys))
	for _, d := range deploys {
		if !sel.Matches(labels.Set(d.Labels)) {
			continue
		}
		d.ResourceVersion = rv
		out = append(out, d)
	}
	return out
}

func filterConfigMaps(cms []corev1.ConfigMap, sel labels.Selector, rv string) []corev1.ConfigMap {
	out := make([]corev1.ConfigMap, 0, len(cms))
	for _, cm := range cms {
		if !sel.Matches(labels.Set(cm.Labels)) {
			continue
		}
		cm.ResourceVersion = rv
		out = append(out, cm)
	}
	return out
}

func filterSecrets(secrets []corev1.Secret, sel labels.Selector, rv string) []corev1.Secret {
	out := make([]corev1.Secret, 0, len(secrets))
	for _, sec := range secrets {
		if !sel.Matches(labels.Set(sec.Labels)) {
			continue
		}
		sec.ResourceVersion = rv
		out = append(out, sec)
	}
	return out
}

func (s *Server) listLeases(w http.ResponseWriter, ns string, sel labels.Selector) {
	all := s.leases.List(ns)
	items := make([]coordinationv1.Lease, 0, len(all))
	for _, lease := range all {
		if sel.Matches(labels.Set(lease.Labels)) {
			items = append(items, lease)
		}
	}
	writeJSON(w, http.StatusOK, coordinationv1.LeaseList{
		TypeMeta: metav1.TypeMeta{Kind: "LeaseList", APIVersion: "coordination.k8s.io/v1"},
		ListMeta: listMeta(s.leases.ResourceVersion()),
		Items:    items,
	})
}

func (s *Server) handleNamespacedItem(w http.ResponseWriter, r *http.Request, ns, resourceSeg, name string) {
	kind, ok := resolveResource(resourceSeg)
	if !ok {
		writeError(w, apierr.NotFound("", ns, resourceSeg))
		return
	}

	if kind == kindLease {
		s.handleLeaseItem(w, r, ns, name)
		return
	}
	if kind == kindDeployment && r.Method == http.MethodPatch {
		s.handleDeploymentPatch(w, r, ns, name)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, apierr.NotImplemented("unsupported verb on "+string(kind)))
		return
	}

	project, projErr := s.projectNamespace(r)
	if projErr != nil {
		writeError(w, projErr)
		return
	}
	if isProjected(kind) && ns != project {
		writeError(w, apierr.NotFound(kindFor[kind], ns, name))
		return
	}

	snap, err := s.compose.Snapshot(r.Context())
	if err != nil {
		writeError(w, apierr.Internal("compose file is not parsable: "+err.Error()))
		return
	}
	rv := s.leases.ResourceVersion()

	switch kind {
	case kindPod:
		for _, p := range filterPods(s.projector.Pods(snap), labels.Everything(), rv) {
			if p.Name == name {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
	case kindService:
		for _, svc := range filterServices(s.projector.Services(snap), labels.Everything(), rv) {
			if svc.Name == name {
				writeJSON(w, http.StatusOK, svc)
				return
			}
		}
	case kindEndpoints:
		for _, ep := range filterEndpoints(s.projector.Endpoints(snap), labels.Everything(), rv) {
			if ep.Name == name {
				writeJSON(w, http.StatusOK, ep)
				return
			}
		}
	case kindDeployment:
		for _, d := range filterDeployments(s.projector.Deployments(snap), labels.Everything(), rv) {
			if d.Name == name {
				writeJSON(w, http.StatusOK, d)
				return
			}
		}
	case kindConfigMap:
		if cm, ok := s.configs.ConfigMap(name); ok {
			cm.ResourceVersion = rv
			writeJSON(w, http.StatusOK, cm)
			return
		}
	case kindSecret:
		if sec, ok := s.configs.Secret(name); ok {
			sec.ResourceVersion = rv
			writeJSON(w, http.StatusOK, sec)
			return
		}
	}
	writeError(w, apierr.NotFound(kindFor[kind], ns, name))
}

func (s *Server) handleLeaseItem(w http.ResponseWriter, r *http.Request, ns, name string) {
	switch r.Method {
	case http.MethodGet:
		lease, err := s.leases.Get(ns, name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lease)

	case http.MethodPut:
		var incoming coordinationv1.Lease
		if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
			writeError(w, apierr.BadRequest("malformed request body: "+err.Error()))
			return
		}
		updated, err := s.leases.Update(ns, name, incoming)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.leases.Delete(ns, name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, metav1.Status{
			TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
			Status:   metav1.StatusSuccess,
		})

	default:
		writeError(w, apierr.NotImplemented("unsupported verb on leases"))
	}
}

// handleLeaseCreate handles POST on the lease collection endpoint
// (spec.md §4.4 CREATE).
func (s *Server) handleLeaseCreate(w http.ResponseWriter, r *http.Request, ns string) {
	var incoming coordinationv1.Lease
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, apierr.BadRequest("malformed request body: "+err.Error()))
		return
	}
	if incoming.Name == "" {
		writeError(w, apierr.BadRequest("metadata.name is required"))
		return
	}
	created, err := s.leases.Create(ns, incoming)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeploymentPatch(w http.ResponseWriter, r *http.Request, ns, name string) {
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.BadRequest("failed to read request body: "+err.Error()))
		return
	}
	result, restartErr := s.bridge.Restart(r.Context(), ns, name, patch)
	if restartErr != nil {
		if _, unavailable := restartErr.(*bridge.ErrUnavailable); unavailable {
			writeError(w, apierr.NotImplemented("runtime bridge unavailable: "+restartErr.Error()))
			return
		}
		writeError(w, apierr.Internal(restartErr.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restarted": result.Restarted})
}

func (s *Server) handlePodLog(w http.ResponseWriter, r *http.Request, ns, podName string) {
	if r.Method != http.MethodGet {
		writeError(w, apierr.NotImplemented("unsupported verb on pod logs"))
		return
	}
	service := serviceFromPodName(podName)
	if service == "" {
		writeError(w, apierr.NotFound("Pod", ns, podName))
		return
	}

	opts := bridge.LogOptions{
		Follow:     r.URL.Query().Get("follow") == "true",
		Timestamps: r.URL.Query().Get("timestamps") == "true",
		Previous:   r.URL.Query().Get("previous") == "true",
		TailLines:  parseTailLines(r.URL.Query().Get("tailLines")),
	}

	stream, err := s.bridge.Logs(r.Context(), ns, service, opts)
	if err != nil {
		writeError(w, apierr.NotImplemented("runtime bridge unavailable: "+err.Error()))
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok && opts.Follow {
		copyAndFlush(w, stream, r.Context(), flusher)
		return
	}
	io.Copy(w, stream)
}

func copyAndFlush(w io.Writer, stream io.Reader, ctx context.Context, flusher http.Flusher) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := stream.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

// serviceFromPodName strips the synthetic "-0" pod-index suffix
// pkg/project.podName appends, recovering the compose service name.
func serviceFromPodName(podName string) string {
	const suffix = "-0"
	if len(podName) <= len(suffix) || podName[len(podName)-len(suffix):] != suffix {
		return ""
	}
	return podName[:len(podName)-len(suffix)]
}

func parseTailLines(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
