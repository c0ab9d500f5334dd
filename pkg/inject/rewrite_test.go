package inject

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const sampleCompose = `
name: demo
services:
  app:
    image: x
`

func TestRewriteAddsFacadeServiceAndWiresExisting(t *testing.T) {
	out, err := Rewrite([]byte(sampleCompose), RewriteOptions{
		SAMountTarget:    "/var/run/secrets/kubernetes.io/serviceaccount",
		SABundleHostPath: "/host/bundle",
		ComposeHostPath:  "/host/compose.yml",
		HostPort:         "16443",
	})
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("failed to parse rewritten document: %v", err)
	}

	services, ok := doc["services"].(map[string]any)
	if !ok {
		t.Fatalf("expected a services mapping, got %T", doc["services"])
	}

	facade, ok := services[FacadeServiceName].(map[string]any)
	if !ok {
		t.Fatalf("expected a %s service to be added", FacadeServiceName)
	}
	ports, _ := facade["ports"].([]any)
	if len(ports) != 1 || ports[0] != "16443:6443" {
		t.Errorf("expected façade to publish 16443:6443, got %v", ports)
	}

	app, ok := services["app"].(map[string]any)
	if !ok {
		t.Fatalf("expected existing service app to survive rewrite")
	}
	env, _ := app["environment"].(map[string]any)
	if env["KUBERNETES_SERVICE_HOST"] != FacadeServiceName {
		t.Errorf("expected KUBERNETES_SERVICE_HOST=%s, got %v", FacadeServiceName, env["KUBERNETES_SERVICE_HOST"])
	}
	if env["KUBERNETES_SERVICE_PORT"] != "6443" {
		t.Errorf("expected KUBERNETES_SERVICE_PORT=6443, got %v", env["KUBERNETES_SERVICE_PORT"])
	}
	dependsOn, _ := app["depends_on"].([]any)
	if len(dependsOn) != 1 || dependsOn[0] != FacadeServiceName {
		t.Errorf("expected app to depend_on %s, got %v", FacadeServiceName, dependsOn)
	}
	volumes, _ := app["volumes"].([]any)
	found := false
	for _, v := range volumes {
		if s, ok := v.(string); ok && strings.Contains(s, "/host/bundle") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected app volumes to mount the SA bundle, got %v", volumes)
	}
}

const arrayEnvCompose = `
name: demo
services:
  app:
    image: x
    environment:
      - FOO=bar
    depends_on:
      db:
        condition: service_healthy
  db:
    image: postgres
`

func TestRewritePreservesArrayStyleEnvironmentAndLongDependsOn(t *testing.T) {
	out, err := Rewrite([]byte(arrayEnvCompose), RewriteOptions{
		SAMountTarget:    "/sa",
		SABundleHostPath: "/host/bundle",
		ComposeHostPath:  "/host/compose.yml",
	})
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("failed to parse rewritten document: %v", err)
	}
	services := doc["services"].(map[string]any)
	app := services["app"].(map[string]any)

	env, ok := app["environment"].([]any)
	if !ok {
		t.Fatalf("expected environment to remain array-style, got %T", app["environment"])
	}
	want := map[string]bool{
		"FOO=bar":                               false,
		"KUBERNETES_SERVICE_HOST=" + FacadeServiceName: false,
		"KUBERNETES_SERVICE_PORT=6443":           false,
	}
	for _, raw := range env {
		if s, ok := raw.(string); ok {
			if _, present := want[s]; present {
				want[s] = true
			}
		}
	}
	for entry, found := range want {
		if !found {
			t.Errorf("expected environment to contain %q, got %v", entry, env)
		}
	}

	dependsOn, ok := app["depends_on"].(map[string]any)
	if !ok {
		t.Fatalf("expected depends_on to remain long-form mapping, got %T", app["depends_on"])
	}
	if _, ok := dependsOn["db"]; !ok {
		t.Errorf("expected original db dependency to survive, got %v", dependsOn)
	}
	facadeDep, ok := dependsOn[FacadeServiceName].(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be added to depends_on, got %v", FacadeServiceName, dependsOn)
	}
	if facadeDep["condition"] != "service_started" {
		t.Errorf("expected facade depends_on condition service_started, got %v", facadeDep["condition"])
	}
}

func TestRewriteOmitsSocketMountWhenProbeFailed(t *testing.T) {
	out, err := Rewrite([]byte(sampleCompose), RewriteOptions{
		SAMountTarget:    "/sa",
		SABundleHostPath: "/host/bundle",
		ComposeHostPath:  "/host/compose.yml",
	})
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if strings.Contains(string(out), "docker.sock") {
		t.Error("expected no socket mount when BridgeSocketPath was empty")
	}
}
