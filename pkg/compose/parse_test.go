package compose

import "testing"

const sampleCompose = `
name: demo
services:
  web:
    image: nginx:latest
    ports:
      - "8080:80"
    environment:
      - CACHE=true
    labels:
      tier: frontend
    depends_on:
      - db
  db:
    image: postgres:14
    ports:
      - target: 5432
    environment:
      POSTGRES_DB: mydb
    labels:
      tier: backend
`

func TestParseNormalizesServices(t *testing.T) {
	snap, err := Parse([]byte(sampleCompose), "/data/compose.yml")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	t.Run("project name from explicit key", func(t *testing.T) {
		if snap.ProjectName != "demo" {
			t.Errorf("got project name %q, want demo", snap.ProjectName)
		}
	})

	t.Run("preserves compose-file order", func(t *testing.T) {
		if len(snap.Services) != 2 || snap.Services[0].Name != "web" || snap.Services[1].Name != "db" {
			t.Fatalf("unexpected service order: %+v", snap.Services)
		}
	})

	t.Run("short port form", func(t *testing.T) {
		web, _ := snap.ServiceByName("web")
		if len(web.Ports) != 1 || web.Ports[0].Target != 80 || web.Ports[0].Published != "8080" {
			t.Errorf("unexpected ports: %+v", web.Ports)
		}
	})

	t.Run("long port form", func(t *testing.T) {
		db, _ := snap.ServiceByName("db")
		if len(db.Ports) != 1 || db.Ports[0].Target != 5432 || db.Ports[0].Published != "" {
			t.Errorf("unexpected ports: %+v", db.Ports)
		}
	})

	t.Run("array-style environment", func(t *testing.T) {
		web, _ := snap.ServiceByName("web")
		if web.Environment["CACHE"] != "true" {
			t.Errorf("got environment %+v", web.Environment)
		}
	})

	t.Run("map-style environment", func(t *testing.T) {
		db, _ := snap.ServiceByName("db")
		if db.Environment["POSTGRES_DB"] != "mydb" {
			t.Errorf("got environment %+v", db.Environment)
		}
	})

	t.Run("depends_on list form", func(t *testing.T) {
		web, _ := snap.ServiceByName("web")
		if len(web.DependsOn) != 1 || web.DependsOn[0] != "db" {
			t.Errorf("got depends_on %+v", web.DependsOn)
		}
	})
}

func TestParseFallbackProjectName(t *testing.T) {
	snap, err := Parse([]byte("services:\n  app:\n    image: x\n"), "/data/My Project!/compose.yml")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if snap.ProjectName != "my-project" {
		t.Errorf("got project name %q, want my-project", snap.ProjectName)
	}
}

func TestParseInvalidYAMLReturnsError(t *testing.T) {
	_, err := Parse([]byte("services: [this is not a map"), "/data/compose.yml")
	if err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}
