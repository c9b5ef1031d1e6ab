package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/cyberrange-simulator/model"
)

func TestDefaultTemplateIsIndependentPerCall(t *testing.T) {
	first := DefaultTemplate()
	first[0].Status = model.StatusCompromised

	second := DefaultTemplate()
	if second[0].Status != model.StatusSecure {
		t.Fatalf("template status = %q after mutating an earlier copy, want %q",
			second[0].Status, model.StatusSecure)
	}
}

func TestDefaultTemplateShape(t *testing.T) {
	nodes := DefaultTemplate()
	if len(nodes) != 6 {
		t.Fatalf("len(nodes) = %d, want 6", len(nodes))
	}
	for _, n := range nodes {
		if n.Status != model.StatusSecure {
			t.Fatalf("node %s status = %q, want %q", n.ID, n.Status, model.StatusSecure)
		}
	}
	if nodes[0].ID != "firewall" || nodes[5].ID != "dc-01" {
		t.Fatalf("unexpected node order: first %q, last %q", nodes[0].ID, nodes[5].ID)
	}
}

func TestStoreSetStatusUnknownNode(t *testing.T) {
	s := NewStore(DefaultTemplate())
	if s.SetStatus("no-such-node", model.StatusIsolated) {
		t.Fatalf("SetStatus on unknown node = true, want false")
	}
}

func TestStoreSetStatusIfGuard(t *testing.T) {
	s := NewStore(DefaultTemplate())

	if s.SetStatusIf("web-server", model.StatusScanning, model.StatusSecure) {
		t.Fatalf("SetStatusIf applied with mismatched expect status")
	}

	s.SetStatus("web-server", model.StatusScanning)
	if !s.SetStatusIf("web-server", model.StatusScanning, model.StatusSecure) {
		t.Fatalf("SetStatusIf did not apply with matching expect status")
	}
	node, _ := s.Get("web-server")
	if node.Status != model.StatusSecure {
		t.Fatalf("status = %q, want %q", node.Status, model.StatusSecure)
	}
}

func TestStoreListIsCopy(t *testing.T) {
	s := NewStore(DefaultTemplate())

	list := s.List()
	list[0].Status = model.StatusCompromised

	node, _ := s.Get(list[0].ID)
	if node.Status != model.StatusSecure {
		t.Fatalf("mutating a List copy changed the store")
	}
}

func TestStoreReplaceRestoresTemplate(t *testing.T) {
	template := DefaultTemplate()
	s := NewStore(template)

	s.SetStatus("db-server", model.StatusCompromised)
	s.Replace(template)

	node, ok := s.Get("db-server")
	if !ok {
		t.Fatalf("db-server missing after Replace")
	}
	if node.Status != model.StatusSecure {
		t.Fatalf("status = %q after Replace, want %q", node.Status, model.StatusSecure)
	}
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	data := `
- id: edge
  type: firewall
  label: "Edge FW"
  ip: "10.0.0.1"
  status: compromised
  x: 10
  y: 10
- id: app
  type: server
  label: "App Srv"
  ip: "10.0.0.2"
  x: 20
  y: 20
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	nodes, err := LoadTemplate(path)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}
	// File statuses are ignored.
	if nodes[0].Status != model.StatusSecure {
		t.Fatalf("node %s status = %q, want %q", nodes[0].ID, nodes[0].Status, model.StatusSecure)
	}
	if nodes[1].IP != "10.0.0.2" {
		t.Fatalf("node ip = %q, want 10.0.0.2", nodes[1].IP)
	}
}

func TestLoadTemplateRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	data := `
- id: edge
  type: firewall
- id: edge
  type: server
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadTemplate(path); err == nil {
		t.Fatalf("LoadTemplate accepted duplicate node IDs")
	}
}

func TestLoadTemplateMissingFile(t *testing.T) {
	if _, err := LoadTemplate(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("LoadTemplate accepted a missing file")
	}
}
