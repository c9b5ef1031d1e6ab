// Package topology holds the fixed range topology template and an in-memory,
// thread-safe store for the live nodes instantiated from it.
package topology

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/cyberrange-simulator/model"
)

// DefaultTemplate returns the built-in range topology. Callers receive a
// fresh copy on every call; mutating the result never affects later calls.
func DefaultTemplate() []model.Node {
	return cloneNodes([]model.Node{
		{ID: "firewall", Type: model.NodeTypeFirewall, Label: "Perimeter FW", IP: "192.168.1.1", Status: model.StatusSecure, X: 50, Y: 10},
		{ID: "web-server", Type: model.NodeTypeServer, Label: "IIS Web Srv", IP: "192.168.1.10", Status: model.StatusSecure, X: 30, Y: 40},
		{ID: "db-server", Type: model.NodeTypeDatabase, Label: "SQL DB", IP: "192.168.1.20", Status: model.StatusSecure, X: 70, Y: 40},
		{ID: "workstation-1", Type: model.NodeTypeWorkstation, Label: "HR PC", IP: "192.168.1.101", Status: model.StatusSecure, X: 20, Y: 80},
		{ID: "workstation-2", Type: model.NodeTypeWorkstation, Label: "Dev PC", IP: "192.168.1.102", Status: model.StatusSecure, X: 50, Y: 80},
		{ID: "dc-01", Type: model.NodeTypeServer, Label: "Domain Controller", IP: "192.168.1.5", Status: model.StatusSecure, X: 80, Y: 80},
	})
}

// LoadTemplate reads a topology template from a YAML file. Node statuses in
// the file are ignored; every node starts secure.
func LoadTemplate(path string) ([]model.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file %s: %w", path, err)
	}

	var nodes []model.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse topology file %s: %w", path, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("topology file %s contains no nodes", path)
	}

	seen := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		if nodes[i].ID == "" {
			return nil, fmt.Errorf("topology file %s: node %d has empty id", path, i)
		}
		if _, dup := seen[nodes[i].ID]; dup {
			return nil, fmt.Errorf("topology file %s: duplicate node id %q", path, nodes[i].ID)
		}
		seen[nodes[i].ID] = struct{}{}
		nodes[i].Status = model.StatusSecure
	}
	return nodes, nil
}

// Store is an in-memory, thread-safe node store. Nodes keep the order they
// were instantiated in; only their Status field ever changes.
type Store struct {
	mu    sync.RWMutex
	nodes []model.Node
	index map[string]int
}

// NewStore instantiates a store from a template, deep-copying it so live
// mutation never reaches the template slice.
func NewStore(template []model.Node) *Store {
	s := &Store{}
	s.replaceLocked(template)
	return s
}

// Get returns a copy of the node with the given ID, or false if unknown.
func (s *Store) Get(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return model.Node{}, false
	}
	return s.nodes[i], true
}

// List returns a snapshot copy of all nodes in creation order.
func (s *Store) List() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNodes(s.nodes)
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// SetStatus updates a node's status. It reports whether the node exists.
func (s *Store) SetStatus(id string, status model.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.nodes[i].Status = status
	return true
}

// SetStatusIf updates a node's status only when its current status matches
// expect. It reports whether the update was applied. Delayed transitions use
// this to avoid clobbering a status that changed after they were scheduled.
func (s *Store) SetStatusIf(id string, expect, status model.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || s.nodes[i].Status != expect {
		return false
	}
	s.nodes[i].Status = status
	return true
}

// Replace swaps the live node set for a fresh copy of the template.
func (s *Store) Replace(template []model.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(template)
}

func (s *Store) replaceLocked(template []model.Node) {
	s.nodes = cloneNodes(template)
	s.index = make(map[string]int, len(s.nodes))
	for i := range s.nodes {
		s.index[s.nodes[i].ID] = i
	}
}

func cloneNodes(nodes []model.Node) []model.Node {
	out := make([]model.Node, len(nodes))
	copy(out, nodes)
	return out
}
