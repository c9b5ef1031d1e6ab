package model

// NodeType categorises a simulated asset on the range topology.
type NodeType string

const (
	NodeTypeFirewall    NodeType = "firewall"
	NodeTypeServer      NodeType = "server"
	NodeTypeDatabase    NodeType = "database"
	NodeTypeWorkstation NodeType = "workstation"
)

// NodeStatus is the security posture of a node. Only Status ever changes
// after a node is created; everything else is fixed by the topology template.
type NodeStatus string

const (
	StatusSecure      NodeStatus = "secure"
	StatusScanning    NodeStatus = "scanning"
	StatusIsolated    NodeStatus = "isolated"
	StatusCompromised NodeStatus = "compromised"
)

// Node represents a simulated network asset. X and Y are layout coordinates
// for observer-side rendering and carry no simulation meaning.
type Node struct {
	ID     string     `json:"id" yaml:"id"`
	Type   NodeType   `json:"type" yaml:"type"`
	Label  string     `json:"label" yaml:"label"`
	IP     string     `json:"ip" yaml:"ip"`
	Status NodeStatus `json:"status" yaml:"status"`
	X      int        `json:"x" yaml:"x"`
	Y      int        `json:"y" yaml:"y"`
}
