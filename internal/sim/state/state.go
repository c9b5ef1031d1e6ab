// Package state owns the single authoritative RangeState aggregate.
package state

import (
	"context"
	"sync"

	"github.com/signalsfoundry/cyberrange-simulator/internal/logging"
	"github.com/signalsfoundry/cyberrange-simulator/model"
	"github.com/signalsfoundry/cyberrange-simulator/topology"
)

// Score bounds for the shared defensive score.
const (
	MinScore = 0
	MaxScore = 100
)

// RangeState coordinates the live topology with the append-only event log,
// the active scenario marker, the defensive score, and the operator roster.
// Exactly one instance exists per server process; all mutation funnels
// through its methods.
type RangeState struct {
	// mu is the coarse range-level lock. Take this before touching the node
	// store to maintain the lock ordering of RangeState -> Store.
	mu sync.RWMutex

	nodes *topology.Store

	logs []model.LogEntry

	// activeScenario is the opaque scenario identifier; empty means none.
	activeScenario string

	score int

	// operators keeps joined handles in join order; operatorSet enforces
	// set semantics.
	operators   []string
	operatorSet map[string]struct{}

	log     logging.Logger
	metrics MetricsRecorder
}

// Snapshot is a fully consistent copy of the aggregate, safe to hand to
// observers without further locking. Field names match the wire format the
// observer UI consumes.
type Snapshot struct {
	Nodes          []model.Node     `json:"nodes"`
	Logs           []model.LogEntry `json:"logs"`
	ActiveScenario *string          `json:"activeScenario"`
	DefensiveScore int              `json:"defensiveScore"`
	Operators      []string         `json:"operators"`
}

// MetricsRecorder receives gauge updates pushed from state mutators.
type MetricsRecorder interface {
	SetRangeCounts(score, operators, compromised int, scenarioActive bool)
}

// Option customises RangeState construction.
type Option func(*RangeState)

// WithMetricsRecorder attaches an optional recorder for range gauges.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *RangeState) {
		s.metrics = m
	}
}

// New builds a RangeState over the given node store with a full score and no
// active scenario.
func New(nodes *topology.Store, log logging.Logger, opts ...Option) *RangeState {
	if log == nil {
		log = logging.Noop()
	}
	s := &RangeState{
		nodes:       nodes,
		score:       MaxScore,
		operatorSet: make(map[string]struct{}),
		log:         log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked()
	return s
}

// Nodes exposes the underlying node store.
func (s *RangeState) Nodes() *topology.Store {
	return s.nodes
}

// GetNode returns a copy of the node with the given ID, or false if unknown.
func (s *RangeState) GetNode(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes.Get(id)
}

// ListNodes returns a snapshot of all nodes in topology order.
func (s *RangeState) ListNodes() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes.List()
}

// SetNodeStatus sets a node's status unconditionally. It reports whether the
// node exists.
func (s *RangeState) SetNodeStatus(id string, status model.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.nodes.SetStatus(id, status)
	if ok {
		s.updateMetricsLocked()
	}
	return ok
}

// SetNodeStatusIf sets a node's status only when its current status matches
// expect, reporting whether the update was applied. This guard is the
// concurrency control for delayed transitions racing newer operator actions.
func (s *RangeState) SetNodeStatusIf(id string, expect, status model.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.nodes.SetStatusIf(id, expect, status)
	if ok {
		s.updateMetricsLocked()
	}
	return ok
}

// AppendLog appends an entry to the event log. Entries are never mutated or
// individually removed afterwards.
func (s *RangeState) AppendLog(entry model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
}

// Logs returns a snapshot copy of the event log.
func (s *RangeState) Logs() []model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// AddScore adjusts the defensive score by delta, clamped to [MinScore,
// MaxScore], and returns the resulting score.
func (s *RangeState) AddScore(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.score += delta
	if s.score > MaxScore {
		s.score = MaxScore
	}
	if s.score < MinScore {
		s.score = MinScore
	}
	s.updateMetricsLocked()
	return s.score
}

// Score returns the current defensive score.
func (s *RangeState) Score() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score
}

// ActivateScenario marks the given scenario active if none is running. It
// reports whether activation happened; a trigger while one is active is a
// no-op, not an error.
func (s *RangeState) ActivateScenario(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeScenario != "" {
		return false
	}
	s.activeScenario = id
	s.updateMetricsLocked()
	return true
}

// ClearScenario clears the active scenario marker.
func (s *RangeState) ClearScenario() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeScenario = ""
	s.updateMetricsLocked()
}

// Scenario returns the active scenario identifier, empty when none.
func (s *RangeState) Scenario() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeScenario
}

// AddOperator adds a handle to the roster, reporting whether it was newly
// added. Adding an existing handle is a no-op.
func (s *RangeState) AddOperator(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.operatorSet[handle]; ok {
		return false
	}
	s.operatorSet[handle] = struct{}{}
	s.operators = append(s.operators, handle)
	s.updateMetricsLocked()
	return true
}

// RemoveOperator removes a handle from the roster, reporting whether it was
// present. Removal matches by handle value, not by connection identity.
func (s *RangeState) RemoveOperator(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.operatorSet[handle]; !ok {
		return false
	}
	delete(s.operatorSet, handle)
	for i, h := range s.operators {
		if h == handle {
			s.operators = append(s.operators[:i], s.operators[i+1:]...)
			break
		}
	}
	s.updateMetricsLocked()
	return true
}

// Operators returns the joined handles in join order.
func (s *RangeState) Operators() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.operators))
	copy(out, s.operators)
	return out
}

// Snapshot returns a coherent copy of all range state. Every external read
// of the aggregate (connect-time snapshots, reset payloads) goes through
// here so observers never see a partially applied mutation.
func (s *RangeState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]model.LogEntry, len(s.logs))
	copy(logs, s.logs)

	operators := make([]string, len(s.operators))
	copy(operators, s.operators)

	var scenario *string
	if s.activeScenario != "" {
		id := s.activeScenario
		scenario = &id
	}

	return Snapshot{
		Nodes:          s.nodes.List(),
		Logs:           logs,
		ActiveScenario: scenario,
		DefensiveScore: s.score,
		Operators:      operators,
	}
}

// Reset replaces the node set with a fresh copy of the template, clears the
// log, restores the score, and clears the scenario. The operator roster is
// left untouched; connected operators stay joined across a reset.
func (s *RangeState) Reset(ctx context.Context, template []model.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug(ctx, "resetting range state",
		logging.Int("nodes", s.nodes.Len()),
		logging.Int("logs", len(s.logs)),
		logging.Int("operators", len(s.operators)),
	)

	s.nodes.Replace(template)
	s.logs = nil
	s.score = MaxScore
	s.activeScenario = ""
	s.updateMetricsLocked()
}

// updateMetricsLocked pushes current gauge values into the metrics recorder.
// Caller must hold s.mu.
func (s *RangeState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	compromised := 0
	for _, n := range s.nodes.List() {
		if n.Status == model.StatusCompromised {
			compromised++
		}
	}
	s.metrics.SetRangeCounts(s.score, len(s.operators), compromised, s.activeScenario != "")
}
