// Package core implements the range engine: operator action dispatch, the
// scenario runner with its autonomous transitions, and the reset operation.
package core

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/signalsfoundry/cyberrange-simulator/internal/logging"
	"github.com/signalsfoundry/cyberrange-simulator/internal/sched"
	"github.com/signalsfoundry/cyberrange-simulator/internal/sim/state"
	"github.com/signalsfoundry/cyberrange-simulator/model"
	"github.com/signalsfoundry/cyberrange-simulator/timectrl"
)

// Operator action types.
const (
	ActionIsolate = "isolate"
	ActionScan    = "scan"
	ActionPatch   = "patch"
)

// Outbound notification names. These are the wire contract shared with the
// observer UI; the transport layer forwards them verbatim.
const (
	EventInitState      = "init_state"
	EventUpdateTeam     = "update_team"
	EventNewLog         = "new_log"
	EventUpdateNodes    = "update_nodes"
	EventUpdateScore    = "update_score"
	EventScenarioActive = "scenario_active"
	EventResetClient    = "reset_client"
)

// Publisher delivers a notification to every connected observer. Every
// mutating engine operation ends with Publish calls; keeping fan-out behind
// this single seam guarantees no mutation path forgets to notify.
type Publisher interface {
	Publish(event string, payload any)
}

// Config tunes the engine's delays and score adjustments. Zero values are
// replaced by the standard defaults.
type Config struct {
	ScanRevertDelay time.Duration
	AttackDelay     time.Duration
	ExpiryDelay     time.Duration
	PatchReward     int
	AttackPenalty   int
}

// DefaultConfig returns the standard timings and score adjustments.
func DefaultConfig() Config {
	return Config{
		ScanRevertDelay: 3 * time.Second,
		AttackDelay:     2 * time.Second,
		ExpiryDelay:     5 * time.Second,
		PatchReward:     5,
		AttackPenalty:   15,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ScanRevertDelay <= 0 {
		c.ScanRevertDelay = def.ScanRevertDelay
	}
	if c.AttackDelay <= 0 {
		c.AttackDelay = def.AttackDelay
	}
	if c.ExpiryDelay <= 0 {
		c.ExpiryDelay = def.ExpiryDelay
	}
	if c.PatchReward <= 0 {
		c.PatchReward = def.PatchReward
	}
	if c.AttackPenalty <= 0 {
		c.AttackPenalty = def.AttackPenalty
	}
	return c
}

// Engine is the single mutation path for the range. Inbound operator events
// and fired autonomous transitions both funnel through it; each mutation is
// committed against RangeState and then broadcast, never holding state open
// across a suspension point.
type Engine struct {
	state    *state.RangeState
	sched    sched.Scheduler
	clock    timectrl.SimClock
	pub      Publisher
	template []model.Node
	cfg      Config
	log      logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithRand injects a deterministic randomness source for attack target
// selection. Tests use this to assert targets without flakiness.
func WithRand(r *rand.Rand) EngineOption {
	return func(e *Engine) {
		e.rng = r
	}
}

// NewEngine wires the engine over its collaborators and appends the boot
// log entry.
func NewEngine(st *state.RangeState, scheduler sched.Scheduler, clock timectrl.SimClock, pub Publisher, template []model.Node, cfg Config, log logging.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	e := &Engine{
		state:    st,
		sched:    scheduler,
		clock:    clock,
		pub:      pub,
		template: template,
		cfg:      cfg.withDefaults(),
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	st.AppendLog(GenerateLog(model.SeverityInfo, "SYSTEM", "SERVER", "0000",
		"Server Uplink Established. Waiting for agents."))

	return e
}

// Snapshot returns the full current range state for connect-time delivery.
func (e *Engine) Snapshot() state.Snapshot {
	return e.state.Snapshot()
}

// Join adds an operator handle to the roster (idempotently), broadcasts the
// roster, and logs the join.
func (e *Engine) Join(ctx context.Context, handle string) {
	e.state.AddOperator(handle)
	e.pub.Publish(EventUpdateTeam, e.state.Operators())

	entry := GenerateLog(model.SeverityInfo, "SYSTEM", "AUTH", "1000",
		fmt.Sprintf("Agent %s connected to the range.", handle))
	e.state.AppendLog(entry)
	e.pub.Publish(EventNewLog, entry)

	e.log.Info(ctx, "operator joined", logging.String("handle", handle))
}

// Disconnect removes a session's handle from the roster and broadcasts the
// roster. Sessions that never joined pass an empty handle and this is a
// no-op.
//
// Removal matches by handle value: if two sessions joined with the same
// handle, one disconnecting evicts the handle even though the other session
// is still live.
func (e *Engine) Disconnect(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	e.state.RemoveOperator(handle)
	e.pub.Publish(EventUpdateTeam, e.state.Operators())

	e.log.Info(ctx, "operator disconnected", logging.String("handle", handle))
}

// PerformAction applies a single operator action to one node. An unknown
// node ID is a silent no-op: no mutation, no log, no broadcast.
func (e *Engine) PerformAction(ctx context.Context, actionType, nodeID, handle string) {
	node, ok := e.state.GetNode(nodeID)
	if !ok {
		return
	}

	var msg string
	switch actionType {
	case ActionIsolate:
		e.state.SetNodeStatus(nodeID, model.StatusIsolated)
		msg = fmt.Sprintf("Host %s isolated by %s.", node.IP, handle)

	case ActionScan:
		e.state.SetNodeStatus(nodeID, model.StatusScanning)
		msg = fmt.Sprintf("Deep scan initiated on %s by %s.", node.IP, handle)
		e.scheduleScanRevert(nodeID)

	case ActionPatch:
		e.state.SetNodeStatus(nodeID, model.StatusSecure)
		msg = fmt.Sprintf("Patch applied to %s by %s.", node.IP, handle)
		e.state.AddScore(e.cfg.PatchReward)
	}

	entry := GenerateLog(model.SeverityInfo, handle, node.IP, "ACTION", msg)
	e.state.AppendLog(entry)

	// The score broadcast is informational even for branches that left the
	// score unchanged.
	e.pub.Publish(EventUpdateNodes, e.state.ListNodes())
	e.pub.Publish(EventNewLog, entry)
	e.pub.Publish(EventUpdateScore, e.state.Score())

	e.log.Debug(ctx, "action performed",
		logging.String("action", actionType),
		logging.String("node", nodeID),
		logging.String("handle", handle),
	)
}

// scheduleScanRevert registers the scan's autonomous revert. The revert
// re-resolves the node at fire time and only applies while the status is
// still scanning, so a stale timer never clobbers a newer status. Repeated
// scans simply schedule additional reverts; the guard makes them idempotent.
func (e *Engine) scheduleScanRevert(nodeID string) {
	e.sched.Schedule(e.clock.Now().Add(e.cfg.ScanRevertDelay), func() {
		if e.state.SetNodeStatusIf(nodeID, model.StatusScanning, model.StatusSecure) {
			e.pub.Publish(EventUpdateNodes, e.state.ListNodes())
		}
	})
}

// TriggerScenario starts a scenario if none is active; otherwise it is a
// silent no-op. The attack injection fires unconditionally after the attack
// delay, and expiry is scheduled off the attack, so a scenario always ends
// exactly once.
func (e *Engine) TriggerScenario(ctx context.Context, scenarioID string) {
	if !e.state.ActivateScenario(scenarioID) {
		return
	}
	e.pub.Publish(EventScenarioActive, scenarioID)

	alert := GenerateLog(model.SeverityAlert, "SIEM", "SOC", "9999",
		fmt.Sprintf("THREAT DETECTED: Scenario %s initiated.", scenarioID))
	e.state.AppendLog(alert)
	e.pub.Publish(EventNewLog, alert)

	e.log.Info(ctx, "scenario triggered", logging.String("scenario", scenarioID))

	e.sched.Schedule(e.clock.Now().Add(e.cfg.AttackDelay), func() {
		e.runAttack(ctx)
	})
}

// runAttack compromises one node chosen uniformly at random from the
// topology as it exists at fire time, then schedules the scenario expiry.
func (e *Engine) runAttack(ctx context.Context) {
	nodes := e.state.ListNodes()
	if len(nodes) > 0 {
		target := nodes[e.intn(len(nodes))]

		e.state.SetNodeStatus(target.ID, model.StatusCompromised)
		e.state.AddScore(-e.cfg.AttackPenalty)

		attack := GenerateLog(model.SeverityCritical, "UNKNOWN", target.IP, "HACK",
			"Malicious activity detected!")
		e.state.AppendLog(attack)

		e.pub.Publish(EventUpdateNodes, e.state.ListNodes())
		e.pub.Publish(EventNewLog, attack)
		e.pub.Publish(EventUpdateScore, e.state.Score())

		e.log.Info(ctx, "scenario attack fired",
			logging.String("target", target.ID),
			logging.Int("score", e.state.Score()),
		)
	}

	e.sched.Schedule(e.clock.Now().Add(e.cfg.ExpiryDelay), func() {
		e.state.ClearScenario()
		e.pub.Publish(EventScenarioActive, nil)
		e.log.Info(ctx, "scenario expired")
	})
}

// Reset restores the range to its initial template, keeping the operator
// roster, and broadcasts the full replacement state.
func (e *Engine) Reset(ctx context.Context) {
	e.state.Reset(ctx, e.template)
	e.pub.Publish(EventResetClient, e.state.Snapshot())

	e.log.Info(ctx, "range reset")
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}
