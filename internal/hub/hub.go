// Package hub is the websocket transport for the range: it tracks connected
// operator sessions and fans out every engine notification to all of them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/cyberrange-simulator/core"
	"github.com/signalsfoundry/cyberrange-simulator/internal/logging"
	"github.com/signalsfoundry/cyberrange-simulator/internal/sim/state"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 32 * 1024
)

// Metrics receives transport-level measurements. All methods must tolerate
// being called from multiple goroutines.
type Metrics interface {
	IncEvent(event string)
	ObserveEvent(event string, d time.Duration)
	SetConnectedClients(n int)
}

// Engine is the subset of the range engine the hub drives.
type Engine interface {
	Snapshot() state.Snapshot
	Join(ctx context.Context, handle string)
	Disconnect(ctx context.Context, handle string)
	PerformAction(ctx context.Context, actionType, nodeID, handle string)
	TriggerScenario(ctx context.Context, scenarioID string)
	Reset(ctx context.Context)
}

// subscriber is one connected observer. Writes are guarded by the
// subscriber's own mutex so broadcasts and snapshots never interleave
// mid-frame.
type subscriber struct {
	id   string
	conn *websocket.Conn

	mu sync.Mutex

	// handle is the operator handle this session joined with, empty until
	// a join arrives. Guarded by mu.
	handle string
}

func (s *subscriber) writeMessage(data []byte) error {
	if s == nil || s.conn == nil {
		return errors.New("subscriber closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *subscriber) setHandle(h string) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

func (s *subscriber) joinedHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Hub upgrades operator connections, routes their inbound events into the
// engine, and implements core.Publisher for the engine's broadcasts.
type Hub struct {
	engine  Engine
	log     logging.Logger
	metrics Metrics
	tracer  trace.Tracer

	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[string]*subscriber

	nextID atomic.Uint64
}

// New constructs a hub. The engine is attached with SetEngine once it has
// been built over the hub's Publish; metrics may be nil.
func New(log logging.Logger, metrics Metrics) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("cyberrange/hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The range is an open LAN tool; origins are not restricted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subscribers: make(map[string]*subscriber),
	}
}

// SetEngine attaches the range engine. Hub and engine reference each other
// (the engine broadcasts through Publish, the hub dispatches into the
// engine), so the engine is bound after construction and before serving.
func (h *Hub) SetEngine(engine Engine) {
	h.engine = engine
}

// Publish implements core.Publisher: marshal once, deliver to every
// connected observer, prune subscribers whose writes fail.
func (h *Hub) Publish(event string, payload any) {
	data, err := json.Marshal(outbound{Event: event, Payload: payload})
	if err != nil {
		h.log.Error(context.Background(), "failed to marshal broadcast",
			logging.String("event", event),
			logging.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.writeMessage(data); err != nil {
			h.log.Debug(context.Background(), "dropping subscriber after failed write",
				logging.String("subscriber", sub.id),
				logging.String("event", event),
				logging.String("error", err.Error()),
			)
			// Dropping re-enters Publish via the engine's roster broadcast,
			// so it must happen off this call stack.
			go h.drop(context.Background(), sub)
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket session and pumps its
// inbound events until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		http.Error(w, "hub not ready", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.String("error", err.Error()))
		return
	}

	ctx, log := logging.WithSessionLogger(context.Background(), h.log)
	sub := h.subscribe(conn)
	log.Info(ctx, "observer connected", logging.String("subscriber", sub.id))

	defer func() {
		h.drop(ctx, sub)
		log.Info(ctx, "observer disconnected", logging.String("subscriber", sub.id))
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Malformed frames are a transport concern; drop them here so
			// they never reach the engine.
			log.Debug(ctx, "dropping malformed frame", logging.String("error", err.Error()))
			continue
		}
		h.dispatch(ctx, sub, env)
	}
}

// subscribe registers the connection and delivers the full-state snapshot to
// it alone. Registration and the snapshot write share the hub lock so no
// broadcast can interleave before the snapshot.
func (h *Hub) subscribe(conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		id:   fmt.Sprintf("sub-%d", h.nextID.Add(1)),
		conn: conn,
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)

	if data, err := json.Marshal(outbound{Event: core.EventInitState, Payload: h.engine.Snapshot()}); err == nil {
		_ = sub.writeMessage(data)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetConnectedClients(count)
	}
	return sub
}

// drop removes a subscriber, closes its connection, and tells the engine the
// session disconnected. Safe to call more than once per subscriber.
func (h *Hub) drop(ctx context.Context, sub *subscriber) {
	h.mu.Lock()
	_, present := h.subscribers[sub.id]
	delete(h.subscribers, sub.id)
	count := len(h.subscribers)
	h.mu.Unlock()

	if !present {
		return
	}

	_ = sub.conn.Close()
	if h.metrics != nil {
		h.metrics.SetConnectedClients(count)
	}
	h.engine.Disconnect(ctx, sub.joinedHandle())
}

// dispatch routes one inbound envelope into the engine.
func (h *Hub) dispatch(ctx context.Context, sub *subscriber, env envelope) {
	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "hub.dispatch",
		trace.WithAttributes(attribute.String("range.event", env.Event)),
	)
	defer span.End()

	switch env.Event {
	case EventJoin:
		var handle string
		if err := json.Unmarshal(env.Payload, &handle); err != nil || handle == "" {
			break
		}
		sub.setHandle(handle)
		h.engine.Join(ctx, handle)

	case EventPerformAction:
		var action actionPayload
		if err := json.Unmarshal(env.Payload, &action); err != nil {
			break
		}
		h.engine.PerformAction(ctx, action.ActionType, action.NodeID, action.Handle)

	case EventTriggerScenario:
		var scenarioID string
		if err := json.Unmarshal(env.Payload, &scenarioID); err != nil || scenarioID == "" {
			break
		}
		h.engine.TriggerScenario(ctx, scenarioID)

	case EventResetSim:
		h.engine.Reset(ctx)

	default:
		h.log.Debug(ctx, "ignoring unknown event", logging.String("event", env.Event))
	}

	if h.metrics != nil {
		h.metrics.IncEvent(env.Event)
		h.metrics.ObserveEvent(env.Event, time.Since(start))
	}
}

// ConnectedClients reports the number of live subscriber connections.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
