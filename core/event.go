package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Reserved event types emitted by the transport itself when a connection is
// opened or torn down. Inbound events with the reserved prefix are dropped at
// the read loop so clients cannot forge lifecycle transitions.
const (
	reservedEventPrefix = "_"

	EventConnected    = "_connected"
	EventDisconnected = "_disconnected"
)

// Event is the unit exchanged with clients: a type tag and a JSON payload.
// Dispatcher carries the connection id the event originated from and never
// crosses the wire.
type Event struct {
	Dispatcher string          `json:"-"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Dispatcher: %s, Type: %s, Payload.Size: %d}", e.Dispatcher, e.Type, len(e.Payload))
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

func reservedEventType(t string) bool {
	return strings.HasPrefix(t, reservedEventPrefix)
}

// EventTransport delivers events to connections and surfaces inbound events
// on a single channel.
type EventTransport interface {
	// Send delivers the event to every connection.
	Send(event *Event)
	// SendToConns delivers the event to the given connections. Unknown ids
	// are skipped.
	SendToConns(event *Event, connIDs ...string)
	// SendExcept delivers the event to every connection except the given ones.
	SendExcept(event *Event, exceptIDs ...string)
	Receive() <-chan *Event
}

type EventHandler func(context.Context, *Event) error

// EventRouter dispatches inbound events to registered handlers. Listen
// drains the transport in a single goroutine and runs handlers synchronously,
// so each event's state mutations complete before the next event is looked
// at. This is the only place shared chat state is mutated.
type EventRouter struct {
	listeners map[string]EventHandler
	ctx       context.Context
	transport EventTransport
	logger    *slog.Logger
	exit      chan struct{}
	done      chan struct{}
	once      sync.Once
}

func NewEventRouter(ctx context.Context, logger *slog.Logger, transport EventTransport) *EventRouter {
	return &EventRouter{
		listeners: make(map[string]EventHandler),
		ctx:       ctx,
		transport: transport,
		logger:    logger,
		exit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// On registers a handler for an event type. It panics when a handler is
// already registered for the type, as that is always a wiring bug.
func (em *EventRouter) On(eventType string, handler EventHandler) {
	if _, ok := em.listeners[eventType]; ok {
		panic(fmt.Sprintf("handler(%s): already registered", eventType))
	}
	em.listeners[eventType] = handler
}

// Listen starts the dispatch loop. Handlers must be registered before Listen
// is called.
func (em *EventRouter) Listen() {
	go func() {
		defer close(em.done)
		for {
			select {
			case <-em.exit:
				return
			case e := <-em.transport.Receive():
				em.Dispatch(e)
			}
		}
	}()
	em.logger.Info("event router started")
}

// Close stops the dispatch loop, waiting for the in-flight event to finish or
// the context to expire.
func (em *EventRouter) Close(ctx context.Context) {
	em.once.Do(func() {
		close(em.exit)
	})
	select {
	case <-em.done:
		em.logger.Info("event router stopped")
	case <-ctx.Done():
		em.logger.Error("event router close timed out")
	}
}

// Dispatch runs the handler registered for the event synchronously. The
// Listen loop is the only production caller; calling it from elsewhere
// bypasses the serialization the loop provides.
func (em *EventRouter) Dispatch(e *Event) {
	em.logger.Debug(fmt.Sprintf("received: %v", e))
	handler, ok := em.listeners[e.Type]
	if !ok {
		em.logger.Debug(fmt.Sprintf("no handler for %s", e.Type))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			em.logger.Error(fmt.Sprintf("%s handler panicked: %v", e.Type, r))
		}
	}()
	if err := handler(em.ctx, e); err != nil {
		em.logger.Error(fmt.Sprintf("%s handler: %s", e.Type, err))
	}
}

// Emit broadcasts an event to every connection.
func (em *EventRouter) Emit(t string, payload interface{}) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.Send(e)
	return nil
}

// EmitTo sends an event to the given connections only.
func (em *EventRouter) EmitTo(t string, payload interface{}, connIDs ...string) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.SendToConns(e, connIDs...)
	return nil
}

// EmitExcept broadcasts an event to every connection except the given ones.
func (em *EventRouter) EmitExcept(t string, payload interface{}, exceptIDs ...string) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.SendExcept(e, exceptIDs...)
	return nil
}

func newEvent(t string, payload interface{}) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{Type: t, Payload: b}, nil
}
