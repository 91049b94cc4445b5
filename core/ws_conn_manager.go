package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnManager owns the live websocket connections. Each accepted connection
// gets a fresh uuid that serves as the connection id for its whole lifetime.
// Inbound events from every connection, as well as the synthetic
// EventConnected/EventDisconnected transitions, are funnelled onto one
// channel consumed by the EventRouter.
type ConnManager struct {
	conns   map[string]*Conn
	mu      sync.RWMutex
	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger

	receivedEvent chan *Event

	upgrader        websocket.Upgrader
	ReadStreamSize  int
	WriteStreamSize int
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ManagerOption func(*ConnManager)

func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func NewConnManager(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		connWg:          wg,
		conns:           make(map[string]*Conn),
		logger:          logger,
		context:         ctx,
		upgrader:        defaultUpgrader,
		ReadStreamSize:  100,
		WriteStreamSize: 100,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.receivedEvent = make(chan *Event, m.ReadStreamSize)

	return m
}

func (m *ConnManager) Receive() <-chan *Event {
	return m.receivedEvent
}

// Connect upgrades the request to a websocket connection, registers it under
// a fresh connection id, and emits EventConnected on the event stream.
func (m *ConnManager) Connect(w http.ResponseWriter, r *http.Request) (string, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return "", fmt.Errorf("Upgrade: %w", err)
	}

	id := uuid.NewString()
	wsConn := &Conn{
		conn:        conn,
		id:          id,
		context:     m.context,
		writeStream: make(chan *Event, m.WriteStreamSize),
		readStream:  m.receivedEvent,
		ticker:      time.NewTicker(pingPeriod),
		logger:      m.logger.With(slog.String("connection", id)),
		notifyDisconnect: func() {
			m.disconnect(id)
		},
	}
	m.mu.Lock()
	m.conns[id] = wsConn
	m.mu.Unlock()

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.readLoop()
	}()
	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.writeLoop()
	}()

	m.logger.Info("connection opened", slog.String("connection", id))
	m.receivedEvent <- &Event{Type: EventConnected, Dispatcher: id}

	return id, nil
}

// Close tears down every live connection.
func (m *ConnManager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.disconnect(id)
	}
}

func (m *ConnManager) disconnect(id string) {
	m.mu.Lock()
	conn, ok := m.conns[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, id)
	conn.close()
	m.mu.Unlock()

	m.logger.Info("connection closed", slog.String("connection", id))
	m.receivedEvent <- &Event{Type: EventDisconnected, Dispatcher: id}
}

func (m *ConnManager) Send(e *Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns {
		m.trySend(conn, e)
	}
}

func (m *ConnManager) SendToConns(e *Event, connIDs ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range connIDs {
		conn, ok := m.conns[id]
		if !ok {
			continue
		}
		m.trySend(conn, e)
	}
}

func (m *ConnManager) SendExcept(e *Event, exceptIDs ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, conn := range m.conns {
		if slices.Contains(exceptIDs, id) {
			continue
		}
		m.trySend(conn, e)
	}
}

// trySend never blocks the dispatch loop: when a connection's write buffer is
// full the event is dropped, which is acceptable for a best-effort feed.
func (m *ConnManager) trySend(c *Conn, e *Event) {
	select {
	case c.writeStream <- e:
	default:
		m.logger.Warn("dropping event for slow connection",
			slog.String("connection", c.id), slog.String("type", e.Type))
	}
}
