package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsTestTimeout = 2 * time.Second

type wsFixture struct {
	manager *ConnManager
	server  *httptest.Server
	clients []*websocket.Conn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	t       *testing.T
}

func newWSFixture(t *testing.T) *wsFixture {
	ctx, cancel := context.WithCancel(context.Background())
	f := &wsFixture{cancel: cancel, t: t}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	f.manager = NewConnManager(ctx, &f.wg, logger)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := f.manager.Connect(w, r); err != nil {
			t.Log(err)
		}
	}))
	return f
}

// connect dials a new client and returns it along with the connection id the
// manager assigned, taken from the lifecycle event on the receive stream.
func (f *wsFixture) connect() (*websocket.Conn, string) {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	require.Equal(f.t, http.StatusSwitchingProtocols, res.StatusCode)
	f.clients = append(f.clients, conn)

	e := f.receive()
	require.Equal(f.t, EventConnected, e.Type)
	require.NotEmpty(f.t, e.Dispatcher)
	return conn, e.Dispatcher
}

func (f *wsFixture) receive() *Event {
	select {
	case e := <-f.manager.Receive():
		return e
	case <-time.After(wsTestTimeout):
		f.t.Fatal("timed out waiting for event from manager")
		return nil
	}
}

func (f *wsFixture) send(conn *websocket.Conn, e *Event) {
	b, err := json.Marshal(e)
	require.NoError(f.t, err)
	require.NoError(f.t, conn.WriteMessage(websocket.TextMessage, b))
}

func (f *wsFixture) read(conn *websocket.Conn) *Event {
	conn.SetReadDeadline(time.Now().Add(wsTestTimeout))
	_, b, err := conn.ReadMessage()
	require.NoError(f.t, err)
	var e Event
	require.NoError(f.t, json.Unmarshal(b, &e))
	return &e
}

func (f *wsFixture) tearDown() {
	for _, c := range f.clients {
		c.Close()
	}
	f.manager.Close()
	f.server.Close()
	f.cancel()
	f.wg.Wait()
}

func Test_ConnManager_Lifecycle(t *testing.T) {
	f := newWSFixture(t)
	defer f.tearDown()

	conn, id := f.connect()

	f.send(conn, &Event{Type: "ping", Payload: json.RawMessage(`"hello"`)})
	e := f.receive()
	assert.Equal(t, "ping", e.Type)
	assert.Equal(t, id, e.Dispatcher)
	assert.JSONEq(t, `"hello"`, string(e.Payload))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	e = f.receive()
	assert.Equal(t, EventDisconnected, e.Type)
	assert.Equal(t, id, e.Dispatcher)
}

func Test_ConnManager_DropsReservedEventTypes(t *testing.T) {
	f := newWSFixture(t)
	defer f.tearDown()

	conn, id := f.connect()

	// clients must not be able to forge lifecycle transitions
	f.send(conn, &Event{Type: EventDisconnected})
	f.send(conn, &Event{Type: "after"})

	e := f.receive()
	assert.Equal(t, "after", e.Type)
	assert.Equal(t, id, e.Dispatcher)
}

func Test_ConnManager_Send(t *testing.T) {
	f := newWSFixture(t)
	defer f.tearDown()

	conn1, _ := f.connect()
	conn2, _ := f.connect()

	f.manager.Send(&Event{Type: "broadcast", Payload: json.RawMessage(`1`)})

	assert.Equal(t, "broadcast", f.read(conn1).Type)
	assert.Equal(t, "broadcast", f.read(conn2).Type)
}

func Test_ConnManager_SendToConns(t *testing.T) {
	f := newWSFixture(t)
	defer f.tearDown()

	conn1, id1 := f.connect()
	conn2, _ := f.connect()

	f.manager.SendToConns(&Event{Type: "targeted", Payload: json.RawMessage(`1`)}, id1, "unknown-id")
	// the marker proves nothing else was queued for conn2
	f.manager.Send(&Event{Type: "marker", Payload: json.RawMessage(`2`)})

	assert.Equal(t, "targeted", f.read(conn1).Type)
	assert.Equal(t, "marker", f.read(conn1).Type)
	assert.Equal(t, "marker", f.read(conn2).Type)
}

func Test_ConnManager_SendExcept(t *testing.T) {
	f := newWSFixture(t)
	defer f.tearDown()

	conn1, id1 := f.connect()
	conn2, _ := f.connect()

	f.manager.SendExcept(&Event{Type: "others", Payload: json.RawMessage(`1`)}, id1)
	f.manager.Send(&Event{Type: "marker", Payload: json.RawMessage(`2`)})

	assert.Equal(t, "others", f.read(conn2).Type)
	assert.Equal(t, "marker", f.read(conn2).Type)
	assert.Equal(t, "marker", f.read(conn1).Type)
}
