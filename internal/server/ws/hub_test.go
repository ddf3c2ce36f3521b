package ws

import (
	"context"
	"encoding/json"
	"io"
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

type chanBus struct {
	ch chan []byte

	mu      sync.Mutex
	channel string
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	b.channel = channel
	b.mu.Unlock()
	return b.ch, nil
}

func startHub(t *testing.T, origins []string) (*Hub, *chanBus, *httptest.Server) {
	t.Helper()
	bus := &chanBus{ch: make(chan []byte, 4)}
	hub := NewHub(bus, "leaderboard", origins, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, bus, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubRelaysBusMessages(t *testing.T) {
	hub, bus, srv := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	typ, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	var hello map[string]any
	require.NoError(t, json.Unmarshal(msg, &hello))
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, "leaderboard", hello["channel"])
	bus.mu.Lock()
	assert.Equal(t, "leaderboard", bus.channel)
	bus.mu.Unlock()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	event := []byte(`{"type":"snapshots_updated","traderIds":["a"]}`)
	require.NoError(t, bus.Publish(context.Background(), "leaderboard", event))

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(event), string(msg))
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, _, srv := startHub(t, []string{"https://app.example"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://app.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}

func TestAttachQueuesHelloBeforeRegister(t *testing.T) {
	hub := NewHub(nil, "leaderboard", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := &client{hub: hub, send: make(chan []byte, sendBufferSize)}

	attached := make(chan bool, 1)
	go func() { attached <- hub.attach(c) }()

	got := <-hub.register
	require.Len(t, got.send, 1, "hello must be queued before the hub owns the client")
	// a stopping hub closes send straight after registration
	close(got.send)
	assert.True(t, <-attached)

	msg := <-got.send
	var hello map[string]any
	require.NoError(t, json.Unmarshal(msg, &hello))
	assert.Equal(t, "hello", hello["type"])
}

func TestAttachAfterStop(t *testing.T) {
	hub := NewHub(nil, "leaderboard", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, hub.Run(ctx))

	c := &client{hub: hub, send: make(chan []byte, sendBufferSize)}
	assert.False(t, hub.attach(c))
}
