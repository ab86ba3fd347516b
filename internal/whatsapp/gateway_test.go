package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayStub struct {
	mu        sync.Mutex
	connected bool
	status    string
	fail      bool
	requests  []map[string]string
	keys      []string
}

func (g *gatewayStub) set(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

func (g *gatewayStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]bool{"connected": g.connected})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		g.requests = append(g.requests, body)
		g.keys = append(g.keys, r.Header.Get("Idempotency-Key"))
		if g.fail {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "device offline"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"message_id": "gw-1",
			"status":     g.status,
		})
	})
	return mux
}

func TestGatewaySend(t *testing.T) {
	stub := &gatewayStub{connected: true, status: "sent"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()
	gw := NewGateway(srv.URL+"/", "secret", time.Second)
	ctx := context.Background()

	assert.False(t, gw.IsConnected())
	assert.True(t, gw.Refresh(ctx))
	assert.True(t, gw.IsConnected())

	res, err := gw.SendToIndividual(ctx, "6281234567890", "halo")
	require.NoError(t, err)
	assert.Equal(t, "gw-1", res.ProviderMessageID)
	assert.False(t, res.Pending)

	stub.set(func() { stub.status = "queued" })
	res, err = gw.SendToGroup(ctx, "120363025246125486@g.us", "jadwal")
	require.NoError(t, err)
	assert.True(t, res.Pending)

	stub.set(func() { stub.fail = true })
	_, err = gw.SendToIndividual(ctx, "6281234567890", "halo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device offline")

	require.Len(t, stub.requests, 3)
	assert.Equal(t, "individual", stub.requests[0]["type"])
	assert.Equal(t, "group", stub.requests[1]["type"])
	assert.Equal(t, "jadwal", stub.requests[1]["message"])
	assert.NotEmpty(t, stub.keys[0])
	assert.NotEqual(t, stub.keys[0], stub.keys[1])
	// a retried send carries the same key
	assert.Equal(t, stub.keys[0], stub.keys[2])
}

func TestIdempotencyKey(t *testing.T) {
	key := idempotencyKey("individual", "6281234567890", "halo")
	assert.Equal(t, key, idempotencyKey("individual", "6281234567890", "halo"))
	assert.NotEqual(t, key, idempotencyKey("individual", "6289876543210", "halo"))
	assert.NotEqual(t, key, idempotencyKey("individual", "6281234567890", "halo lagi"))
	assert.NotEqual(t, key, idempotencyKey("group", "6281234567890", "halo"))
}

func TestGatewayUnreachable(t *testing.T) {
	stub := &gatewayStub{connected: true}
	srv := httptest.NewServer(stub.handler(t))
	gw := NewGateway(srv.URL, "secret", time.Second)
	require.True(t, gw.Refresh(context.Background()))
	srv.Close()

	assert.False(t, gw.Refresh(context.Background()))
	assert.False(t, gw.IsConnected())
	_, err := gw.SendToIndividual(context.Background(), "6281234567890", "halo")
	assert.Error(t, err)
}
