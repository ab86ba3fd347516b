package adminapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/whatsapp/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	data(t, rec, &status)
	assert.Equal(t, "whatsmeow", status["channel"])
	assert.Equal(t, true, status["connected"])
	assert.NotContains(t, status, "has_qr")

	ts.ch.setConnected(false)
	rec = ts.do(t, http.MethodGet, "/whatsapp/status", nil)
	data(t, rec, &status)
	assert.Equal(t, false, status["connected"])
}

func TestWhatsAppDeviceEndpointsWithoutService(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/whatsapp/qr", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "WA_NOT_INITIALIZED", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/whatsapp/connect", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
