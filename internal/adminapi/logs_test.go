package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/repository"
)

func TestWhatsAppLogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	sentAt := time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC)

	pending := &domain.WhatsAppLog{
		MessageType:       domain.MessageTypeIndividual,
		TriggerType:       domain.TriggerScheduled,
		MeetingID:         7,
		Recipient:         "6281234567890",
		RecipientName:     "Budi",
		Message:           "halo",
		Status:            domain.DeliveryPending,
		ProviderMessageID: "gw-1",
		DurationMs:        120,
		MeetingTitle:      "Evaluasi",
		SentAt:            sentAt,
	}
	require.NoError(t, ts.app.WhatsAppLogs().Record(ctx, pending))
	require.NoError(t, ts.app.WhatsAppLogs().Record(ctx, &domain.WhatsAppLog{
		MessageType:  domain.MessageTypeGroup,
		TriggerType:  domain.TriggerManual,
		Recipient:    "120363025246125486@g.us",
		Status:       domain.DeliveryFailed,
		ErrorMessage: "not connected",
		SentAt:       sentAt.Add(time.Minute),
	}))

	rec := ts.do(t, http.MethodPost, "/whatsapp/logs/confirm", map[string]interface{}{
		"provider_message_id": "gw-1", "status": "delivered",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/whatsapp/logs/confirm", map[string]interface{}{"status": "success"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FIELDS", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/whatsapp/logs/confirm", map[string]interface{}{
		"provider_message_id": "gw-1", "status": "success",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/whatsapp/logs/confirm", map[string]interface{}{
		"provider_message_id": "gw-1", "status": "success",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PENDING_NOT_FOUND", errorCode(t, rec))

	rec = ts.do(t, http.MethodGet, "/whatsapp/logs/"+idString(pending.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entry domain.WhatsAppLog
	data(t, rec, &entry)
	assert.Equal(t, domain.DeliverySuccess, entry.Status)

	rec = ts.do(t, http.MethodGet, "/whatsapp/logs?message_type=group", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Meta.Total)

	rec = ts.do(t, http.MethodGet, "/whatsapp/logs?from=2025-01-10T01:00:30Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Meta.Total)

	rec = ts.do(t, http.MethodGet, "/whatsapp/logs?meeting_id=seven", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/whatsapp/logs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats repository.LogStats
	data(t, rec, &stats)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.ByStatus[domain.DeliverySuccess])
	assert.EqualValues(t, 1, stats.ByStatus[domain.DeliveryFailed])
	assert.InDelta(t, 50, stats.SuccessPct, 0.01)

	rec = ts.do(t, http.MethodGet, "/whatsapp/logs/123", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
