package whatsapp

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/notify"
	"go.uber.org/zap"
)

const defaultGatewayTimeout = 15 * time.Second

// Gateway delivers through an HTTP WhatsApp gateway:
//
//	POST {url}/send   {"to", "type", "message"} -> {"success", "message_id", "status", "error"}
//	GET  {url}/status -> {"connected"}
//
// A "queued" status is reported as a pending delivery.
type Gateway struct {
	url       string
	apiKey    string
	timeout   time.Duration
	connected atomic.Bool
}

var _ notify.DeliveryChannel = (*Gateway)(nil)

var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("toughmeeting/gateway/send"))

// idempotencyKey is stable for one recipient and message so the gateway can
// drop a retried send it already accepted.
func idempotencyKey(typ, to, message string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(typ+"\x00"+to+"\x00"+message)).String()
}

type gatewaySendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

type gatewayStatusResponse struct {
	Connected bool `json:"connected"`
}

func NewGateway(url, apiKey string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &Gateway{url: strings.TrimRight(url, "/"), apiKey: apiKey, timeout: timeout}
}

func (g *Gateway) headers(extra gout.H) gout.H {
	h := gout.H{"Authorization": "Bearer " + g.apiKey}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

// Refresh polls the gateway status; IsConnected reports the last result.
func (g *Gateway) Refresh(ctx context.Context) bool {
	var resp gatewayStatusResponse
	var code int
	err := gout.GET(g.url + "/status").
		WithContext(ctx).
		SetTimeout(g.timeout).
		SetHeader(g.headers(nil)).
		BindJSON(&resp).
		Code(&code).
		Do()
	connected := err == nil && code == http.StatusOK && resp.Connected
	if err != nil {
		zap.L().Warn("whatsapp gateway: status check failed", zap.Error(err))
	}
	if g.connected.Swap(connected) != connected {
		zap.L().Info("whatsapp gateway: connection state changed", zap.Bool("connected", connected))
	}
	return connected
}

func (g *Gateway) IsConnected() bool {
	return g.connected.Load()
}

func (g *Gateway) SendToIndividual(ctx context.Context, address, message string) (*notify.DeliveryResult, error) {
	return g.send(ctx, domain.MessageTypeIndividual, address, message)
}

func (g *Gateway) SendToGroup(ctx context.Context, groupID, message string) (*notify.DeliveryResult, error) {
	return g.send(ctx, domain.MessageTypeGroup, groupID, message)
}

func (g *Gateway) send(ctx context.Context, typ, to, message string) (*notify.DeliveryResult, error) {
	var resp gatewaySendResponse
	var code int
	err := gout.POST(g.url + "/send").
		WithContext(ctx).
		SetTimeout(g.timeout).
		SetHeader(g.headers(gout.H{"Idempotency-Key": idempotencyKey(typ, to, message)})).
		SetJSON(gout.H{
			"to":      to,
			"type":    typ,
			"message": message,
		}).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "gateway request")
	}
	if code >= http.StatusBadRequest || !resp.Success {
		detail := resp.Error
		if detail == "" {
			detail = http.StatusText(code)
		}
		return nil, errors.Errorf("gateway rejected message (%d): %s", code, detail)
	}
	return &notify.DeliveryResult{
		ProviderMessageID: resp.MessageID,
		Pending:           strings.EqualFold(resp.Status, "queued") || strings.EqualFold(resp.Status, domain.DeliveryPending),
	}, nil
}
