package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"go.uber.org/zap"
)

func registerWhatsAppRoutes() {
	webserver.ApiGET("/whatsapp/status", getWhatsAppStatus)
	webserver.ApiGET("/whatsapp/qr", getWhatsAppQR)
	webserver.ApiPOST("/whatsapp/connect", postWhatsAppConnect)
}

// getWhatsAppStatus reports the live channel state next to the mirrored flag.
func getWhatsAppStatus(c echo.Context) error {
	appCtx := GetAppContext(c)
	resp := map[string]interface{}{
		"channel":   appCtx.Config().Notify.Channel,
		"connected": appCtx.Channel().IsConnected(),
	}
	if s, err := appCtx.Settings().Get(c.Request().Context()); err == nil {
		resp["last_group_notification"] = s.LastGroupNotification
	}
	if svc := appCtx.WhatsApp(); svc != nil {
		resp["has_qr"] = svc.GetQRCode() != ""
	}
	return ok(c, resp)
}

// getWhatsAppQR returns the latest QR code string (if any). The frontend
// should render the QR client-side from this string value.
func getWhatsAppQR(c echo.Context) error {
	svc := GetAppContext(c).WhatsApp()
	if svc == nil {
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp device channel not enabled", nil)
	}
	code := svc.GetQRCode()
	return ok(c, map[string]interface{}{
		"code":   code,
		"has_qr": code != "",
	})
}

// postWhatsAppConnect triggers a connect attempt (non-blocking). Any QR
// emitted by the client is exposed via GET /whatsapp/qr.
func postWhatsAppConnect(c echo.Context) error {
	svc := GetAppContext(c).WhatsApp()
	if svc == nil {
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_INITIALIZED", "WhatsApp device channel not enabled", nil)
	}
	svc.ConnectAsync()
	zap.L().Info("adminapi: triggered whatsapp connect")
	audit(c, "whatsapp.connect", "")
	return ok(c, map[string]interface{}{"started": true})
}
