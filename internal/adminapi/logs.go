package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughmeeting/internal/repository"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"gorm.io/gorm"
)

func registerLogRoutes() {
	webserver.ApiGET("/whatsapp/logs", listWhatsAppLogs)
	webserver.ApiGET("/whatsapp/logs/stats", getWhatsAppLogStats)
	webserver.ApiGET("/whatsapp/logs/:id", getWhatsAppLog)
	webserver.ApiPOST("/whatsapp/logs/confirm", confirmWhatsAppDelivery)
}

func parseLogQuery(c echo.Context) (repository.LogQuery, error) {
	q := repository.LogQuery{
		MessageType: strings.TrimSpace(c.QueryParam("message_type")),
		TriggerType: strings.TrimSpace(c.QueryParam("trigger_type")),
		Status:      strings.TrimSpace(c.QueryParam("status")),
		Keyword:     c.QueryParam("keyword"),
	}
	if v := strings.TrimSpace(c.QueryParam("meeting_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, err
		}
		q.MeetingID = id
	}
	var err error
	if q.From, err = parseInstant(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = parseInstant(c, "to"); err != nil {
		return q, err
	}
	return q, nil
}

// listWhatsAppLogs pages through delivery attempts, newest first
// @Summary get the delivery log
// @Tags WhatsApp
// @Param message_type query string false "individual or group"
// @Param trigger_type query string false "scheduled or manual"
// @Param status query string false "pending, success or failed"
// @Param meeting_id query string false "Meeting ID"
// @Param from query string false "Sent at or after"
// @Param to query string false "Sent before"
// @Success 200 {object} ListResponse
// @Router /api/v1/whatsapp/logs [get]
func listWhatsAppLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	q, err := parseLogQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_QUERY", "Invalid log filter", err.Error())
	}
	items, total, err := GetAppContext(c).WhatsAppLogs().List(c.Request().Context(), q, page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query logs", err.Error())
	}
	return paged(c, items, total, page, pageSize)
}

func getWhatsAppLog(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid log ID", nil)
	}
	entry, err := GetAppContext(c).WhatsAppLogs().GetByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "LOG_NOT_FOUND", "Log entry not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query log", err.Error())
	}
	return ok(c, entry)
}

func getWhatsAppLogStats(c echo.Context) error {
	q, err := parseLogQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_QUERY", "Invalid log filter", err.Error())
	}
	stats, err := GetAppContext(c).WhatsAppLogs().Stats(c.Request().Context(), q)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute statistics", err.Error())
	}
	return ok(c, stats)
}

// confirmWhatsAppDelivery settles a pending gateway delivery.
// Request JSON: { "provider_message_id": "...", "status": "success", "error": "" }
func confirmWhatsAppDelivery(c echo.Context) error {
	var payload struct {
		ProviderMessageID string `json:"provider_message_id"`
		Status            string `json:"status"`
		Error             string `json:"error"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if strings.TrimSpace(payload.ProviderMessageID) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "provider_message_id is required", nil)
	}
	updated, err := GetAppContext(c).WhatsAppLogs().ConfirmDelivery(c.Request().Context(),
		payload.ProviderMessageID, payload.Status, payload.Error)
	switch {
	case errors.Is(err, repository.ErrInvalidDeliveryStatus):
		return fail(c, http.StatusBadRequest, "INVALID_STATUS", err.Error(), nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to confirm delivery", err.Error())
	case !updated:
		return fail(c, http.StatusNotFound, "PENDING_NOT_FOUND", "No pending delivery with this provider message id", nil)
	}
	return ok(c, map[string]interface{}{"confirmed": true})
}
