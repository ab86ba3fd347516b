package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"gorm.io/gorm"
)

func registerParticipantRoutes() {
	webserver.ApiGET("/participants", listParticipants)
	webserver.ApiGET("/participants/:id", getParticipant)
	webserver.ApiPOST("/participants", createParticipant)
	webserver.ApiPUT("/participants/:id", updateParticipant)
	webserver.ApiDELETE("/participants/:id", deleteParticipant)
}

type participantPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Section string `json:"section"`
	Active  *bool  `json:"active"`
}

func listParticipants(c echo.Context) error {
	page, pageSize := parsePagination(c)
	items, total, err := GetAppContext(c).Participants().List(c.Request().Context(),
		c.QueryParam("keyword"), parseBoolQuery(c, "active"), page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query participants", err.Error())
	}
	return paged(c, items, total, page, pageSize)
}

func getParticipant(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid participant ID", nil)
	}
	p, err := GetAppContext(c).Participants().GetByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "PARTICIPANT_NOT_FOUND", "Participant not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query participant", err.Error())
	}
	return ok(c, p)
}

// createParticipant stores the phone number in international form.
func createParticipant(c echo.Context) error {
	var payload participantPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse participant parameters", err.Error())
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_NAME", "Participant name is required", nil)
	}
	phone, err := domain.NormalizePhone(payload.Phone)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number", payload.Phone)
	}

	p := &domain.Participant{
		Name:    name,
		Phone:   phone,
		Section: strings.TrimSpace(payload.Section),
		Active:  payload.Active == nil || *payload.Active,
	}
	if err := GetAppContext(c).Participants().Create(c.Request().Context(), p); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create participant", err.Error())
	}
	audit(c, "participant.create", p.Name+" "+p.Phone)
	return created(c, p)
}

func updateParticipant(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid participant ID", nil)
	}
	repo := GetAppContext(c).Participants()
	ctx := c.Request().Context()

	p, err := repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "PARTICIPANT_NOT_FOUND", "Participant not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query participant", err.Error())
	}

	var payload participantPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse participant parameters", err.Error())
	}
	if v := strings.TrimSpace(payload.Name); v != "" {
		p.Name = v
	}
	if payload.Phone != "" {
		phone, err := domain.NormalizePhone(payload.Phone)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number", payload.Phone)
		}
		p.Phone = phone
	}
	if payload.Section != "" {
		p.Section = strings.TrimSpace(payload.Section)
	}
	if payload.Active != nil {
		p.Active = *payload.Active
	}
	if err := repo.Update(ctx, p); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update participant", err.Error())
	}
	audit(c, "participant.update", p.Name+" "+p.Phone)
	return ok(c, p)
}

func deleteParticipant(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid participant ID", nil)
	}
	err = GetAppContext(c).Participants().Delete(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "PARTICIPANT_NOT_FOUND", "Participant not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete participant", err.Error())
	}
	audit(c, "participant.delete", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
