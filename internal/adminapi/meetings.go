package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/notify"
	"github.com/talkincode/toughmeeting/internal/repository"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"gorm.io/gorm"
)

func registerMeetingRoutes() {
	webserver.ApiGET("/meetings", listMeetings)
	webserver.ApiGET("/meetings/:id", getMeeting)
	webserver.ApiPOST("/meetings", createMeeting)
	webserver.ApiPUT("/meetings/:id", updateMeeting)
	webserver.ApiDELETE("/meetings/:id", deleteMeeting)
	webserver.ApiPUT("/meetings/:id/attendees", setMeetingAttendees)
	webserver.ApiPOST("/meetings/:id/remind", remindMeeting)
}

// meetingPayload is shared by create and update; on update empty strings and
// nil flags keep the stored value.
type meetingPayload struct {
	Title                    string                `json:"title"`
	Description              string                `json:"description"`
	Date                     string                `json:"date"`
	StartTime                string                `json:"start_time"`
	EndTime                  string                `json:"end_time"`
	Location                 string                `json:"location"`
	MeetingLink              *string               `json:"meeting_link"`
	DressCode                *string               `json:"dress_code"`
	AttendanceLink           *string               `json:"attendance_link"`
	Status                   string                `json:"status"`
	WhatsAppReminderEnabled  *bool                 `json:"whatsapp_reminder_enabled"`
	GroupNotificationEnabled *bool                 `json:"group_notification_enabled"`
	Attendees                []repository.Attendee `json:"attendees"`
}

func (p *meetingPayload) apply(c echo.Context, m *domain.Meeting) error {
	if v := strings.TrimSpace(p.Title); v != "" {
		m.Title = v
	}
	if p.Description != "" {
		m.Description = p.Description
	}
	if p.Date != "" {
		date, err := parseDate(p.Date, location(c))
		if err != nil {
			return err
		}
		m.Date = date
	}
	if p.StartTime != "" {
		m.StartTime = p.StartTime
	}
	if p.EndTime != "" {
		m.EndTime = p.EndTime
	}
	if v := strings.TrimSpace(p.Location); v != "" {
		m.Location = v
	}
	if p.MeetingLink != nil {
		m.MeetingLink = strings.TrimSpace(*p.MeetingLink)
	}
	if p.DressCode != nil {
		m.DressCode = strings.TrimSpace(*p.DressCode)
	}
	if p.AttendanceLink != nil {
		m.AttendanceLink = strings.TrimSpace(*p.AttendanceLink)
	}
	if p.Status != "" {
		m.Status = p.Status
	}
	if p.WhatsAppReminderEnabled != nil {
		m.WhatsAppReminderEnabled = *p.WhatsAppReminderEnabled
	}
	if p.GroupNotificationEnabled != nil {
		m.GroupNotificationEnabled = *p.GroupNotificationEnabled
	}
	return m.Validate()
}

// listMeetings pages through meetings
// @Summary get the meeting list
// @Tags Meetings
// @Param date query string false "Meeting date"
// @Param date_from query string false "First date"
// @Param date_to query string false "Last date"
// @Param status query string false "upcoming, completed or cancelled"
// @Param keyword query string false "Title or location"
// @Success 200 {object} ListResponse
// @Router /api/v1/meetings [get]
func listMeetings(c echo.Context) error {
	page, pageSize := parsePagination(c)
	loc := location(c)

	q := repository.MeetingQuery{
		Status:  strings.TrimSpace(c.QueryParam("status")),
		Keyword: c.QueryParam("keyword"),
	}
	for name, dst := range map[string]*string{"date": &q.Date, "date_from": &q.DateFrom, "date_to": &q.DateTo} {
		v := strings.TrimSpace(c.QueryParam(name))
		if v == "" {
			continue
		}
		d, err := parseDate(v, loc)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid "+name, v)
		}
		*dst = d
	}

	items, total, err := GetAppContext(c).Meetings().List(c.Request().Context(), q, page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meetings", err.Error())
	}
	return paged(c, items, total, page, pageSize)
}

func getMeeting(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid meeting ID", nil)
	}
	m, err := GetAppContext(c).Meetings().GetByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meeting", err.Error())
	}
	return ok(c, m)
}

func createMeeting(c echo.Context) error {
	var payload meetingPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse meeting parameters", err.Error())
	}
	if strings.TrimSpace(payload.Title) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_TITLE", "Meeting title is required", nil)
	}

	m := &domain.Meeting{
		WhatsAppReminderEnabled:  true,
		GroupNotificationEnabled: true,
	}
	if err := payload.apply(c, m); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_MEETING", err.Error(), nil)
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	if err := appCtx.Meetings().Create(ctx, m, payload.Attendees); err != nil {
		return meetingWriteError(c, err, "Failed to create meeting")
	}
	stored, err := appCtx.Meetings().GetByID(ctx, m.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meeting", err.Error())
	}
	audit(c, "meeting.create", m.Title+" "+m.Date+" "+m.TimeRange())
	return created(c, stored)
}

// updateMeeting changes a meeting. Moving it to another date or start time
// clears its reminder markers; moving the date also re-arms the digest. Status
// only moves forward, from upcoming to completed or cancelled.
func updateMeeting(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid meeting ID", nil)
	}
	appCtx := GetAppContext(c)
	ctx := c.Request().Context()

	m, err := appCtx.Meetings().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meeting", err.Error())
	}

	var payload meetingPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse meeting parameters", err.Error())
	}
	oldDate, oldStart, oldStatus := m.Date, m.StartTime, m.Status
	if err := payload.apply(c, m); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_MEETING", err.Error(), nil)
	}
	if !domain.CanTransition(oldStatus, m.Status) {
		return fail(c, http.StatusBadRequest, "INVALID_STATUS",
			fmt.Sprintf("Meeting status cannot change from %s to %s", oldStatus, m.Status), nil)
	}
	if err := appCtx.Meetings().Update(ctx, m); errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found", nil)
	} else if err != nil {
		return meetingWriteError(c, err, "Failed to update meeting")
	}
	if m.Date != oldDate {
		if err := appCtx.Meetings().ResetGroupNotified(ctx, id); err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reset digest marker", err.Error())
		}
	}
	if m.Date != oldDate || m.StartTime != oldStart {
		if err := appCtx.Meetings().ResetReminders(ctx, id); err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reset reminders", err.Error())
		}
	}
	if m.Status != oldStatus {
		n, err := appCtx.Meetings().BulkSetStatus(ctx, []int64{id}, oldStatus, m.Status)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update status", err.Error())
		}
		if n == 0 {
			return fail(c, http.StatusConflict, "STATUS_CHANGED", "Meeting status was changed concurrently", nil)
		}
	}
	if payload.Attendees != nil {
		if err := appCtx.Meetings().SetAttendees(ctx, m.ID, payload.Attendees); err != nil {
			return meetingWriteError(c, err, "Failed to update attendees")
		}
	}

	updated, err := appCtx.Meetings().GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meeting", err.Error())
	}
	audit(c, "meeting.update", updated.Title+" "+updated.Date+" "+updated.TimeRange())
	return ok(c, updated)
}

func setMeetingAttendees(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid meeting ID", nil)
	}
	var payload struct {
		Attendees []repository.Attendee `json:"attendees"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse attendees", err.Error())
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	if _, err := appCtx.Meetings().GetByID(ctx, id); errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meeting", err.Error())
	}
	if err := appCtx.Meetings().SetAttendees(ctx, id, payload.Attendees); err != nil {
		return meetingWriteError(c, err, "Failed to update attendees")
	}
	m, err := appCtx.Meetings().GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query meeting", err.Error())
	}
	audit(c, "meeting.attendees", fmt.Sprintf("%d participants", len(payload.Attendees)))
	return ok(c, m)
}

func deleteMeeting(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid meeting ID", nil)
	}
	err = GetAppContext(c).Meetings().Delete(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete meeting", err.Error())
	}
	audit(c, "meeting.delete", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// remindMeeting sends the individual reminder of one meeting right away,
// including to participants that were already reminded.
func remindMeeting(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid meeting ID", nil)
	}
	report, err := GetAppContext(c).Notifier().SendReminder(c.Request().Context(), id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found", nil)
	case errors.Is(err, notify.ErrNotConnected):
		return fail(c, http.StatusServiceUnavailable, "WA_NOT_CONNECTED", "WhatsApp channel not connected", nil)
	case errors.Is(err, notify.ErrJobBusy):
		return fail(c, http.StatusConflict, "REMINDER_BUSY", "A reminder for this meeting is already running", nil)
	case err != nil:
		return fail(c, http.StatusUnprocessableEntity, "REMIND_FAILED", "Failed to send reminder", err.Error())
	}
	audit(c, "meeting.remind", c.Param("id"))
	return ok(c, report)
}

func meetingWriteError(c echo.Context, err error, message string) error {
	if errors.Is(err, repository.ErrUnknownParticipant) {
		return fail(c, http.StatusBadRequest, "UNKNOWN_PARTICIPANT", "Attendee refers to an unknown participant", err.Error())
	}
	return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", message, err.Error())
}
