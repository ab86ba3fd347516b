package adminapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/notify"
)

type settingsResponse struct {
	GroupNotificationTime     string            `json:"group_notification_time"`
	IndividualReminderMinutes int               `json:"individual_reminder_minutes"`
	IndividualReminderEnabled bool              `json:"individual_reminder_enabled"`
	GroupID                   string            `json:"group_id"`
	Templates                 map[string]string `json:"templates"`
	NextDigest                string            `json:"next_digest"`
}

func TestSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s settingsResponse
	data(t, rec, &s)
	assert.Equal(t, "07:00", s.GroupNotificationTime)
	assert.Len(t, s.Templates, len(domain.DefaultTemplates))
	assert.Contains(t, s.NextDigest, "07:00")

	rec = ts.do(t, http.MethodPatch, "/settings", map[string]interface{}{
		"group_notification_time":     "8:15",
		"individual_reminder_minutes": "45",
		"individual_reminder_enabled": false,
		"group_id":                    "120363025246125486",
		"templates": map[string]interface{}{
			domain.TemplateIndividualReminder: "Halo {name}, {title} mulai {minutes} menit lagi",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data(t, rec, &s)
	assert.Equal(t, "08:15", s.GroupNotificationTime)
	assert.Equal(t, 45, s.IndividualReminderMinutes)
	assert.False(t, s.IndividualReminderEnabled)
	assert.Equal(t, "120363025246125486@g.us", s.GroupID)
	assert.Equal(t, "Halo {name}, {title} mulai {minutes} menit lagi", s.Templates[domain.TemplateIndividualReminder])
	assert.Contains(t, s.NextDigest, "08:15")

	next := ts.app.Notifier().NextRun(notify.JobDigest).In(ts.app.Clock().Location())
	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, 15, next.Minute())

	// an empty template falls back to the default
	rec = ts.do(t, http.MethodPatch, "/settings", map[string]interface{}{
		"templates": map[string]interface{}{domain.TemplateIndividualReminder: ""},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, err := ts.app.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTemplates[domain.TemplateIndividualReminder], stored.Template(domain.TemplateIndividualReminder))
	assert.Equal(t, "08:15", stored.GroupNotificationTime)

	tests := []struct {
		name string
		body map[string]interface{}
		code string
	}{
		{"read-only field", map[string]interface{}{"whatsapp_connected": true}, "INVALID_SETTINGS"},
		{"unknown field", map[string]interface{}{"colour": "blue"}, "INVALID_SETTINGS"},
		{"bad time", map[string]interface{}{"group_notification_time": "25:00"}, "INVALID_SETTINGS"},
		{"bad minutes", map[string]interface{}{"individual_reminder_minutes": 0}, "INVALID_SETTINGS"},
		{"bad group", map[string]interface{}{"group_id": "6281234567890@s.whatsapp.net"}, "INVALID_SETTINGS"},
		{"unknown template", map[string]interface{}{"templates": map[string]interface{}{"other": "x"}}, "INVALID_TEMPLATES"},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodPatch, "/settings", tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.Equal(t, tt.code, errorCode(t, rec), tt.name)
	}

	rec = ts.do(t, http.MethodGet, "/settings/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tpl struct {
		Templates map[string]string `json:"templates"`
		Optional  []string          `json:"optional"`
	}
	data(t, rec, &tpl)
	assert.Equal(t, []string{"attendance_link", "dress_code", "meeting_link"}, tpl.Optional)
	assert.Len(t, tpl.Templates, len(domain.DefaultTemplates))
}
