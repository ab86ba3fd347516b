package adminapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/talkincode/toughmeeting/internal/app"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/notify"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"github.com/talkincode/toughmeeting/internal/whatsapp"
)

const maxReminderMinutes = 24 * 60

func registerSettingsRoutes() {
	webserver.ApiGET("/settings", getSettings)
	webserver.ApiPATCH("/settings", patchSettings)
	webserver.ApiGET("/settings/templates", getTemplates)
}

type settingsView struct {
	*domain.NotifySettings
	TemplateMap map[string]string `json:"templates"`
	NextDigest  string            `json:"next_digest,omitempty"`
}

func viewSettings(c echo.Context, s *domain.NotifySettings) settingsView {
	v := settingsView{NotifySettings: s, TemplateMap: s.TemplateMap()}
	if next := GetAppContext(c).Notifier().NextRun(notify.JobDigest); !next.IsZero() {
		v.NextDigest = next.In(location(c)).Format("2006-01-02 15:04")
	}
	return v
}

func getSettings(c echo.Context) error {
	s, err := GetAppContext(c).Settings().Get(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	return ok(c, viewSettings(c, s))
}

// getTemplates returns the effective templates with their placeholders.
func getTemplates(c echo.Context) error {
	s, err := GetAppContext(c).Settings().Get(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	out := make(map[string]string, len(domain.DefaultTemplates))
	for name := range domain.DefaultTemplates {
		out[name] = s.Template(name)
	}
	optional := make([]string, 0, len(notify.OptionalVars))
	for name := range notify.OptionalVars {
		optional = append(optional, name)
	}
	sort.Strings(optional)
	return ok(c, map[string]interface{}{
		"templates": out,
		"optional":  optional,
	})
}

// patchSettings applies a partial update. Read-only fields are rejected; an
// empty template resets it to the built-in default.
func patchSettings(c echo.Context) error {
	body := make(map[string]interface{})
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", err.Error())
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	s, err := appCtx.Settings().Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	oldTime := s.GroupNotificationTime

	rawTemplates, hasTemplates := body["templates"]
	delete(body, "templates")

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DECODER_ERROR", "Failed to prepare settings decoder", err.Error())
	}
	if err := dec.Decode(body); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_SETTINGS", "Unknown or read-only settings field", err.Error())
	}

	if hasTemplates {
		if err := mergeTemplates(s, rawTemplates); err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_TEMPLATES", err.Error(), nil)
		}
	}
	if err := validateSettings(s); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_SETTINGS", err.Error(), nil)
	}

	if err := appCtx.Settings().Patch(ctx, s); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save settings", err.Error())
	}
	appCtx.Bus().Publish(app.TopicSettingsUpdated)

	desc := make([]string, 0, len(body)+1)
	for k := range body {
		desc = append(desc, k)
	}
	if hasTemplates {
		desc = append(desc, "templates")
	}
	if oldTime != s.GroupNotificationTime {
		desc = append(desc, fmt.Sprintf("digest %s -> %s", oldTime, s.GroupNotificationTime))
	}
	audit(c, "settings.update", strings.Join(desc, ", "))

	s, err = appCtx.Settings().Get(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	return ok(c, viewSettings(c, s))
}

func mergeTemplates(s *domain.NotifySettings, raw interface{}) error {
	patch, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return fmt.Errorf("templates must be an object of strings")
	}
	current := s.TemplateMap()
	for name, tpl := range patch {
		if _, known := domain.DefaultTemplates[name]; !known {
			return fmt.Errorf("unknown template %q", name)
		}
		if strings.TrimSpace(tpl) == "" {
			delete(current, name)
			continue
		}
		current[name] = tpl
	}
	return s.SetTemplates(current)
}

func validateSettings(s *domain.NotifySettings) error {
	clock, err := domain.NormalizeClock(s.GroupNotificationTime)
	if err != nil {
		return fmt.Errorf("group_notification_time: %w", err)
	}
	s.GroupNotificationTime = clock
	if s.IndividualReminderMinutes < 1 || s.IndividualReminderMinutes > maxReminderMinutes {
		return fmt.Errorf("individual_reminder_minutes must be between 1 and %d", maxReminderMinutes)
	}
	s.GroupID = strings.TrimSpace(s.GroupID)
	if s.GroupID != "" {
		jid, err := whatsapp.GroupJID(s.GroupID)
		if err != nil {
			return fmt.Errorf("group_id: %w", err)
		}
		s.GroupID = jid.String()
	}
	return nil
}
