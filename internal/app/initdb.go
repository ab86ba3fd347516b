package app

import (
	"context"
	"errors"

	"github.com/talkincode/toughmeeting/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// checkSettings seeds the settings row on first start and fills in
// templates that are missing from an existing row.
func (a *Application) checkSettings(ctx context.Context) error {
	s, err := a.settings.Get(ctx)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s = domain.DefaultNotifySettings()
		if err := a.settings.Create(ctx, s); err != nil && !errors.Is(err, domain.ErrSettingsExists) {
			zap.L().Error("failed to create default notification settings", zap.Error(err))
			return err
		}
		zap.L().Info("initialized default notification settings",
			zap.String("group_notification_time", s.GroupNotificationTime),
			zap.Int("individual_reminder_minutes", s.IndividualReminderMinutes))
		return nil
	case err != nil:
		zap.L().Error("failed to query notification settings", zap.Error(err))
		return err
	}

	templates := s.TemplateMap()
	missing := make([]string, 0)
	for name, tpl := range domain.DefaultTemplates {
		if _, ok := templates[name]; !ok {
			templates[name] = tpl
			missing = append(missing, name)
		}
	}
	// the channel reports its real state once it connects
	s.WhatsAppConnected = false
	if len(missing) > 0 {
		if err := s.SetTemplates(templates); err != nil {
			return err
		}
		zap.L().Info("initialized missing templates", zap.Strings("templates", missing))
	}
	if err := a.settings.Save(ctx, s); err != nil {
		zap.L().Error("failed to repair notification settings", zap.Error(err))
		return err
	}
	return nil
}
