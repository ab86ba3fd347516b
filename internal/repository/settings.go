package repository

import (
	"context"
	"time"

	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/gorm"
)

// GormSettingsRepository stores the notification settings singleton.
type GormSettingsRepository struct {
	db *gorm.DB
}

func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

func (r *GormSettingsRepository) Get(ctx context.Context) (*domain.NotifySettings, error) {
	var s domain.NotifySettings
	err := r.db.WithContext(ctx).First(&s, domain.SettingsID).Error
	return &s, err
}

// Create inserts the singleton; a second row is refused with ErrSettingsExists.
func (r *GormSettingsRepository) Create(ctx context.Context, s *domain.NotifySettings) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.NotifySettings{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrSettingsExists
	}
	s.ID = domain.SettingsID
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormSettingsRepository) Save(ctx context.Context, s *domain.NotifySettings) error {
	s.ID = domain.SettingsID
	return r.db.WithContext(ctx).Omit("CreatedAt").Save(s).Error
}

// Patch writes the operator-editable columns only, leaving the state the
// scheduler and the channel maintain untouched.
func (r *GormSettingsRepository) Patch(ctx context.Context, s *domain.NotifySettings) error {
	result := r.db.WithContext(ctx).
		Model(&domain.NotifySettings{ID: domain.SettingsID}).
		Select("group_notification_time", "group_notification_enabled",
			"individual_reminder_minutes", "individual_reminder_enabled",
			"group_id", "templates", "updated_at").
		Updates(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormSettingsRepository) UpdateLastGroupNotification(ctx context.Context, at time.Time) error {
	return r.update(ctx, "last_group_notification", at)
}

// SetChannelConnected mirrors the delivery channel state.
func (r *GormSettingsRepository) SetChannelConnected(ctx context.Context, connected bool) error {
	return r.update(ctx, "whatsapp_connected", connected)
}

func (r *GormSettingsRepository) update(ctx context.Context, column string, value interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&domain.NotifySettings{}).
		Where("id = ?", domain.SettingsID).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
