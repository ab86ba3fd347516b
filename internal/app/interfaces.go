package app

import (
	EventBus "github.com/asaskevich/EventBus"
	"github.com/talkincode/toughmeeting/config"
	"github.com/talkincode/toughmeeting/internal/notify"
	"github.com/talkincode/toughmeeting/internal/repository"
	"github.com/talkincode/toughmeeting/internal/whatsapp"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// RepositoryProvider provides the gorm repositories
type RepositoryProvider interface {
	Meetings() *repository.GormMeetingRepository
	Participants() *repository.GormParticipantRepository
	Settings() *repository.GormSettingsRepository
	WhatsAppLogs() *repository.GormWhatsAppLogRepository
	OprLogs() *repository.GormOprLogRepository
}

// NotifierProvider provides the notification scheduler and its clock
type NotifierProvider interface {
	Notifier() *notify.Scheduler
	Clock() *notify.Clock
}

// ChannelProvider provides the active delivery channel.
// WhatsApp returns nil unless the whatsmeow channel is configured.
type ChannelProvider interface {
	Channel() notify.DeliveryChannel
	WhatsApp() *whatsapp.Service
}

// EventBusProvider provides the in-process event bus
type EventBusProvider interface {
	Bus() EventBus.Bus
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	RepositoryProvider
	NotifierProvider
	ChannelProvider
	EventBusProvider

	MigrateDB(track bool) error
}
