package domain

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// SettingsID is the primary key of the single NotifySettings row.
const SettingsID int64 = 1

// Template names stored in NotifySettings.Templates.
const (
	TemplateGroupDaily         = "group_daily"
	TemplateGroupMeetingItem   = "group_meeting_item"
	TemplateIndividualReminder = "individual_reminder"
)

var ErrSettingsExists = errors.New("notification settings already exist")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NotifySettings the notification settings singleton.
type NotifySettings struct {
	ID                        int64      `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	GroupNotificationTime     string     `json:"group_notification_time" mapstructure:"group_notification_time" gorm:"size:5"`
	GroupNotificationEnabled  bool       `json:"group_notification_enabled" mapstructure:"group_notification_enabled"`
	IndividualReminderMinutes int        `json:"individual_reminder_minutes" mapstructure:"individual_reminder_minutes"`
	IndividualReminderEnabled bool       `json:"individual_reminder_enabled" mapstructure:"individual_reminder_enabled"`
	WhatsAppConnected         bool       `json:"whatsapp_connected" mapstructure:"-" gorm:"column:whatsapp_connected"`
	GroupID                   string     `json:"group_id" mapstructure:"group_id"`
	LastGroupNotification     *time.Time `json:"last_group_notification" mapstructure:"-"`
	Templates                 string     `json:"templates" mapstructure:"-" gorm:"type:text"`
	CreatedAt                 time.Time  `json:"created_at" mapstructure:"-"`
	UpdatedAt                 time.Time  `json:"updated_at" mapstructure:"-"`
}

// TableName Specify table name
func (NotifySettings) TableName() string {
	return "notify_settings"
}

// DefaultNotifySettings the values seeded on first start.
func DefaultNotifySettings() *NotifySettings {
	s := &NotifySettings{
		ID:                        SettingsID,
		GroupNotificationTime:     "07:00",
		GroupNotificationEnabled:  true,
		IndividualReminderMinutes: 30,
		IndividualReminderEnabled: true,
	}
	_ = s.SetTemplates(DefaultTemplates)
	return s
}

// TemplateMap decodes the stored templates; a malformed column yields an empty map.
func (s *NotifySettings) TemplateMap() map[string]string {
	m := make(map[string]string)
	if s == nil || s.Templates == "" {
		return m
	}
	_ = json.UnmarshalFromString(s.Templates, &m)
	return m
}

// SetTemplates stores the given templates.
func (s *NotifySettings) SetTemplates(m map[string]string) error {
	str, err := json.MarshalToString(m)
	if err != nil {
		return errors.Wrap(err, "encode templates")
	}
	s.Templates = str
	return nil
}

// Template returns the named template, falling back to the built-in default.
func (s *NotifySettings) Template(name string) string {
	if t, ok := s.TemplateMap()[name]; ok && t != "" {
		return t
	}
	return DefaultTemplates[name]
}

// DefaultTemplates built-in message templates.
var DefaultTemplates = map[string]string{
	TemplateGroupDaily: "📅 *Jadwal Rapat Hari Ini*\n" +
		"{date}\n" +
		"\n" +
		"{meetings}\n" +
		"\n" +
		"Mohon hadir tepat waktu. Terima kasih.",
	TemplateGroupMeetingItem: "{index}. *{title}*\n" +
		"🕐 {start_time} - {end_time}\n" +
		"📍 {location}\n" +
		"👥 {attendees}\n" +
		"🔗 {meeting_link}\n" +
		"👔 {dress_code}",
	TemplateIndividualReminder: "⏰ *Pengingat Rapat*\n" +
		"\n" +
		"Halo {name},\n" +
		"Rapat *{title}* akan dimulai dalam {minutes} menit.\n" +
		"\n" +
		"📅 {date}\n" +
		"🕐 {start_time} - {end_time}\n" +
		"📍 {location}\n" +
		"🔗 {meeting_link}\n" +
		"👔 {dress_code}\n" +
		"📝 {attendance_link}",
}
