package domain

import "time"

const (
	MessageTypeIndividual = "individual"
	MessageTypeGroup      = "group"

	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"

	DeliveryPending = "pending"
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// WhatsAppLog one delivery attempt. Meeting fields are copied at send time so
// the entry stays meaningful after the meeting is edited or deleted.
type WhatsAppLog struct {
	ID                int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	MessageType       string    `json:"message_type" gorm:"index;size:16"`
	TriggerType       string    `json:"trigger_type" gorm:"size:16"`
	MeetingID         int64     `json:"meeting_id,string" gorm:"index"`
	ParticipantID     int64     `json:"participant_id,string"`
	Recipient         string    `json:"recipient"`
	RecipientName     string    `json:"recipient_name"`
	Message           string    `json:"message" gorm:"type:text"`
	Status            string    `json:"status" gorm:"index;size:16"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"index"`
	ErrorMessage      string    `json:"error_message" gorm:"type:text"`
	DurationMs        int64     `json:"duration_ms"`
	MeetingTitle      string    `json:"meeting_title"`
	MeetingDate       string    `json:"meeting_date"`
	MeetingTime       string    `json:"meeting_time"`
	SentAt            time.Time `json:"sent_at" gorm:"index"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName Specify table name
func (WhatsAppLog) TableName() string {
	return "whatsapp_log"
}
