// Package notify schedules the WhatsApp notifications of the meeting service:
// the daily group digest, the individual reminders ahead of each meeting and
// the upcoming -> completed status transition.
package notify

import (
	"context"
	"time"

	"github.com/talkincode/toughmeeting/internal/domain"
)

// Job names, also used as lock keys and admin API identifiers.
const (
	JobDigest   = "digest"
	JobReminder = "reminder"
	JobStatus   = "status"
)

// MeetingRepository is the meeting store as seen by the jobs.
type MeetingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Meeting, error)
	// FindByDateAndFlags returns matching meetings with their participants
	// preloaded, ordered by date and start time. Cancelled meetings are never returned.
	FindByDateAndFlags(ctx context.Context, filter domain.MeetingFilter) ([]*domain.Meeting, error)
	// FindUpcomingPastEnd returns upcoming meetings dated before date, or on
	// date with an end time before clock.
	FindUpcomingPastEnd(ctx context.Context, date, clock string) ([]*domain.Meeting, error)
	MarkGroupNotified(ctx context.Context, ids []int64, at time.Time) error
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
	MarkParticipantReminded(ctx context.Context, meetingID, participantID int64, at time.Time) error
	// BulkSetStatus moves the given meetings from one status to another and
	// reports how many rows actually changed.
	BulkSetStatus(ctx context.Context, ids []int64, from, to string) (int64, error)
}

// SettingsRepository reads the notification settings singleton.
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.NotifySettings, error)
	UpdateLastGroupNotification(ctx context.Context, at time.Time) error
}

// DeliveryResult what the transport reports for an accepted message.
type DeliveryResult struct {
	ProviderMessageID string
	// Pending is set when the transport queued the message and will confirm later.
	Pending bool
}

// DeliveryChannel a messaging transport. A non-nil error means the message
// was not delivered.
type DeliveryChannel interface {
	IsConnected() bool
	SendToIndividual(ctx context.Context, address, message string) (*DeliveryResult, error)
	SendToGroup(ctx context.Context, groupID, message string) (*DeliveryResult, error)
}

// DeliveryLogSink stores delivery attempts.
type DeliveryLogSink interface {
	Record(ctx context.Context, entry *domain.WhatsAppLog) error
}

// Tick is one invocation of a job. Settings are loaded once per tick.
type Tick struct {
	Now      time.Time
	Source   string
	Settings *domain.NotifySettings
}

// Report summarizes a tick.
type Report struct {
	Job          string `json:"job"`
	Source       string `json:"source"`
	Skipped      string `json:"skipped,omitempty"`
	Candidates   int    `json:"candidates"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
	Marked       int    `json:"marked"`
	Transitioned int64  `json:"transitioned"`
}

// Job a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context, tick Tick) (*Report, error)
}
