package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Meeting statuses. Only upcoming -> completed is driven by the scheduler;
// cancelled meetings are ignored by every notification job.
const (
	MeetingStatusUpcoming  = "upcoming"
	MeetingStatusCompleted = "completed"
	MeetingStatusCancelled = "cancelled"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidClock = errors.New("invalid time of day, expected HH:MM")
	ErrTimeRange    = errors.New("meeting start time must be before end time")
)

// Meeting a scheduled meeting. Date, StartTime and EndTime carry no offset
// and are interpreted in the business timezone.
type Meeting struct {
	ID                       int64                `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	Title                    string               `json:"title" form:"title"`
	Description              string               `json:"description" form:"description"`
	Date                     string               `json:"date" form:"date" gorm:"index;size:10"`
	StartTime                string               `json:"start_time" form:"start_time" gorm:"size:5"`
	EndTime                  string               `json:"end_time" form:"end_time" gorm:"size:5"`
	Location                 string               `json:"location" form:"location"`
	MeetingLink              string               `json:"meeting_link" form:"meeting_link"`
	DressCode                string               `json:"dress_code" form:"dress_code"`
	AttendanceLink           string               `json:"attendance_link" form:"attendance_link"`
	Status                   string               `json:"status" form:"status" gorm:"index;size:16"`
	WhatsAppReminderEnabled  bool                 `json:"whatsapp_reminder_enabled" form:"whatsapp_reminder_enabled" gorm:"column:whatsapp_reminder_enabled"`
	GroupNotificationEnabled bool                 `json:"group_notification_enabled" form:"group_notification_enabled"`
	ReminderSent             bool                 `json:"reminder_sent" gorm:"index"`
	ReminderSentAt           *time.Time           `json:"reminder_sent_at"`
	GroupNotifiedAt          *time.Time           `json:"group_notified_at"`
	Participants             []MeetingParticipant `json:"participants,omitempty" gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE"`
	CreatedAt                time.Time            `json:"created_at"`
	UpdatedAt                time.Time            `json:"updated_at"`
}

// TableName Specify table name
func (Meeting) TableName() string {
	return "meeting"
}

// Validate normalizes the date and clock fields in place and checks that the
// meeting starts before it ends.
func (m *Meeting) Validate() error {
	date, err := NormalizeDate(m.Date)
	if err != nil {
		return err
	}
	start, err := NormalizeClock(m.StartTime)
	if err != nil {
		return errors.Wrap(err, "start_time")
	}
	end, err := NormalizeClock(m.EndTime)
	if err != nil {
		return errors.Wrap(err, "end_time")
	}
	if start >= end {
		return ErrTimeRange
	}
	m.Date, m.StartTime, m.EndTime = date, start, end
	if m.Status == "" {
		m.Status = MeetingStatusUpcoming
	}
	switch m.Status {
	case MeetingStatusUpcoming, MeetingStatusCompleted, MeetingStatusCancelled:
	default:
		return fmt.Errorf("invalid meeting status %q", m.Status)
	}
	return nil
}

// CanTransition reports whether a meeting may move from one status to
// another. Status never moves back to upcoming.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return from == MeetingStatusUpcoming && (to == MeetingStatusCompleted || to == MeetingStatusCancelled)
}

// TimeRange renders "09:00 - 10:30".
func (m *Meeting) TimeRange() string {
	return m.StartTime + " - " + m.EndTime
}

// Recipients returns the participants a reminder goes to: the designated
// attendees when any are flagged, otherwise everyone linked to the meeting.
// Inactive participants and those without a phone number are dropped.
func (m *Meeting) Recipients() []MeetingParticipant {
	designated := make([]MeetingParticipant, 0, len(m.Participants))
	for _, mp := range m.Participants {
		if mp.IsAttendee {
			designated = append(designated, mp)
		}
	}
	pool := designated
	if len(pool) == 0 {
		pool = m.Participants
	}
	out := make([]MeetingParticipant, 0, len(pool))
	for _, mp := range pool {
		if mp.Participant == nil || !mp.Participant.Active {
			continue
		}
		if strings.TrimSpace(mp.Participant.Phone) == "" {
			continue
		}
		out = append(out, mp)
	}
	return out
}

// AttendeeNames lists designated attendee names; empty when none designated.
func (m *Meeting) AttendeeNames() []string {
	names := make([]string, 0, len(m.Participants))
	for _, mp := range m.Participants {
		if mp.IsAttendee && mp.Participant != nil {
			names = append(names, mp.Participant.Name)
		}
	}
	return names
}

// Participant a person who can be invited to meetings.
type Participant struct {
	ID        int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name" form:"name"`
	Phone     string    `json:"phone" form:"phone" gorm:"index"`
	Section   string    `json:"section" form:"section"`
	Active    bool      `json:"active" form:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Participant) TableName() string {
	return "participant"
}

// MeetingParticipant joins a meeting to a participant.
type MeetingParticipant struct {
	ID             int64        `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	MeetingID      int64        `json:"meeting_id,string" gorm:"uniqueIndex:idx_meeting_participant"`
	ParticipantID  int64        `json:"participant_id,string" gorm:"uniqueIndex:idx_meeting_participant"`
	IsAttendee     bool         `json:"is_attendee"`
	ReminderSentAt *time.Time   `json:"reminder_sent_at"`
	Participant    *Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TableName Specify table name
func (MeetingParticipant) TableName() string {
	return "meeting_participant"
}

// MeetingFilter selects notification candidates.
type MeetingFilter struct {
	Dates                    []string
	GroupNotificationEnabled bool
	WhatsAppReminderEnabled  bool
	ExcludeGroupNotified     bool
	ExcludeReminderSent      bool
}

// NormalizeDate accepts YYYY-MM-DD and returns it unchanged when valid.
func NormalizeDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}

// NormalizeClock accepts H:MM, HH:MM or HH:MM:SS and returns zero padded HH:MM,
// which keeps lexical and chronological order identical in SQL comparisons.
func NormalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05", "3:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", ErrInvalidClock
}
