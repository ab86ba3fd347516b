// Package repository holds the gorm implementations of the stores used by the
// notification jobs and the admin API.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/gorm"
)

var ErrUnknownParticipant = errors.New("unknown participant")

// Attendee links a participant to a meeting.
type Attendee struct {
	ParticipantID int64 `json:"participant_id,string"`
	IsAttendee    bool  `json:"is_attendee"`
}

// MeetingQuery filters the admin meeting list. Empty fields are ignored.
type MeetingQuery struct {
	Date     string
	DateFrom string
	DateTo   string
	Status   string
	Keyword  string
}

// GormMeetingRepository is the GORM implementation of notify.MeetingRepository
type GormMeetingRepository struct {
	db *gorm.DB
}

// NewGormMeetingRepository creates a new GORM-based meeting repository
func NewGormMeetingRepository(db *gorm.DB) *GormMeetingRepository {
	return &GormMeetingRepository{db: db}
}

func (r *GormMeetingRepository) withParticipants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).Preload("Participants.Participant")
}

func (r *GormMeetingRepository) GetByID(ctx context.Context, id int64) (*domain.Meeting, error) {
	var m domain.Meeting
	err := r.withParticipants(ctx).First(&m, id).Error
	return &m, err
}

func (r *GormMeetingRepository) FindByDateAndFlags(ctx context.Context, filter domain.MeetingFilter) ([]*domain.Meeting, error) {
	var meetings []*domain.Meeting
	if len(filter.Dates) == 0 {
		return meetings, nil
	}
	query := r.withParticipants(ctx).
		Where("date IN ?", filter.Dates).
		Where("status <> ?", domain.MeetingStatusCancelled)
	if filter.GroupNotificationEnabled {
		query = query.Where("group_notification_enabled = ?", true)
	}
	if filter.WhatsAppReminderEnabled {
		query = query.Where("whatsapp_reminder_enabled = ?", true)
	}
	if filter.ExcludeGroupNotified {
		query = query.Where("group_notified_at IS NULL")
	}
	if filter.ExcludeReminderSent {
		query = query.Where("reminder_sent = ?", false)
	}
	err := query.Order("date ASC, start_time ASC").Find(&meetings).Error
	return meetings, err
}

func (r *GormMeetingRepository) FindUpcomingPastEnd(ctx context.Context, date, clock string) ([]*domain.Meeting, error) {
	var meetings []*domain.Meeting
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.MeetingStatusUpcoming).
		Where("date < ? OR (date = ? AND end_time < ?)", date, date, clock).
		Find(&meetings).Error
	return meetings, err
}

func (r *GormMeetingRepository) MarkGroupNotified(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.Meeting{}).
		Where("id IN ? AND group_notified_at IS NULL", ids).
		Update("group_notified_at", at).Error
}

func (r *GormMeetingRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reminder_sent":    true,
			"reminder_sent_at": at,
		}).Error
}

func (r *GormMeetingRepository) MarkParticipantReminded(ctx context.Context, meetingID, participantID int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.MeetingParticipant{}).
		Where("meeting_id = ? AND participant_id = ?", meetingID, participantID).
		Update("reminder_sent_at", at).Error
}

func (r *GormMeetingRepository) BulkSetStatus(ctx context.Context, ids []int64, from, to string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&domain.Meeting{}).
		Where("id IN ? AND status = ?", ids, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// ResetReminders clears the reminder markers of a meeting and of its
// attendee links, so a rescheduled meeting is reminded again.
func (r *GormMeetingRepository) ResetReminders(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Meeting{}).Where("id = ?", id).Updates(map[string]interface{}{
			"reminder_sent":    false,
			"reminder_sent_at": nil,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.MeetingParticipant{}).
			Where("meeting_id = ?", id).
			Update("reminder_sent_at", nil).Error
	})
}

// Create inserts the meeting and its attendee links.
func (r *GormMeetingRepository) Create(ctx context.Context, m *domain.Meeting, attendees []Attendee) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(m).Error; err != nil {
			return err
		}
		return replaceAttendees(tx, m.ID, attendees)
	})
}

// editableColumns are the meeting columns an operator may change. Status and
// the notification markers are owned by the jobs and have their own writers.
var editableColumns = []string{
	"title", "description", "date", "start_time", "end_time", "location",
	"meeting_link", "dress_code", "attendance_link",
	"whatsapp_reminder_enabled", "group_notification_enabled", "updated_at",
}

// Update writes the operator editable columns; the attendee links, status and
// markers are left untouched.
func (r *GormMeetingRepository) Update(ctx context.Context, m *domain.Meeting) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Meeting{ID: m.ID}).
		Select(editableColumns).
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetGroupNotified clears the digest marker so a meeting moved to another
// date is announced again.
func (r *GormMeetingRepository) ResetGroupNotified(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Meeting{}).
		Where("id = ?", id).
		Update("group_notified_at", nil).Error
}

// SetAttendees replaces the attendee links of a meeting. Reminder markers of
// participants that stay linked are kept.
func (r *GormMeetingRepository) SetAttendees(ctx context.Context, meetingID int64, attendees []Attendee) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceAttendees(tx, meetingID, attendees)
	})
}

func replaceAttendees(tx *gorm.DB, meetingID int64, attendees []Attendee) error {
	var current []domain.MeetingParticipant
	if err := tx.Where("meeting_id = ?", meetingID).Find(&current).Error; err != nil {
		return err
	}
	marked := make(map[int64]*time.Time, len(current))
	for _, mp := range current {
		marked[mp.ParticipantID] = mp.ReminderSentAt
	}
	if err := tx.Where("meeting_id = ?", meetingID).Delete(&domain.MeetingParticipant{}).Error; err != nil {
		return err
	}
	seen := make(map[int64]bool, len(attendees))
	rows := make([]domain.MeetingParticipant, 0, len(attendees))
	for _, a := range attendees {
		if a.ParticipantID == 0 || seen[a.ParticipantID] {
			continue
		}
		seen[a.ParticipantID] = true
		rows = append(rows, domain.MeetingParticipant{
			MeetingID:      meetingID,
			ParticipantID:  a.ParticipantID,
			IsAttendee:     a.IsAttendee,
			ReminderSentAt: marked[a.ParticipantID],
		})
	}
	if len(rows) == 0 {
		return nil
	}
	var found int64
	if err := tx.Model(&domain.Participant{}).Where("id IN ?", participantIDs(rows)).Count(&found).Error; err != nil {
		return err
	}
	if int(found) != len(rows) {
		return errors.Wrapf(ErrUnknownParticipant, "%d of %d attendees", len(rows)-int(found), len(rows))
	}
	return tx.Omit("Participant").Create(&rows).Error
}

func participantIDs(rows []domain.MeetingParticipant) []int64 {
	ids := make([]int64, len(rows))
	for i, mp := range rows {
		ids[i] = mp.ParticipantID
	}
	return ids
}

// Delete removes the meeting and its attendee links.
func (r *GormMeetingRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", id).Delete(&domain.MeetingParticipant{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Meeting{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormMeetingRepository) List(ctx context.Context, q MeetingQuery, page, pageSize int) ([]*domain.Meeting, int64, error) {
	var meetings []*domain.Meeting
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Meeting{})
	if q.Date != "" {
		query = query.Where("date = ?", q.Date)
	}
	if q.DateFrom != "" {
		query = query.Where("date >= ?", q.DateFrom)
	}
	if q.DateTo != "" {
		query = query.Where("date <= ?", q.DateTo)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		like := "%" + kw + "%"
		query = query.Where("title LIKE ? OR location LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Participants.Participant").
		Order("date DESC, start_time ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&meetings).Error
	return meetings, total, err
}
