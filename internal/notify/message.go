package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/talkincode/toughmeeting/internal/domain"
)

// AllParticipants replaces the attendee list of a digest item when no
// attendee is designated.
const AllParticipants = "Semua peserta"

var (
	dayNames   = []string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	monthNames = []string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli",
		"Agustus", "September", "Oktober", "November", "Desember"}
)

// FormatDate renders 2025-01-10 as "Jumat, 10 Januari 2025". Unparseable
// input is returned unchanged.
func FormatDate(date string) string {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return date
	}
	return dayNames[t.Weekday()] + ", " + strconv.Itoa(t.Day()) + " " + monthNames[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// MeetingVars the template variables describing a meeting.
func MeetingVars(m *domain.Meeting) map[string]string {
	return map[string]string{
		"title":           m.Title,
		"description":     m.Description,
		"date":            FormatDate(m.Date),
		"start_time":      m.StartTime,
		"end_time":        m.EndTime,
		"time_range":      m.TimeRange(),
		"location":        m.Location,
		"meeting_link":    m.MeetingLink,
		"dress_code":      m.DressCode,
		"attendance_link": m.AttendanceLink,
	}
}

// BuildDigest renders the group message for the given meetings, which must
// already be sorted by start time.
func BuildDigest(s *domain.NotifySettings, date string, meetings []*domain.Meeting) string {
	itemTpl := s.Template(domain.TemplateGroupMeetingItem)
	blocks := make([]string, 0, len(meetings))
	for i, m := range meetings {
		vars := MeetingVars(m)
		vars["index"] = strconv.Itoa(i + 1)
		vars["attendees"] = AllParticipants
		if names := m.AttendeeNames(); len(names) > 0 {
			vars["attendees"] = strings.Join(names, ", ")
		}
		blocks = append(blocks, Render(itemTpl, vars))
	}
	return Render(s.Template(domain.TemplateGroupDaily), map[string]string{
		"date":     FormatDate(date),
		"count":    strconv.Itoa(len(meetings)),
		"meetings": strings.Join(blocks, "\n\n"),
	})
}

// BuildReminder renders the individual reminder of a meeting for one recipient.
func BuildReminder(s *domain.NotifySettings, m *domain.Meeting, name string) string {
	vars := MeetingVars(m)
	vars["name"] = name
	vars["minutes"] = strconv.Itoa(s.IndividualReminderMinutes)
	return Render(s.Template(domain.TemplateIndividualReminder), vars)
}
