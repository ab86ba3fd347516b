package notify

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"go.uber.org/zap"
)

// DigestJob sends the daily group summary of today's meetings.
type DigestJob struct {
	meetings   MeetingRepository
	settings   SettingsRepository
	dispatcher *Dispatcher
	clock      *Clock
}

func NewDigestJob(meetings MeetingRepository, settings SettingsRepository, dispatcher *Dispatcher, clock *Clock) *DigestJob {
	return &DigestJob{meetings: meetings, settings: settings, dispatcher: dispatcher, clock: clock}
}

func (j *DigestJob) Name() string {
	return JobDigest
}

func (j *DigestJob) Run(ctx context.Context, tick Tick) (*Report, error) {
	report := &Report{Job: JobDigest, Source: tick.Source}
	s := tick.Settings
	switch {
	case !s.GroupNotificationEnabled:
		report.Skipped = "group notification disabled"
	case !j.dispatcher.Connected():
		report.Skipped = "channel not connected"
	case strings.TrimSpace(s.GroupID) == "":
		report.Skipped = "group id not configured"
	}
	if report.Skipped != "" {
		zap.S().Debugf("digest skipped: %s", report.Skipped)
		return report, nil
	}

	today := j.clock.Today(tick.Now)
	found, err := j.meetings.FindByDateAndFlags(ctx, domain.MeetingFilter{
		Dates:                    []string{today},
		GroupNotificationEnabled: true,
		ExcludeGroupNotified:     true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "query digest meetings")
	}
	meetings := make([]*domain.Meeting, 0, len(found))
	for _, m := range found {
		if m.GroupNotifiedAt == nil && m.GroupNotificationEnabled && m.Status != domain.MeetingStatusCancelled {
			meetings = append(meetings, m)
		}
	}
	report.Candidates = len(meetings)
	if len(meetings) == 0 {
		report.Skipped = "no meetings"
		return report, nil
	}
	sort.SliceStable(meetings, func(a, b int) bool {
		return meetings[a].StartTime < meetings[b].StartTime
	})

	entry := j.dispatcher.Deliver(ctx, Delivery{
		MessageType:   domain.MessageTypeGroup,
		TriggerType:   tick.Source,
		Recipient:     s.GroupID,
		RecipientName: "group",
		Message:       BuildDigest(s, today, meetings),
		Meetings:      meetings,
	})
	if entry.Status == domain.DeliveryFailed {
		report.Failed = 1
		return report, nil
	}
	report.Sent = 1

	ids := make([]int64, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	if err := j.meetings.MarkGroupNotified(ctx, ids, tick.Now); err != nil {
		return report, errors.Wrap(err, "mark group notified")
	}
	report.Marked = len(ids)
	if err := j.settings.UpdateLastGroupNotification(ctx, tick.Now); err != nil {
		return report, errors.Wrap(err, "update last group notification")
	}
	return report, nil
}
