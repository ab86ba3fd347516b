package notify

import (
	"context"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"go.uber.org/zap"
)

// StatusJob moves upcoming meetings whose end time has passed to completed.
type StatusJob struct {
	meetings MeetingRepository
	clock    *Clock
}

func NewStatusJob(meetings MeetingRepository, clock *Clock) *StatusJob {
	return &StatusJob{meetings: meetings, clock: clock}
}

func (j *StatusJob) Name() string {
	return JobStatus
}

func (j *StatusJob) Run(ctx context.Context, tick Tick) (*Report, error) {
	report := &Report{Job: JobStatus, Source: tick.Source}
	today := j.clock.Today(tick.Now)
	found, err := j.meetings.FindUpcomingPastEnd(ctx, today, j.clock.TimeOfDay(tick.Now))
	if err != nil {
		return nil, errors.Wrap(err, "query ended meetings")
	}
	ids := make([]int64, 0, len(found))
	for _, m := range found {
		if m.Status != domain.MeetingStatusUpcoming {
			continue
		}
		if m.Date < today {
			ids = append(ids, m.ID)
			continue
		}
		ended, err := j.clock.HasEnded(m.Date, m.EndTime, tick.Now)
		if err != nil {
			zap.S().Warnf("meeting %d has an invalid end time %q: %v", m.ID, m.EndTime, err)
			continue
		}
		if ended {
			ids = append(ids, m.ID)
		}
	}
	report.Candidates = len(ids)
	if len(ids) == 0 {
		return report, nil
	}
	n, err := j.meetings.BulkSetStatus(ctx, ids, domain.MeetingStatusUpcoming, domain.MeetingStatusCompleted)
	if err != nil {
		return report, errors.Wrap(err, "complete ended meetings")
	}
	report.Transitioned = n
	return report, nil
}
