package notify

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"go.uber.org/zap"
)

// Reminder guard modes.
const (
	// GuardParticipant marks every (meeting, participant) pair on success and
	// marks the meeting once no retryable failure is left.
	GuardParticipant = "participant"
	// GuardMeeting marks the meeting after one pass over its recipients,
	// whatever the outcome.
	GuardMeeting = "meeting"
)

var ErrNotConnected = errors.New("whatsapp channel not connected")

// ReminderJob sends individual reminders ahead of each meeting.
type ReminderJob struct {
	meetings   MeetingRepository
	dispatcher *Dispatcher
	clock      *Clock
	tolerance  time.Duration
	guard      string
	pool       *ants.Pool
}

// NewReminderJob fans meetings out over a pool of workers goroutines.
func NewReminderJob(meetings MeetingRepository, dispatcher *Dispatcher, clock *Clock,
	tolerance time.Duration, guard string, workers int) (*ReminderJob, error) {
	if workers <= 0 {
		workers = 1
	}
	if guard != GuardMeeting {
		guard = GuardParticipant
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(r interface{}) {
		zap.S().Errorf("reminder worker panic: %v", r)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create reminder pool")
	}
	return &ReminderJob{
		meetings:   meetings,
		dispatcher: dispatcher,
		clock:      clock,
		tolerance:  tolerance,
		guard:      guard,
		pool:       pool,
	}, nil
}

func (j *ReminderJob) Name() string {
	return JobReminder
}

// Close releases the worker pool.
func (j *ReminderJob) Close() {
	j.pool.Release()
}

func (j *ReminderJob) Run(ctx context.Context, tick Tick) (*Report, error) {
	report := &Report{Job: JobReminder, Source: tick.Source}
	s := tick.Settings
	switch {
	case !s.IndividualReminderEnabled:
		report.Skipped = "individual reminder disabled"
	case !j.dispatcher.Connected():
		report.Skipped = "channel not connected"
	}
	if report.Skipped != "" {
		zap.S().Debugf("reminder skipped: %s", report.Skipped)
		return report, nil
	}

	lead := time.Duration(s.IndividualReminderMinutes) * time.Minute
	found, err := j.meetings.FindByDateAndFlags(ctx, domain.MeetingFilter{
		Dates:                   j.clock.LeadWindowDates(tick.Now, lead, j.tolerance),
		WhatsAppReminderEnabled: true,
		ExcludeReminderSent:     true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "query reminder meetings")
	}

	var (
		mu                   sync.Mutex
		wg                   sync.WaitGroup
		candidates, rejected int
	)
	for _, m := range found {
		if m.ReminderSent || !m.WhatsAppReminderEnabled || m.Status == domain.MeetingStatusCancelled {
			continue
		}
		in, err := j.clock.WithinLeadWindow(tick.Now, m.Date, m.StartTime, lead, j.tolerance)
		if err != nil {
			j.rejectMeeting(ctx, m, tick, err)
			rejected++
			continue
		}
		if !in {
			continue
		}
		candidates++
		m := m
		wg.Add(1)
		task := func() {
			defer wg.Done()
			r := j.remind(ctx, m, s, tick, false)
			mu.Lock()
			report.merge(r)
			mu.Unlock()
		}
		if err := j.pool.Submit(task); err != nil {
			zap.S().Warnf("reminder pool rejected meeting %d, running inline: %v", m.ID, err)
			task()
		}
	}
	wg.Wait()
	report.Candidates += candidates
	report.Failed += rejected
	return report, nil
}

// SendForMeeting sends the reminder of one meeting to all its recipients now,
// ignoring the lead window and any previous markers.
func (j *ReminderJob) SendForMeeting(ctx context.Context, id int64, tick Tick) (*Report, error) {
	if !j.dispatcher.Connected() {
		return nil, ErrNotConnected
	}
	m, err := j.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load meeting %d", id)
	}
	if m.Status == domain.MeetingStatusCancelled {
		return nil, errors.Errorf("meeting %d is cancelled", id)
	}
	report := &Report{Job: JobReminder, Source: tick.Source, Candidates: 1}
	report.merge(j.remind(ctx, m, tick.Settings, tick, true))
	return report, nil
}

func (r *Report) merge(o *Report) {
	r.Sent += o.Sent
	r.Failed += o.Failed
	r.Marked += o.Marked
}

// remind attempts every recipient of m sequentially.
func (j *ReminderJob) remind(ctx context.Context, m *domain.Meeting, s *domain.NotifySettings, tick Tick, force bool) *Report {
	r := &Report{}
	recipients := m.Recipients()
	if len(recipients) == 0 {
		zap.S().Warnf("meeting %d %q has no reachable participants", m.ID, m.Title)
	}
	retry := false
	for _, mp := range recipients {
		if !force && mp.ReminderSentAt != nil {
			continue
		}
		p := mp.Participant
		req := Delivery{
			MessageType:   domain.MessageTypeIndividual,
			TriggerType:   tick.Source,
			Recipient:     p.Phone,
			RecipientName: p.Name,
			ParticipantID: p.ID,
			Message:       BuildReminder(s, m, p.Name),
			Meetings:      []*domain.Meeting{m},
		}
		address, err := domain.NormalizePhone(p.Phone)
		if err != nil {
			// not retryable until the participant is fixed
			j.dispatcher.Fail(ctx, req, err)
			r.Failed++
			continue
		}
		req.Recipient = address
		if entry := j.dispatcher.Deliver(ctx, req); entry.Status == domain.DeliveryFailed {
			r.Failed++
			retry = true
			continue
		}
		r.Sent++
		if err := j.meetings.MarkParticipantReminded(ctx, m.ID, p.ID, tick.Now); err != nil {
			zap.L().Error("mark participant reminded", zap.Error(err),
				zap.Int64("meeting", m.ID), zap.Int64("participant", p.ID))
		}
	}
	if retry && j.guard == GuardParticipant {
		return r
	}
	if err := j.meetings.MarkReminderSent(ctx, m.ID, tick.Now); err != nil {
		zap.L().Error("mark reminder sent", zap.Error(err), zap.Int64("meeting", m.ID))
		return r
	}
	r.Marked = 1
	return r
}

// rejectMeeting logs a meeting whose date or start time cannot be resolved
// and marks it so it is not picked up again.
func (j *ReminderJob) rejectMeeting(ctx context.Context, m *domain.Meeting, tick Tick, cause error) {
	j.dispatcher.Fail(ctx, Delivery{
		MessageType: domain.MessageTypeIndividual,
		TriggerType: tick.Source,
		Meetings:    []*domain.Meeting{m},
	}, errors.Wrap(cause, "invalid meeting schedule"))
	if err := j.meetings.MarkReminderSent(ctx, m.ID, tick.Now); err != nil {
		zap.L().Error("mark reminder sent", zap.Error(err), zap.Int64("meeting", m.ID))
	}
}
