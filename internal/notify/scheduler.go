package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughmeeting/internal/domain"
	"go.uber.org/zap"
)

// EveryMinute fires at second zero of every minute.
const EveryMinute = "0 * * * * *"

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewCron returns a cron running in loc that accepts an optional seconds field.
func NewCron(loc *time.Location, opts ...cron.Option) *cron.Cron {
	return cron.New(append([]cron.Option{cron.WithLocation(loc), cron.WithParser(cronParser)}, opts...)...)
}

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobBusy    = errors.New("previous run still in progress")
	ErrStopped    = errors.New("scheduler stopped")
)

// Scheduler drives the notification jobs. Cron entries call Fire with the
// current business time; Fire can also be called directly with any instant.
type Scheduler struct {
	cron     *cron.Cron
	clock    *Clock
	settings SettingsRepository
	locker   Locker
	jobs     map[string]Job

	mu         sync.Mutex
	stopped    bool
	running    sync.WaitGroup
	entries    map[string]cron.EntryID
	digestSpec string
}

func NewScheduler(c *cron.Cron, clock *Clock, settings SettingsRepository, locker Locker, jobs ...Job) *Scheduler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	s := &Scheduler{
		cron:     c,
		clock:    clock,
		settings: settings,
		locker:   locker,
		jobs:     make(map[string]Job, len(jobs)),
		entries:  make(map[string]cron.EntryID),
	}
	for _, j := range jobs {
		s.jobs[j.Name()] = j
	}
	return s
}

// Register adds the cron entries of every known job.
func (s *Scheduler) Register(ctx context.Context) error {
	for _, name := range []string{JobReminder, JobStatus} {
		if _, ok := s.jobs[name]; !ok {
			continue
		}
		name := name
		id, err := s.cron.AddFunc(EveryMinute, func() { s.runScheduled(name) })
		if err != nil {
			return errors.Wrapf(err, "schedule %s", name)
		}
		s.mu.Lock()
		s.entries[name] = id
		s.mu.Unlock()
	}
	return s.Reschedule(ctx)
}

// DigestSpec converts a HH:MM time of day to a cron spec.
func DigestSpec(clock string) (string, error) {
	hhmm, err := domain.NormalizeClock(clock)
	if err != nil {
		return "", err
	}
	t, _ := time.Parse(domain.ClockLayout, hhmm)
	return fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour()), nil
}

// Reschedule moves the digest entry to the current group notification time.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	if _, ok := s.jobs[JobDigest]; !ok {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	spec, err := DigestSpec(settings.GroupNotificationTime)
	if err != nil {
		return errors.Wrapf(err, "group notification time %q", settings.GroupNotificationTime)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.entries[JobDigest]
	if ok && spec == s.digestSpec {
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() { s.runScheduled(JobDigest) })
	if err != nil {
		return errors.Wrapf(err, "schedule digest %q", spec)
	}
	if ok {
		s.cron.Remove(old)
	}
	s.entries[JobDigest] = id
	s.digestSpec = spec
	zap.S().Infof("daily digest scheduled at %s (%s)", settings.GroupNotificationTime, s.clock.Location())
	return nil
}

// NextRun returns the next scheduled instant of a job, zero when unscheduled
// or the cron is not running.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	entry := s.cron.Entry(id)
	if entry.Next.IsZero() && entry.Schedule != nil {
		// the cron has not started yet
		return entry.Schedule.Next(s.clock.Now())
	}
	return entry.Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop removes the cron triggers and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for running jobs")
	}
	if r, ok := s.jobs[JobReminder].(*ReminderJob); ok {
		r.Close()
	}
	return nil
}

func (s *Scheduler) runScheduled(name string) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Errorf("%s job panic: %v", name, err)
		}
	}()
	report, err := s.Fire(context.Background(), name, s.clock.Now(), domain.TriggerScheduled)
	switch {
	case errors.Is(err, ErrJobBusy), errors.Is(err, ErrStopped):
		zap.S().Debugf("%s tick skipped: %v", name, err)
	case err != nil:
		zap.L().Error("notification job failed", zap.String("job", name), zap.Error(err))
	case report.Sent+report.Failed > 0 || report.Transitioned > 0:
		zap.L().Info("notification job finished", zap.String("job", name),
			zap.Int("candidates", report.Candidates), zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed), zap.Int64("transitioned", report.Transitioned))
	}
}

// Fire runs a job once at now. A job never runs twice at the same time; an
// overlapping call fails with ErrJobBusy.
func (s *Scheduler) Fire(ctx context.Context, name string, now time.Time, source string) (*Report, error) {
	job, ok := s.jobs[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownJob, name)
	}
	return s.guarded(ctx, name, func(settings *domain.NotifySettings) (*Report, error) {
		return job.Run(ctx, Tick{Now: now.In(s.clock.Location()), Source: source, Settings: settings})
	})
}

// SendReminder sends the reminder of one meeting immediately.
func (s *Scheduler) SendReminder(ctx context.Context, meetingID int64) (*Report, error) {
	job, ok := s.jobs[JobReminder].(*ReminderJob)
	if !ok {
		return nil, errors.Wrap(ErrUnknownJob, JobReminder)
	}
	key := fmt.Sprintf("%s:%d", JobReminder, meetingID)
	return s.guarded(ctx, key, func(settings *domain.NotifySettings) (*Report, error) {
		return job.SendForMeeting(ctx, meetingID, Tick{Now: s.clock.Now(), Source: domain.TriggerManual, Settings: settings})
	})
}

func (s *Scheduler) guarded(ctx context.Context, key string, run func(*domain.NotifySettings) (*Report, error)) (*Report, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	unlock, ok, err := s.locker.TryLock(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrJobBusy, key)
	}
	defer unlock()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	return run(settings)
}
