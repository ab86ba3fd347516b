package notify

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughmeeting/internal/domain"
)

func TestDigestSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "07:00", want: "0 0 7 * * *"},
		{in: "7:05", want: "0 5 7 * * *"},
		{in: "18:30:00", want: "0 30 18 * * *"},
		{in: "00:00", want: "0 0 0 * * *"},
		{in: "25:00", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DigestSpec(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSchedulerRegisterAndReschedule(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil)
	ctx := context.Background()

	require.NoError(t, h.scheduler.Register(ctx))
	assert.Len(t, h.scheduler.cron.Entries(), 3)
	assert.Equal(t, "0 0 7 * * *", h.scheduler.digestSpec)

	require.NoError(t, h.scheduler.Reschedule(ctx))
	assert.Len(t, h.scheduler.cron.Entries(), 3)

	h.settings.settings.GroupNotificationTime = "08:30"
	require.NoError(t, h.scheduler.Reschedule(ctx))
	assert.Len(t, h.scheduler.cron.Entries(), 3)
	assert.Equal(t, "0 30 8 * * *", h.scheduler.digestSpec)

	h.settings.settings.GroupNotificationTime = "nanti"
	assert.Error(t, h.scheduler.Reschedule(ctx))
	assert.Equal(t, "0 30 8 * * *", h.scheduler.digestSpec)
}

func TestSchedulerNextRun(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil)
	require.NoError(t, h.scheduler.Register(context.Background()))
	assert.True(t, h.scheduler.NextRun("unknown").IsZero())

	next := h.scheduler.NextRun(JobDigest).In(wib)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 0, next.Minute())

	h.scheduler.Start()
	defer func() { _ = h.scheduler.Stop(context.Background()) }()
	assert.Eventually(t, func() bool {
		next := h.scheduler.NextRun(JobDigest)
		return !next.IsZero() && next.In(wib).Hour() == 7 && next.In(wib).Minute() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerFireUnknownJob(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil)
	_, err := h.fire("backup", time.Now())
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestSchedulerSkipsOverlappingRun(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil, meeting(1, "Evaluasi", "2025-01-10", "09:00", "10:00"))
	unlock, ok, err := h.scheduler.locker.TryLock(context.Background(), JobStatus)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.fire(JobStatus, at("2025-01-10", "11:00:00"))
	assert.ErrorIs(t, err, ErrJobBusy)

	_, err = h.fire(JobDigest, at("2025-01-10", "07:00:00"))
	assert.NoError(t, err)

	unlock()
	report, err := h.fire(JobStatus, at("2025-01-10", "11:00:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Transitioned)
}

func TestSchedulerSettingsFailureAbortsTick(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil)
	h.settings.getErr = errors.New("database is locked")

	_, err := h.fire(JobReminder, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")
}

func TestSchedulerPassesBusinessTime(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil, meeting(1, "Evaluasi", "2025-01-10", "09:00", "10:00",
		participant(10, "Budi", "081234567890", false)))

	// 01:30 UTC is 08:30 WIB
	_, err := h.fire(JobReminder, time.Date(2025, 1, 10, 1, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, h.channel.messages(), 1)
}

func TestSchedulerStop(t *testing.T) {
	h := newHarness(GuardParticipant, 0, nil)
	require.NoError(t, h.scheduler.Register(context.Background()))
	h.scheduler.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.scheduler.Stop(ctx))

	_, err := h.fire(JobStatus, time.Now())
	assert.ErrorIs(t, err, ErrStopped)
	_, err = h.scheduler.SendReminder(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSchedulerRunScheduledRecordsTrigger(t *testing.T) {
	fixed := at("2025-01-10", "08:30:00")
	h := newHarness(GuardParticipant, 0, nil, meeting(1, "Evaluasi", "2025-01-10", "09:00", "10:00",
		participant(10, "Budi", "081234567890", false)))
	h.scheduler.clock = NewClock(wib, func() time.Time { return fixed })

	h.scheduler.runScheduled(JobReminder)

	require.Len(t, h.sink.entries, 1)
	assert.Equal(t, domain.TriggerScheduled, h.sink.entries[0].TriggerType)
}
