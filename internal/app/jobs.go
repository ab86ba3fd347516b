package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughmeeting/internal/notify"
	"go.uber.org/zap"
)

// oprLogRetention operator audit entries are kept for a year.
const oprLogRetention = 365 * 24 * time.Hour

// cronLogger routes robfig/cron messages to zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.S().Named("cron").Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.S().Named("cron").Errorw(msg, append(keysAndValues, "error", err)...)
}

func (a *Application) newLocker() notify.Locker {
	cfg := a.appConfig
	if cfg.Redis.Addr == "" {
		return notify.NewLocalLocker()
	}
	a.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	zap.S().Infof("tick lock shared through redis %s", cfg.Redis.Addr)
	return notify.NewRedisLocker(a.rdb, cfg.System.Appid+":lock:", cfg.Notify.LockTTL)
}

func (a *Application) initJob(ctx context.Context) error {
	cfg := a.appConfig
	a.sched = notify.NewCron(a.clock.Location(),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})))

	dispatcher := notify.NewDispatcher(a.channel, a.waLogs, cfg.Notify.SendTimeout)
	reminder, err := notify.NewReminderJob(a.meetings, dispatcher, a.clock,
		cfg.Notify.Tolerance, cfg.Notify.ReminderGuard, cfg.Notify.Workers)
	if err != nil {
		return err
	}
	a.notifier = notify.NewScheduler(a.sched, a.clock, a.settings, a.newLocker(),
		notify.NewDigestJob(a.meetings, a.settings, dispatcher, a.clock),
		reminder,
		notify.NewStatusJob(a.meetings, a.clock),
	)
	if err := a.notifier.Register(ctx); err != nil {
		return errors.Wrap(err, "register notification jobs")
	}

	if err := a.bus.Subscribe(TopicSettingsUpdated, a.onSettingsUpdated); err != nil {
		return errors.Wrap(err, "subscribe settings updates")
	}

	_, err = a.sched.AddFunc("@daily", a.SchedClearExpireData)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	if a.gateway != nil {
		_, err = a.sched.AddFunc("@every 30s", a.SchedGatewayStatusTask)
		if err != nil {
			zap.S().Errorf("init job error %s", err.Error())
		}
	}
	return nil
}

// onSettingsUpdated moves the digest trigger to the new notification time.
func (a *Application) onSettingsUpdated() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.notifier.Reschedule(ctx); err != nil {
		zap.L().Error("failed to reschedule digest", zap.Error(err))
		return
	}
	zap.L().Info("digest rescheduled",
		zap.Time("next_run", a.notifier.NextRun(notify.JobDigest)))
}

// SchedGatewayStatusTask polls the HTTP gateway and publishes its state.
func (a *Application) SchedGatewayStatusTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.bus.Publish(TopicChannelState, a.gateway.Refresh(ctx))
}

// SchedClearExpireData purges delivery logs past the retention window and
// operator audit entries older than a year.
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := a.clock.Now()
	days := a.appConfig.Notify.LogRetentionDays
	if days <= 0 {
		days = 90
	}
	n, err := a.waLogs.PurgeBefore(ctx, now.AddDate(0, 0, -days))
	if err != nil {
		zap.L().Error("failed to purge whatsapp logs", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("purged whatsapp logs", zap.Int64("rows", n), zap.Int("retention_days", days))
	}

	if _, err := a.oprLogs.PurgeBefore(ctx, now.Add(-oprLogRetention)); err != nil {
		zap.L().Error("failed to purge operator logs", zap.Error(err))
	}
}
