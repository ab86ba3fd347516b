package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughmeeting/config"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/notify"
	"github.com/talkincode/toughmeeting/internal/repository"
	"github.com/talkincode/toughmeeting/internal/whatsapp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

// Event bus topics.
const (
	// TopicSettingsUpdated is published after the notification settings change.
	TopicSettingsUpdated = "settings:updated"
	// TopicChannelState carries the delivery channel connection state (bool).
	TopicChannelState = "channel:state"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	clock     *notify.Clock
	notifier  *notify.Scheduler
	bus       EventBus.Bus
	rdb       redis.UniversalClient

	channel  notify.DeliveryChannel
	whatsapp *whatsapp.Service
	gateway  *whatsapp.Gateway

	meetings     *repository.GormMeetingRepository
	participants *repository.GormParticipantRepository
	settings     *repository.GormSettingsRepository
	waLogs       *repository.GormWhatsAppLogRepository
	oprLogs      *repository.GormOprLogRepository
}

// Ensure Application implements all interfaces
var (
	_ DBProvider         = (*Application)(nil)
	_ ConfigProvider     = (*Application)(nil)
	_ RepositoryProvider = (*Application)(nil)
	_ NotifierProvider   = (*Application)(nil)
	_ ChannelProvider    = (*Application)(nil)
	_ EventBusProvider   = (*Application)(nil)
	_ AppContext         = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig, bus: EventBus.New()}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// OverrideChannel installs a delivery channel before Init (used in tests).
func (a *Application) OverrideChannel(ch notify.DeliveryChannel) {
	a.channel = ch
}

func (a *Application) Init(ctx context.Context) error {
	cfg := a.appConfig
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		return errors.Wrapf(err, "load location %s", cfg.System.Location)
	}
	a.clock = notify.NewClock(loc, nil)

	if err := initLogger(cfg); err != nil {
		return err
	}

	if a.gormDB == nil {
		if !isPostgres(cfg.Database.Type) {
			_ = os.MkdirAll(cfg.GetDataDir(), 0o755)
		}
		a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
		if err != nil {
			return errors.Wrap(err, "open database")
		}
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		return errors.Wrap(err, "database migration failed")
	}

	a.meetings = repository.NewGormMeetingRepository(a.gormDB)
	a.participants = repository.NewGormParticipantRepository(a.gormDB)
	a.settings = repository.NewGormSettingsRepository(a.gormDB)
	a.waLogs = repository.NewGormWhatsAppLogRepository(a.gormDB)
	a.oprLogs = repository.NewGormOprLogRepository(a.gormDB)

	if err := a.checkSettings(ctx); err != nil {
		return err
	}

	if err := a.initChannel(ctx); err != nil {
		return err
	}
	return a.initJob(ctx)
}

func initLogger(cfg *config.AppConfig) error {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.System.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		filename := cfg.Logger.Filename
		if filename == "" {
			filename = cfg.GetLogDir() + "/toughmeeting.log"
		}
		lumberJackLogger := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// initChannel picks the delivery channel and mirrors its state into the
// settings row through the event bus.
func (a *Application) initChannel(ctx context.Context) error {
	if err := a.bus.Subscribe(TopicChannelState, a.onChannelState); err != nil {
		return errors.Wrap(err, "subscribe channel state")
	}
	if a.channel != nil {
		return nil
	}

	cfg := a.appConfig
	switch cfg.Notify.Channel {
	case "gateway":
		a.gateway = whatsapp.NewGateway(cfg.Gateway.URL, cfg.Gateway.ApiKey, cfg.Gateway.Timeout)
		a.channel = a.gateway
	default:
		sqlDB, err := a.gormDB.DB()
		if err != nil {
			return errors.Wrap(err, "database handle")
		}
		svc, err := whatsapp.New(ctx, sqlDB, cfg.Database.Type)
		if err != nil {
			return errors.Wrap(err, "init whatsmeow")
		}
		svc.OnStateChange(func(connected bool) {
			a.bus.Publish(TopicChannelState, connected)
		})
		a.whatsapp = svc
		a.channel = svc
	}
	zap.S().Infof("delivery channel: %s", cfg.Notify.Channel)
	return nil
}

func (a *Application) onChannelState(connected bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.settings.SetChannelConnected(ctx, connected); err != nil {
		zap.L().Error("failed to store channel state", zap.Bool("connected", connected), zap.Error(err))
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			zap.S().Error(err1)
			err = errors.Errorf("migrate panic: %v", err1)
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

// InitDb drops and recreates every table, then seeds the default settings.
func (a *Application) InitDb(ctx context.Context) error {
	if err := a.gormDB.Migrator().DropTable(domain.Tables...); err != nil {
		return errors.Wrap(err, "drop tables")
	}
	if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
		return errors.Wrap(err, "migrate")
	}
	if err := a.checkSettings(ctx); err != nil {
		return err
	}
	a.bus.Publish(TopicSettingsUpdated)
	return nil
}

func (a *Application) Meetings() *repository.GormMeetingRepository {
	return a.meetings
}

func (a *Application) Participants() *repository.GormParticipantRepository {
	return a.participants
}

func (a *Application) Settings() *repository.GormSettingsRepository {
	return a.settings
}

func (a *Application) WhatsAppLogs() *repository.GormWhatsAppLogRepository {
	return a.waLogs
}

func (a *Application) OprLogs() *repository.GormOprLogRepository {
	return a.oprLogs
}

// Notifier returns the notification scheduler
func (a *Application) Notifier() *notify.Scheduler {
	return a.notifier
}

func (a *Application) Clock() *notify.Clock {
	return a.clock
}

func (a *Application) Channel() notify.DeliveryChannel {
	return a.channel
}

func (a *Application) WhatsApp() *whatsapp.Service {
	return a.whatsapp
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// Run starts the scheduler and the delivery channel and blocks until ctx is
// done. The scheduler is then stopped, waiting for in-flight ticks, and only
// after that is the channel closed.
func (a *Application) Run(ctx context.Context) error {
	a.notifier.Start()
	zap.S().Infof("notification scheduler started, next digest at %s",
		a.notifier.NextRun(notify.JobDigest).Format(time.RFC3339))

	var runErr error
	if a.whatsapp != nil {
		runErr = a.whatsapp.Start(ctx)
	} else {
		if a.gateway != nil {
			a.SchedGatewayStatusTask()
		}
		<-ctx.Done()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.notifier.Stop(stopCtx); err != nil {
		zap.L().Warn("scheduler stop", zap.Error(err))
	}
	if st, ok := a.channel.(interface{ Stop() }); ok {
		st.Stop()
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// Release releases application resources
func (a *Application) Release() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = zap.L().Sync()
}
