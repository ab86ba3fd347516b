package config

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system config
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig admin api config
type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DBConfig database config
type DBConfig struct {
	Type     string `yaml:"type" json:"type"` // sqlite or postgres
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// NotifyConfig tunes the notification scheduler.
type NotifyConfig struct {
	Channel          string        `yaml:"channel" json:"channel"` // whatsmeow or gateway
	SendTimeout      time.Duration `yaml:"send_timeout" json:"send_timeout"`
	Tolerance        time.Duration `yaml:"tolerance" json:"tolerance"`
	ReminderGuard    string        `yaml:"reminder_guard" json:"reminder_guard"` // participant or meeting
	Workers          int           `yaml:"workers" json:"workers"`
	LockTTL          time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
	LogRetentionDays int           `yaml:"log_retention_days" json:"log_retention_days"`
}

// GatewayConfig HTTP WhatsApp gateway, used when notify.channel is "gateway".
type GatewayConfig struct {
	URL     string        `yaml:"url" json:"url"`
	ApiKey  string        `yaml:"api_key" json:"api_key"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RedisConfig optional; enables the cross-instance tick lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// AppConfig application configuration
type AppConfig struct {
	System   SysConfig     `yaml:"system" json:"system"`
	Web      WebConfig     `yaml:"web" json:"web"`
	Database DBConfig      `yaml:"database" json:"database"`
	Logger   LogConfig     `yaml:"logger" json:"logger"`
	Notify   NotifyConfig  `yaml:"notify" json:"notify"`
	Gateway  GatewayConfig `yaml:"gateway" json:"gateway"`
	Redis    RedisConfig   `yaml:"redis" json:"redis"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

// DefaultAppConfig returns the built-in defaults.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "ToughMeeting",
			Location: "Asia/Jakarta",
			Workdir:  "/var/toughmeeting",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 1816,
		},
		Database: DBConfig{
			Type:     "sqlite",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "toughmeeting.db",
			User:     "postgres",
			Passwd:   "myroot",
			MaxConn:  50,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: true,
			Filename:   "/var/toughmeeting/logs/toughmeeting.log",
		},
		Notify: NotifyConfig{
			Channel:          "whatsmeow",
			SendTimeout:      20 * time.Second,
			Tolerance:        time.Minute,
			ReminderGuard:    "participant",
			Workers:          8,
			LockTTL:          5 * time.Minute,
			LogRetentionDays: 365,
		},
		Gateway: GatewayConfig{
			Timeout: 15 * time.Second,
		},
	}
}

// LoadConfig reads the YAML file at cfile (when present) on top of the
// defaults, then applies TOUGHMEETING_* environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfile, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *AppConfig) error {
	invalid := make([]string, 0, 2)

	setString := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				invalid = append(invalid, name)
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				invalid = append(invalid, name)
				return
			}
			*dst = b
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil || d <= 0 {
				invalid = append(invalid, name)
				return
			}
			*dst = d
		}
	}

	setString("TOUGHMEETING_SYSTEM_LOCATION", &cfg.System.Location)
	setString("TOUGHMEETING_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setBool("TOUGHMEETING_SYSTEM_DEBUG", &cfg.System.Debug)
	setString("TOUGHMEETING_WEB_HOST", &cfg.Web.Host)
	setInt("TOUGHMEETING_WEB_PORT", &cfg.Web.Port)
	setString("TOUGHMEETING_DB_TYPE", &cfg.Database.Type)
	setString("TOUGHMEETING_DB_HOST", &cfg.Database.Host)
	setInt("TOUGHMEETING_DB_PORT", &cfg.Database.Port)
	setString("TOUGHMEETING_DB_NAME", &cfg.Database.Name)
	setString("TOUGHMEETING_DB_USER", &cfg.Database.User)
	setString("TOUGHMEETING_DB_PWD", &cfg.Database.Passwd)
	setBool("TOUGHMEETING_DB_DEBUG", &cfg.Database.Debug)
	setString("TOUGHMEETING_LOGGER_MODE", &cfg.Logger.Mode)
	setBool("TOUGHMEETING_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)
	setString("TOUGHMEETING_NOTIFY_CHANNEL", &cfg.Notify.Channel)
	setDuration("TOUGHMEETING_NOTIFY_SEND_TIMEOUT", &cfg.Notify.SendTimeout)
	setDuration("TOUGHMEETING_NOTIFY_TOLERANCE", &cfg.Notify.Tolerance)
	setString("TOUGHMEETING_NOTIFY_REMINDER_GUARD", &cfg.Notify.ReminderGuard)
	setInt("TOUGHMEETING_NOTIFY_WORKERS", &cfg.Notify.Workers)
	setDuration("TOUGHMEETING_NOTIFY_LOCK_TTL", &cfg.Notify.LockTTL)
	setInt("TOUGHMEETING_NOTIFY_LOG_RETENTION_DAYS", &cfg.Notify.LogRetentionDays)
	setString("TOUGHMEETING_GATEWAY_URL", &cfg.Gateway.URL)
	setString("TOUGHMEETING_GATEWAY_API_KEY", &cfg.Gateway.ApiKey)
	setDuration("TOUGHMEETING_GATEWAY_TIMEOUT", &cfg.Gateway.Timeout)
	setString("TOUGHMEETING_REDIS_ADDR", &cfg.Redis.Addr)
	setString("TOUGHMEETING_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("TOUGHMEETING_REDIS_DB", &cfg.Redis.DB)

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// Validate rejects combinations the scheduler cannot run with.
func (c *AppConfig) Validate() error {
	invalid := make([]string, 0, 2)
	if _, err := time.LoadLocation(c.System.Location); err != nil {
		invalid = append(invalid, "system.location")
	}
	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		invalid = append(invalid, "database.type")
	}
	switch c.Notify.Channel {
	case "whatsmeow":
	case "gateway":
		if strings.TrimSpace(c.Gateway.URL) == "" {
			invalid = append(invalid, "gateway.url")
		}
	default:
		invalid = append(invalid, "notify.channel")
	}
	switch c.Notify.ReminderGuard {
	case "participant", "meeting":
	default:
		invalid = append(invalid, "notify.reminder_guard")
	}
	if c.Notify.SendTimeout <= 0 {
		invalid = append(invalid, "notify.send_timeout")
	}
	if c.Notify.Tolerance < 0 {
		invalid = append(invalid, "notify.tolerance")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid config values: %s", strings.Join(invalid, ", "))
	}
	return nil
}
