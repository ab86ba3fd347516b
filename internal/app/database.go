package app

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/talkincode/toughmeeting/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteParams are appended to every sqlite DSN; the whatsmeow store needs
// foreign keys on every pooled connection.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

func isPostgres(dbType string) bool {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// sqliteDSN resolves the database name against the data directory. Names
// starting with "file:" or ":memory:" are used as given.
func sqliteDSN(cfg config.DBConfig, workdir string) string {
	name := cfg.Name
	if name == "" {
		name = "toughmeeting.db"
	}
	if !strings.HasPrefix(name, "file:") && !strings.HasPrefix(name, ":memory:") && !path.IsAbs(name) {
		name = path.Join(workdir, "data", name)
	}
	if strings.Contains(name, "?") {
		return name + "&" + sqliteParams
	}
	return name + "?" + sqliteParams
}

func inMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func getDatabase(cfg config.DBConfig, workdir string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		memory    bool
	)
	if isPostgres(cfg.Type) {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	} else {
		dsn := sqliteDSN(cfg, workdir)
		memory = inMemory(dsn)
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxConn, idleConn := cfg.MaxConn, cfg.IdleConn
	if maxConn <= 0 {
		maxConn = 10
	}
	if idleConn <= 0 || idleConn > maxConn {
		idleConn = maxConn
	}
	if memory {
		// each connection would otherwise see its own empty database
		maxConn, idleConn = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxConn)
	sqlDB.SetMaxIdleConns(idleConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	zap.S().Debugf("database pool max=%d idle=%d", maxConn, idleConn)
	return db, nil
}
