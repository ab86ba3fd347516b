package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

func seedParticipant(t *testing.T, db *gorm.DB, name, phone string, active bool) *domain.Participant {
	t.Helper()
	p := &domain.Participant{Name: name, Phone: phone, Section: "Umum", Active: active}
	require.NoError(t, NewGormParticipantRepository(db).Create(context.Background(), p))
	return p
}

func seedMeeting(t *testing.T, db *gorm.DB, title, date, start, end string, attendees ...Attendee) *domain.Meeting {
	t.Helper()
	m := &domain.Meeting{
		Title:                    title,
		Date:                     date,
		StartTime:                start,
		EndTime:                  end,
		Location:                 "Aula",
		WhatsAppReminderEnabled:  true,
		GroupNotificationEnabled: true,
	}
	require.NoError(t, m.Validate())
	require.NoError(t, NewGormMeetingRepository(db).Create(context.Background(), m, attendees))
	return m
}
