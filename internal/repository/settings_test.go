package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/gorm"
)

func TestSettingsRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSettingsRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.SetChannelConnected(ctx, true), gorm.ErrRecordNotFound)

	require.NoError(t, repo.Create(ctx, domain.DefaultNotifySettings()))
	assert.ErrorIs(t, repo.Create(ctx, domain.DefaultNotifySettings()), domain.ErrSettingsExists)

	s, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "07:00", s.GroupNotificationTime)
	assert.Equal(t, 30, s.IndividualReminderMinutes)
	assert.Equal(t, domain.DefaultTemplates[domain.TemplateGroupDaily], s.Template(domain.TemplateGroupDaily))
	assert.Nil(t, s.LastGroupNotification)

	stamp := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastGroupNotification(ctx, stamp))
	require.NoError(t, repo.SetChannelConnected(ctx, true))

	s, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.LastGroupNotification)
	assert.True(t, stamp.Equal(*s.LastGroupNotification))
	assert.True(t, s.WhatsAppConnected)

	s.GroupNotificationTime = "06:30"
	s.GroupID = "120363025246125486@g.us"
	require.NoError(t, repo.Save(ctx, s))
	s, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "06:30", s.GroupNotificationTime)
	assert.Equal(t, "120363025246125486@g.us", s.GroupID)

	stale := *s
	stale.IndividualReminderEnabled = false
	stale.IndividualReminderMinutes = 15
	stale.WhatsAppConnected = false
	stale.LastGroupNotification = nil
	require.NoError(t, repo.Patch(ctx, &stale))
	s, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, s.IndividualReminderEnabled)
	assert.Equal(t, 15, s.IndividualReminderMinutes)
	assert.True(t, s.WhatsAppConnected)
	assert.NotNil(t, s.LastGroupNotification)

	var count int64
	require.NoError(t, db.Model(&domain.NotifySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
