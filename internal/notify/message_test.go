package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughmeeting/internal/domain"
)

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "Jumat, 10 Januari 2025", FormatDate("2025-01-10"))
	assert.Equal(t, "Senin, 1 Desember 2025", FormatDate("2025-12-01"))
	assert.Equal(t, "bukan tanggal", FormatDate("bukan tanggal"))
}

func TestBuildDigest(t *testing.T) {
	s := domain.DefaultNotifySettings()
	first := meeting(1, "Apel Pagi", "2025-01-10", "08:00", "08:30")
	first.MeetingLink = "https://meet.example.com/apel"
	second := meeting(2, "Evaluasi Kinerja", "2025-01-10", "13:00", "15:00",
		participant(10, "Budi", "081234567890", true),
		participant(11, "Sari", "081298765432", false),
		participant(12, "Dewi", "081211112222", true),
	)

	out := BuildDigest(s, "2025-01-10", []*domain.Meeting{first, second})

	assert.True(t, strings.HasPrefix(out, "📅 *Jadwal Rapat Hari Ini*\nJumat, 10 Januari 2025\n"))
	i1 := strings.Index(out, "1. *Apel Pagi*")
	i2 := strings.Index(out, "2. *Evaluasi Kinerja*")
	require.True(t, i1 >= 0 && i2 >= 0, out)
	assert.Less(t, i1, i2)
	assert.Contains(t, out, "👥 "+AllParticipants)
	assert.Contains(t, out, "👥 Budi, Dewi")
	assert.Equal(t, 1, strings.Count(out, "🔗"))
	assert.NotContains(t, out, "👔")
}

func TestBuildReminderUsesCustomTemplate(t *testing.T) {
	s := domain.DefaultNotifySettings()
	require.NoError(t, s.SetTemplates(map[string]string{
		domain.TemplateIndividualReminder: "{name}: {title} {minutes}m\nlink {meeting_link}",
	}))
	m := meeting(1, "Apel", "2025-01-10", "08:00", "08:30")

	assert.Equal(t, "Budi: Apel 30m", BuildReminder(s, m, "Budi"))
}
