package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
)

var wib = time.FixedZone("WIB", 7*3600)

func at(date, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, wib)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeMeetings struct {
	mu      sync.Mutex
	items   map[int64]*domain.Meeting
	findErr error
}

func newFakeMeetings(ms ...*domain.Meeting) *fakeMeetings {
	f := &fakeMeetings{items: make(map[int64]*domain.Meeting)}
	for _, m := range ms {
		f.items[m.ID] = m
	}
	return f
}

func copyMeeting(m *domain.Meeting) *domain.Meeting {
	c := *m
	c.Participants = append([]domain.MeetingParticipant(nil), m.Participants...)
	return &c
}

func (f *fakeMeetings) get(id int64) *domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyMeeting(f.items[id])
}

func (f *fakeMeetings) GetByID(_ context.Context, id int64) (*domain.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.items[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return copyMeeting(m), nil
}

func (f *fakeMeetings) FindByDateAndFlags(_ context.Context, filter domain.MeetingFilter) ([]*domain.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	dates := make(map[string]bool)
	for _, d := range filter.Dates {
		dates[d] = true
	}
	var out []*domain.Meeting
	for _, m := range f.items {
		switch {
		case !dates[m.Date], m.Status == domain.MeetingStatusCancelled:
		case filter.GroupNotificationEnabled && !m.GroupNotificationEnabled:
		case filter.WhatsAppReminderEnabled && !m.WhatsAppReminderEnabled:
		case filter.ExcludeGroupNotified && m.GroupNotifiedAt != nil:
		case filter.ExcludeReminderSent && m.ReminderSent:
		default:
			out = append(out, copyMeeting(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (f *fakeMeetings) FindUpcomingPastEnd(_ context.Context, date, clock string) ([]*domain.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []*domain.Meeting
	for _, m := range f.items {
		if m.Status == domain.MeetingStatusUpcoming && (m.Date < date || (m.Date == date && m.EndTime < clock)) {
			out = append(out, copyMeeting(m))
		}
	}
	return out, nil
}

func (f *fakeMeetings) MarkGroupNotified(_ context.Context, ids []int64, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		t := t
		f.items[id].GroupNotifiedAt = &t
	}
	return nil
}

func (f *fakeMeetings) MarkReminderSent(_ context.Context, id int64, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].ReminderSent = true
	f.items[id].ReminderSentAt = &t
	return nil
}

func (f *fakeMeetings) MarkParticipantReminded(_ context.Context, meetingID, participantID int64, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.items[meetingID]
	for i := range m.Participants {
		if m.Participants[i].ParticipantID == participantID {
			t := t
			m.Participants[i].ReminderSentAt = &t
		}
	}
	return nil
}

func (f *fakeMeetings) BulkSetStatus(_ context.Context, ids []int64, from, to string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if m, ok := f.items[id]; ok && m.Status == from {
			m.Status = to
			n++
		}
	}
	return n, nil
}

type fakeSettings struct {
	mu       sync.Mutex
	settings *domain.NotifySettings
	getErr   error
}

func newFakeSettings(mutate func(s *domain.NotifySettings)) *fakeSettings {
	s := domain.DefaultNotifySettings()
	s.GroupID = "120363025246125486@g.us"
	if mutate != nil {
		mutate(s)
	}
	return &fakeSettings{settings: s}
}

func (f *fakeSettings) Get(context.Context) (*domain.NotifySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c := *f.settings
	return &c, nil
}

func (f *fakeSettings) UpdateLastGroupNotification(_ context.Context, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings.LastGroupNotification = &t
	return nil
}

type sentMessage struct {
	group   bool
	to      string
	message string
}

type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	fail      map[string]error
	delay     map[string]time.Duration
	sent      []sentMessage
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{connected: true, fail: map[string]error{}, delay: map[string]time.Duration{}}
}

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) send(ctx context.Context, group bool, to, message string) (*DeliveryResult, error) {
	f.mu.Lock()
	delay, err := f.delay[to], f.fail[to]
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{group: group, to: to, message: message})
	return &DeliveryResult{ProviderMessageID: "3EB0" + to}, nil
}

func (f *fakeChannel) SendToIndividual(ctx context.Context, address, message string) (*DeliveryResult, error) {
	return f.send(ctx, false, address, message)
}

func (f *fakeChannel) SendToGroup(ctx context.Context, groupID, message string) (*DeliveryResult, error) {
	return f.send(ctx, true, groupID, message)
}

func (f *fakeChannel) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeSink struct {
	mu      sync.Mutex
	entries []*domain.WhatsAppLog
}

func (f *fakeSink) Record(_ context.Context, entry *domain.WhatsAppLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeSink) byStatus(status string) []*domain.WhatsAppLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WhatsAppLog
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func participant(id int64, name, phone string, attendee bool) domain.MeetingParticipant {
	return domain.MeetingParticipant{
		ID:            id * 100,
		ParticipantID: id,
		IsAttendee:    attendee,
		Participant:   &domain.Participant{ID: id, Name: name, Phone: phone, Active: true},
	}
}

func meeting(id int64, title, date, start, end string, ps ...domain.MeetingParticipant) *domain.Meeting {
	for i := range ps {
		ps[i].MeetingID = id
	}
	return &domain.Meeting{
		ID:                       id,
		Title:                    title,
		Date:                     date,
		StartTime:                start,
		EndTime:                  end,
		Location:                 "Ruang Rapat Utama",
		Status:                   domain.MeetingStatusUpcoming,
		WhatsAppReminderEnabled:  true,
		GroupNotificationEnabled: true,
		Participants:             ps,
	}
}

// harness wires the jobs to fakes the way the application does.
type harness struct {
	meetings   *fakeMeetings
	settings   *fakeSettings
	channel    *fakeChannel
	sink       *fakeSink
	clock      *Clock
	scheduler  *Scheduler
	reminder   *ReminderJob
	dispatcher *Dispatcher
}

func newHarness(guard string, timeout time.Duration, settings *fakeSettings, ms ...*domain.Meeting) *harness {
	h := &harness{
		meetings: newFakeMeetings(ms...),
		settings: settings,
		channel:  newFakeChannel(),
		sink:     &fakeSink{},
		clock:    NewClock(wib, nil),
	}
	if h.settings == nil {
		h.settings = newFakeSettings(nil)
	}
	h.dispatcher = NewDispatcher(h.channel, h.sink, timeout)
	reminder, err := NewReminderJob(h.meetings, h.dispatcher, h.clock, DefaultTolerance, guard, 4)
	if err != nil {
		panic(err)
	}
	h.reminder = reminder
	h.scheduler = NewScheduler(NewCron(wib), h.clock, h.settings, NewLocalLocker(),
		NewDigestJob(h.meetings, h.settings, h.dispatcher, h.clock),
		reminder,
		NewStatusJob(h.meetings, h.clock),
	)
	return h
}

func (h *harness) fire(name string, now time.Time) (*Report, error) {
	return h.scheduler.Fire(context.Background(), name, now, domain.TriggerScheduled)
}
