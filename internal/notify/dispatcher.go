package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"go.uber.org/zap"
)

// DefaultSendTimeout bounds a single send.
const DefaultSendTimeout = 20 * time.Second

var ErrSendTimeout = errors.New("send timed out")

// Delivery one message to send.
type Delivery struct {
	MessageType   string
	TriggerType   string
	Recipient     string
	RecipientName string
	ParticipantID int64
	Message       string
	Meetings      []*domain.Meeting
}

// Dispatcher sends through a DeliveryChannel with a timeout and records
// every attempt in the delivery log.
type Dispatcher struct {
	channel DeliveryChannel
	sink    DeliveryLogSink
	timeout time.Duration
}

func NewDispatcher(channel DeliveryChannel, sink DeliveryLogSink, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{channel: channel, sink: sink, timeout: timeout}
}

func (d *Dispatcher) Connected() bool {
	return d.channel.IsConnected()
}

// Deliver sends d and returns the recorded log entry. The entry status is
// failed, pending or success; it never returns an error.
func (d *Dispatcher) Deliver(ctx context.Context, req Delivery) *domain.WhatsAppLog {
	start := time.Now()
	res, err := d.send(ctx, req)
	entry := newLogEntry(req)
	entry.DurationMs = time.Since(start).Milliseconds()
	switch {
	case err != nil:
		entry.Status = domain.DeliveryFailed
		entry.ErrorMessage = err.Error()
	case res != nil && res.Pending:
		entry.Status = domain.DeliveryPending
		entry.ProviderMessageID = res.ProviderMessageID
	default:
		entry.Status = domain.DeliverySuccess
		if res != nil {
			entry.ProviderMessageID = res.ProviderMessageID
		}
	}
	d.record(ctx, entry)
	return entry
}

// Fail records an attempt that never reached the channel.
func (d *Dispatcher) Fail(ctx context.Context, req Delivery, cause error) *domain.WhatsAppLog {
	entry := newLogEntry(req)
	entry.Status = domain.DeliveryFailed
	entry.ErrorMessage = cause.Error()
	d.record(ctx, entry)
	return entry
}

func (d *Dispatcher) record(ctx context.Context, entry *domain.WhatsAppLog) {
	if entry.Status == domain.DeliveryFailed {
		zap.S().Warnf("whatsapp %s message to %s failed: %s", entry.MessageType, entry.Recipient, entry.ErrorMessage)
	}
	if err := d.sink.Record(ctx, entry); err != nil {
		zap.L().Error("record delivery log", zap.Error(err),
			zap.String("recipient", entry.Recipient), zap.String("status", entry.Status))
	}
}

type sendOutcome struct {
	res *DeliveryResult
	err error
}

func (d *Dispatcher) send(ctx context.Context, req Delivery) (*DeliveryResult, error) {
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	done := make(chan sendOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sendOutcome{err: fmt.Errorf("send panic: %v", r)}
			}
		}()
		var o sendOutcome
		if req.MessageType == domain.MessageTypeGroup {
			o.res, o.err = d.channel.SendToGroup(sctx, req.Recipient, req.Message)
		} else {
			o.res, o.err = d.channel.SendToIndividual(sctx, req.Recipient, req.Message)
		}
		done <- o
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-sctx.Done():
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(ErrSendTimeout, "after %s", d.timeout)
		}
		return nil, sctx.Err()
	}
}

func newLogEntry(req Delivery) *domain.WhatsAppLog {
	entry := &domain.WhatsAppLog{
		MessageType:   req.MessageType,
		TriggerType:   req.TriggerType,
		ParticipantID: req.ParticipantID,
		Recipient:     req.Recipient,
		RecipientName: req.RecipientName,
		Message:       req.Message,
		SentAt:        time.Now(),
	}
	switch len(req.Meetings) {
	case 0:
	case 1:
		m := req.Meetings[0]
		entry.MeetingID = m.ID
		entry.MeetingTitle = m.Title
		entry.MeetingDate = m.Date
		entry.MeetingTime = m.TimeRange()
	default:
		titles := make([]string, 0, len(req.Meetings))
		for _, m := range req.Meetings {
			titles = append(titles, m.Title)
		}
		first, last := req.Meetings[0], req.Meetings[len(req.Meetings)-1]
		entry.MeetingTitle = strings.Join(titles, "; ")
		entry.MeetingDate = first.Date
		entry.MeetingTime = first.StartTime + " - " + last.EndTime
	}
	return entry
}
