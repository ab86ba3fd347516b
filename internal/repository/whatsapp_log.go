package repository

import (
	"context"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/gorm"
)

var ErrInvalidDeliveryStatus = errors.New("delivery status must be success or failed")

// LogQuery filters the delivery log. Zero fields are ignored.
type LogQuery struct {
	MessageType string
	TriggerType string
	Status      string
	MeetingID   int64
	Keyword     string
	From        time.Time
	To          time.Time
}

// LogStats summarizes the delivery log.
type LogStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByType     map[string]int64 `json:"by_type"`
	MeanMs     float64          `json:"mean_ms"`
	MedianMs   float64          `json:"median_ms"`
	P95Ms      float64          `json:"p95_ms"`
	SuccessPct float64          `json:"success_pct"`
}

// GormWhatsAppLogRepository stores delivery attempts.
type GormWhatsAppLogRepository struct {
	db *gorm.DB
}

func NewGormWhatsAppLogRepository(db *gorm.DB) *GormWhatsAppLogRepository {
	return &GormWhatsAppLogRepository{db: db}
}

// Record implements notify.DeliveryLogSink.
func (r *GormWhatsAppLogRepository) Record(ctx context.Context, entry *domain.WhatsAppLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormWhatsAppLogRepository) GetByID(ctx context.Context, id int64) (*domain.WhatsAppLog, error) {
	var entry domain.WhatsAppLog
	err := r.db.WithContext(ctx).First(&entry, id).Error
	return &entry, err
}

func (r *GormWhatsAppLogRepository) filter(ctx context.Context, q LogQuery) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&domain.WhatsAppLog{})
	if q.MessageType != "" {
		query = query.Where("message_type = ?", q.MessageType)
	}
	if q.TriggerType != "" {
		query = query.Where("trigger_type = ?", q.TriggerType)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.MeetingID != 0 {
		query = query.Where("meeting_id = ?", q.MeetingID)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		like := "%" + kw + "%"
		query = query.Where("recipient LIKE ? OR recipient_name LIKE ? OR meeting_title LIKE ?", like, like, like)
	}
	if !q.From.IsZero() {
		query = query.Where("sent_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		query = query.Where("sent_at < ?", q.To)
	}
	return query
}

func (r *GormWhatsAppLogRepository) List(ctx context.Context, q LogQuery, page, pageSize int) ([]*domain.WhatsAppLog, int64, error) {
	var items []*domain.WhatsAppLog
	var total int64

	query := r.filter(ctx, q)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	err := query.Order("sent_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// ConfirmDelivery settles a pending entry by provider message id. It reports
// false when no pending entry matches.
func (r *GormWhatsAppLogRepository) ConfirmDelivery(ctx context.Context, providerMessageID, status, errorMessage string) (bool, error) {
	if status != domain.DeliverySuccess && status != domain.DeliveryFailed {
		return false, ErrInvalidDeliveryStatus
	}
	result := r.db.WithContext(ctx).
		Model(&domain.WhatsAppLog{}).
		Where("provider_message_id = ? AND status = ?", providerMessageID, domain.DeliveryPending).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
		})
	return result.RowsAffected > 0, result.Error
}

// PurgeBefore deletes entries sent before t.
func (r *GormWhatsAppLogRepository) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("sent_at < ?", t).Delete(&domain.WhatsAppLog{})
	return result.RowsAffected, result.Error
}

type groupCount struct {
	Name  string
	Total int64
}

// Stats aggregates the entries matched by q.
func (r *GormWhatsAppLogRepository) Stats(ctx context.Context, q LogQuery) (*LogStats, error) {
	out := &LogStats{ByStatus: map[string]int64{}, ByType: map[string]int64{}}

	var rows []groupCount
	if err := r.filter(ctx, q).Select("status AS name, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "count by status")
	}
	for _, row := range rows {
		out.ByStatus[row.Name] = row.Total
		out.Total += row.Total
	}
	rows = rows[:0]
	if err := r.filter(ctx, q).Select("message_type AS name, COUNT(*) AS total").Group("message_type").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "count by type")
	}
	for _, row := range rows {
		out.ByType[row.Name] = row.Total
	}
	if out.Total > 0 {
		out.SuccessPct = float64(out.ByStatus[domain.DeliverySuccess]) * 100 / float64(out.Total)
	}

	var durations []float64
	if err := r.filter(ctx, q).Where("duration_ms > 0").Pluck("duration_ms", &durations).Error; err != nil {
		return nil, errors.Wrap(err, "load durations")
	}
	if len(durations) == 0 {
		return out, nil
	}
	data := stats.Float64Data(durations)
	out.MeanMs, _ = data.Mean()
	out.MedianMs, _ = data.Median()
	out.P95Ms, _ = data.Percentile(95)
	return out, nil
}
