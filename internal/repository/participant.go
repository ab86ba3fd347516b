package repository

import (
	"context"
	"strings"

	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/gorm"
)

// GormParticipantRepository stores participants.
type GormParticipantRepository struct {
	db *gorm.DB
}

func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	return &GormParticipantRepository{db: db}
}

func (r *GormParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormParticipantRepository) Update(ctx context.Context, p *domain.Participant) error {
	return r.db.WithContext(ctx).Omit("CreatedAt").Save(p).Error
}

func (r *GormParticipantRepository) GetByID(ctx context.Context, id int64) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

// Delete removes the participant and its meeting links.
func (r *GormParticipantRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("participant_id = ?", id).Delete(&domain.MeetingParticipant{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Participant{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// List pages through participants matching keyword on name, phone or
// section. A nil active returns both states.
func (r *GormParticipantRepository) List(ctx context.Context, keyword string, active *bool, page, pageSize int) ([]*domain.Participant, int64, error) {
	var items []*domain.Participant
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Participant{})
	if kw := strings.TrimSpace(keyword); kw != "" {
		like := "%" + kw + "%"
		query = query.Where("name LIKE ? OR phone LIKE ? OR section LIKE ?", like, like, like)
	}
	if active != nil {
		query = query.Where("active = ?", *active)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	err := query.Order("name ASC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}
