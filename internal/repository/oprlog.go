package repository

import (
	"context"
	"time"

	"github.com/talkincode/toughmeeting/internal/domain"
	"gorm.io/gorm"
)

// GormOprLogRepository stores the admin audit trail.
type GormOprLogRepository struct {
	db *gorm.DB
}

func NewGormOprLogRepository(db *gorm.DB) *GormOprLogRepository {
	return &GormOprLogRepository{db: db}
}

func (r *GormOprLogRepository) Add(ctx context.Context, operator, ip, action, desc string) error {
	return r.db.WithContext(ctx).Create(&domain.SysOprLog{
		OprName:   operator,
		OprIp:     ip,
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}).Error
}

func (r *GormOprLogRepository) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("opt_time < ?", t).Delete(&domain.SysOprLog{})
	return result.RowsAffected, result.Error
}
