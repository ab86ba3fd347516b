package domain

import (
	"github.com/talkincode/toughmeeting/pkg/common"
	"gorm.io/gorm"
)

func (m *Meeting) BeforeCreate(tx *gorm.DB) error {
	if m.ID == 0 {
		m.ID = common.UUIDint64()
	}
	return nil
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == 0 {
		p.ID = common.UUIDint64()
	}
	return nil
}

// BeforeSave keeps the stored phone number canonical. Invalid numbers are
// stored as given so the scheduler can report them per recipient.
func (p *Participant) BeforeSave(tx *gorm.DB) error {
	if normalized, err := NormalizePhone(p.Phone); err == nil {
		p.Phone = normalized
	}
	return nil
}

func (mp *MeetingParticipant) BeforeCreate(tx *gorm.DB) error {
	if mp.ID == 0 {
		mp.ID = common.UUIDint64()
	}
	return nil
}

func (l *WhatsAppLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == 0 {
		l.ID = common.UUIDint64()
	}
	return nil
}

func (l *SysOprLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == 0 {
		l.ID = common.UUIDint64()
	}
	return nil
}
