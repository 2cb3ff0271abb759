package persistence

import (
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
)

// JobRecordModel is the persistence row for a finished label job
type JobRecordModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID           string    `gorm:"type:varchar(100);index:idx_label_jobs_store_created,priority:1"`
	Destination       string    `gorm:"type:varchar(255)"`
	State             string    `gorm:"type:varchar(30);not null"`
	Reprint           bool      `gorm:"not null;default:false"`
	UnitCount         int       `gorm:"not null;default:0"`
	Pages             int       `gorm:"not null;default:0"`
	ItemsPrinted      int       `gorm:"not null;default:0"`
	QRCodesRegistered int       `gorm:"column:qr_codes_registered;not null;default:0"`
	Success           bool      `gorm:"not null;default:false"`
	FailureKind       string    `gorm:"type:varchar(30)"`
	Message           string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null;index:idx_label_jobs_store_created,priority:2"`
	CompletedAt       *time.Time
}

// TableName returns the table name for GORM
func (JobRecordModel) TableName() string {
	return "label_jobs"
}

// ToDomain converts the model to a domain record
func (m *JobRecordModel) ToDomain() *printing.JobRecord {
	return &printing.JobRecord{
		ID:                m.ID,
		StoreID:           m.StoreID,
		Destination:       m.Destination,
		State:             printing.JobState(m.State),
		Reprint:           m.Reprint,
		UnitCount:         m.UnitCount,
		Pages:             m.Pages,
		ItemsPrinted:      m.ItemsPrinted,
		QRCodesRegistered: m.QRCodesRegistered,
		Success:           m.Success,
		FailureKind:       printing.FailureKind(m.FailureKind),
		Message:           m.Message,
		CreatedAt:         m.CreatedAt,
		CompletedAt:       m.CompletedAt,
	}
}

// FromDomain populates the model from a domain record
func (m *JobRecordModel) FromDomain(r *printing.JobRecord) {
	m.ID = r.ID
	m.StoreID = r.StoreID
	m.Destination = r.Destination
	m.State = string(r.State)
	m.Reprint = r.Reprint
	m.UnitCount = r.UnitCount
	m.Pages = r.Pages
	m.ItemsPrinted = r.ItemsPrinted
	m.QRCodesRegistered = r.QRCodesRegistered
	m.Success = r.Success
	m.FailureKind = string(r.FailureKind)
	m.Message = r.Message
	m.CreatedAt = r.CreatedAt
	m.CompletedAt = r.CompletedAt
}
