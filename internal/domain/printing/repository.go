package printing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobRecord is the history entry kept for a finished job. It holds counts
// and outcome only; label payloads are never stored.
type JobRecord struct {
	ID                uuid.UUID
	StoreID           string
	Destination       string
	State             JobState
	Reprint           bool
	UnitCount         int
	Pages             int
	ItemsPrinted      int
	QRCodesRegistered int
	Success           bool
	FailureKind       FailureKind
	Message           string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// JobHistoryRepository defines the persistence interface for job history
type JobHistoryRepository interface {
	// Save inserts or updates a record
	Save(ctx context.Context, record *JobRecord) error
	// FindByID returns a record or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*JobRecord, error)
	// FindRecent returns the newest records first; an empty storeID matches all stores
	FindRecent(ctx context.Context, storeID string, limit int) ([]JobRecord, error)
}
