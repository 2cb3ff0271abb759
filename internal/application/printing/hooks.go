package printing

import (
	"context"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
)

// PrintedBatch describes a delivered job for after-print side channels
type PrintedBatch struct {
	JobID       uuid.UUID
	Batch       *printing.ConfirmedBatch
	Config      printing.PrintJobConfig
	Document    *printing.Document
	Destination string
	Reprint     bool
}

// PrintedHook is a best-effort side channel run after a successful print.
// Its error is logged and never changes the job result.
type PrintedHook interface {
	Name() string
	AfterPrint(ctx context.Context, printed PrintedBatch) error
}

// LocationRecorder tells the backend where printed codes physically are
type LocationRecorder interface {
	RecordLocations(ctx context.Context, codes []printing.SaleCode, locationID, locationName string) error
}

// LocationHook registers the location of printed codes
type LocationHook struct {
	recorder LocationRecorder
}

// NewLocationHook creates a new LocationHook
func NewLocationHook(recorder LocationRecorder) *LocationHook {
	return &LocationHook{recorder: recorder}
}

// Name implements PrintedHook
func (h *LocationHook) Name() string { return "location" }

// AfterPrint implements PrintedHook
func (h *LocationHook) AfterPrint(ctx context.Context, printed PrintedBatch) error {
	if printed.Config.LocationID == "" && printed.Config.LocationName == "" {
		return nil
	}
	return h.recorder.RecordLocations(ctx, printed.Batch.SaleCodes(),
		printed.Config.LocationID, printed.Config.LocationName)
}

// DocumentArchive keeps a copy of delivered documents
type DocumentArchive interface {
	Archive(ctx context.Context, storeID string, doc *printing.Document) (string, error)
}

// ArchiveHook copies delivered documents to an archive
type ArchiveHook struct {
	archive DocumentArchive
}

// NewArchiveHook creates a new ArchiveHook
func NewArchiveHook(archive DocumentArchive) *ArchiveHook {
	return &ArchiveHook{archive: archive}
}

// Name implements PrintedHook
func (h *ArchiveHook) Name() string { return "archive" }

// AfterPrint implements PrintedHook
func (h *ArchiveHook) AfterPrint(ctx context.Context, printed PrintedBatch) error {
	_, err := h.archive.Archive(ctx, printed.Config.StoreID, printed.Document)
	return err
}

// JobMetrics records job outcomes
type JobMetrics interface {
	RecordRegistrationAttempt(ctx context.Context, attempt int, kind printing.FailureKind)
	RecordJob(ctx context.Context, result printing.PrintResult, reprint bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordRegistrationAttempt(context.Context, int, printing.FailureKind) {}
func (noopMetrics) RecordJob(context.Context, printing.PrintResult, bool, time.Duration) {}
