package dto

import (
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PotencyRequest is a measured potency, e.g. {"value": "22.4", "unit": "%"}
type PotencyRequest struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit" binding:"omitempty,oneof=% mg"`
}

// LabelItemRequest is one selected product line
type LabelItemRequest struct {
	ProductID    string           `json:"product_id" binding:"required"`
	Name         string           `json:"name" binding:"required"`
	Category     string           `json:"category"`
	Variant      string           `json:"variant"`
	THC          *PotencyRequest  `json:"thc"`
	CBD          *PotencyRequest  `json:"cbd"`
	ImageURL     string           `json:"image_url" binding:"omitempty,url"`
	BatchNumber  string           `json:"batch_number"`
	TestedDate   *time.Time       `json:"tested_date"`
	PackagedDate *time.Time       `json:"packaged_date"`
	Quantity     int              `json:"quantity" binding:"min=0,max=200"`
	TierLabel    string           `json:"tier_label"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
}

// SaleContextRequest identifies the sale the labels belong to
type SaleContextRequest struct {
	OrderID     string     `json:"order_id"`
	CustomerID  string     `json:"customer_id"`
	StaffID     string     `json:"staff_id"`
	SoldAt      *time.Time `json:"sold_at"`
	OrderType   string     `json:"order_type"`
	PrintSource string     `json:"print_source"`
}

// CreateLabelJobRequest starts a label job
type CreateLabelJobRequest struct {
	Items         []LabelItemRequest  `json:"items" binding:"required,min=1,dive"`
	Destination   string              `json:"destination"`
	StartPosition *int                `json:"start_position" binding:"omitempty,min=0,max=99"`
	Sale          *SaleContextRequest `json:"sale"`
}

// ReprintRequest prints a held batch again
type ReprintRequest struct {
	Destination string `json:"destination"`
}

// UpdatePrinterSettingsRequest changes the printer settings; absent fields are kept
type UpdatePrinterSettingsRequest struct {
	Destination   *string `json:"destination"`
	AutoPrint     *bool   `json:"auto_print"`
	StartPosition *int    `json:"start_position"`
}

// JobAcceptedResponse is returned when a job has been queued
type JobAcceptedResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	StatusURL string    `json:"status_url"`
	EventsURL string    `json:"events_url"`
}

// JobStatusResponse is the latest known state of a job
type JobStatusResponse struct {
	JobID   uuid.UUID              `json:"job_id"`
	Running bool                   `json:"running"`
	Status  *printing.StatusUpdate `json:"status,omitempty"`
	Record  *JobRecordResponse     `json:"record,omitempty"`
}

// JobRecordResponse is a job history entry
type JobRecordResponse struct {
	ID                uuid.UUID  `json:"id"`
	StoreID           string     `json:"store_id"`
	Destination       string     `json:"destination"`
	State             string     `json:"state"`
	Reprint           bool       `json:"reprint"`
	UnitCount         int        `json:"unit_count"`
	Pages             int        `json:"pages"`
	ItemsPrinted      int        `json:"items_printed"`
	QRCodesRegistered int        `json:"qr_codes_registered"`
	Success           bool       `json:"success"`
	FailureKind       string     `json:"failure_kind,omitempty"`
	Message           string     `json:"message"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// LayoutResponse is the slot map for a start position and item count
type LayoutResponse struct {
	StartPosition  int                 `json:"start_position"`
	ItemCount      int                 `json:"item_count"`
	LabelsPerSheet int                 `json:"labels_per_sheet"`
	PageCount      int                 `json:"page_count"`
	Pages          []printing.PagePlan `json:"pages"`
}

// ToDomain converts the item to a print item
func (r LabelItemRequest) ToDomain() printing.PrintItem {
	return printing.PrintItem{
		Product: printing.ItemSnapshot{
			ID:           r.ProductID,
			Name:         r.Name,
			Category:     r.Category,
			Variant:      r.Variant,
			THC:          r.THC.toDomain(),
			CBD:          r.CBD.toDomain(),
			ImageURL:     r.ImageURL,
			BatchNumber:  r.BatchNumber,
			TestedDate:   r.TestedDate,
			PackagedDate: r.PackagedDate,
		},
		Quantity:  r.Quantity,
		TierLabel: r.TierLabel,
		UnitPrice: r.UnitPrice,
	}
}

func (p *PotencyRequest) toDomain() *printing.Potency {
	if p == nil {
		return nil
	}
	unit := printing.PotencyUnit(p.Unit)
	if unit == "" {
		unit = printing.PotencyPercent
	}
	return &printing.Potency{Value: p.Value, Unit: unit}
}

// Items converts every requested line
func Items(reqs []LabelItemRequest) []printing.PrintItem {
	items := make([]printing.PrintItem, len(reqs))
	for i, r := range reqs {
		items[i] = r.ToDomain()
	}
	return items
}

// ApplyTo copies the sale fields onto a job config. Location fields stay
// those of the configured store.
func (s *SaleContextRequest) ApplyTo(cfg *printing.PrintJobConfig, now time.Time) {
	if s == nil {
		return
	}
	sc := &printing.SaleContext{
		OrderID:      s.OrderID,
		CustomerID:   s.CustomerID,
		StaffID:      s.StaffID,
		LocationID:   cfg.LocationID,
		LocationName: cfg.LocationName,
		SoldAt:       now,
		OrderType:    s.OrderType,
		PrintSource:  s.PrintSource,
	}
	if s.SoldAt != nil {
		sc.SoldAt = *s.SoldAt
	}
	cfg.SaleContext = sc
}

// NewJobRecordResponse converts a history record
func NewJobRecordResponse(r *printing.JobRecord) *JobRecordResponse {
	return &JobRecordResponse{
		ID:                r.ID,
		StoreID:           r.StoreID,
		Destination:       r.Destination,
		State:             string(r.State),
		Reprint:           r.Reprint,
		UnitCount:         r.UnitCount,
		Pages:             r.Pages,
		ItemsPrinted:      r.ItemsPrinted,
		QRCodesRegistered: r.QRCodesRegistered,
		Success:           r.Success,
		FailureKind:       string(r.FailureKind),
		Message:           r.Message,
		CreatedAt:         r.CreatedAt,
		CompletedAt:       r.CompletedAt,
	}
}
