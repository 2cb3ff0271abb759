package printing

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SaleContext describes the sale or print event the labels belong to
type SaleContext struct {
	OrderID      string
	CustomerID   string
	StaffID      string
	LocationID   string
	LocationName string
	SoldAt       time.Time
	OrderType    string
	PrintSource  string
}

// PrintJobConfig is the immutable branding context of one job
type PrintJobConfig struct {
	StoreID            string
	StoreName          string
	LocationID         string
	LocationName       string
	DistributorLicense string
	ComplianceLines    []string
	LogoURL            string
	Logo               image.Image
	FallbackGlyph      string
	DefaultTierLabel   string
	TrackingBaseURL    string
	SaleContext        *SaleContext
}

// Validate checks the fields every job needs
func (c *PrintJobConfig) Validate() error {
	if strings.TrimSpace(c.StoreID) == "" {
		return shared.NewDomainError("INVALID_STORE", "Store ID cannot be empty")
	}
	if strings.TrimSpace(c.TrackingBaseURL) == "" {
		return shared.NewDomainError("INVALID_TRACKING_BASE", "Tracking base URL cannot be empty")
	}
	return nil
}

// Glyph returns the single-character brand mark, derived from the store name when unset
func (c *PrintJobConfig) Glyph() string {
	if g := strings.TrimSpace(c.FallbackGlyph); g != "" {
		return firstRune(g)
	}
	return firstRune(strings.TrimSpace(c.StoreName))
}

// WithBatch overlays the branding the backend confirmed for a batch
func (c PrintJobConfig) WithBatch(b BatchConfig) PrintJobConfig {
	if b.LocationName != "" {
		c.LocationName = b.LocationName
	}
	if b.StoreLogoURL != "" && c.LogoURL == "" {
		c.LogoURL = b.StoreLogoURL
	}
	if b.DistributorLicense != "" {
		c.DistributorLicense = b.DistributorLicense
	}
	c.ComplianceLines = append([]string(nil), c.ComplianceLines...)
	return c
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// Job size limits. A job spans at most MaxStartPosition+MaxUnitsPerJob slots,
// 30 standard sheets.
const (
	MaxStartPosition = 99
	MaxUnitsPerJob   = 200
)

// PrinterSettings is the process-wide printer configuration a job snapshots at start
type PrinterSettings struct {
	Destination string `json:"destination"`
	// AutoPrint sends documents straight to the printer; when false the
	// user confirms each document in a preview first
	AutoPrint     bool `json:"auto_print"`
	StartPosition int  `json:"start_position"`
}

// Validate checks the settings a job can start with
func (s PrinterSettings) Validate() error {
	if s.StartPosition < 0 {
		return shared.NewDomainError("INVALID_START_POSITION", "Start position cannot be negative")
	}
	if s.StartPosition > MaxStartPosition {
		return shared.NewDomainError("INVALID_START_POSITION", fmt.Sprintf("Start position cannot exceed %d", MaxStartPosition))
	}
	return nil
}

// PrintItem is one line of the caller's cart or inventory selection
type PrintItem struct {
	Product   ItemSnapshot
	Quantity  int
	TierLabel string
	UnitPrice *decimal.Decimal
}

// RegistrationItem is one requested line in a registration call
type RegistrationItem struct {
	ProductID string `validate:"required"`
	Quantity  int    `validate:"min=1"`
	TierLabel string
	UnitPrice *decimal.Decimal
	// Snapshot carries local product facts used when the backend omits them
	Snapshot ItemSnapshot
}

// RegistrationRequest asks the backend to issue one code per physical unit
type RegistrationRequest struct {
	StoreID      string             `validate:"required"`
	Items        []RegistrationItem `validate:"required,min=1,dive"`
	SaleContext  *SaleContext
	StoreLogoURL string
}

// NewRegistrationRequest builds the request for a job's items. Lines with
// no units are dropped.
func NewRegistrationRequest(cfg *PrintJobConfig, items []PrintItem) *RegistrationRequest {
	req := &RegistrationRequest{
		StoreID:      cfg.StoreID,
		Items:        make([]RegistrationItem, 0, len(items)),
		SaleContext:  cfg.SaleContext,
		StoreLogoURL: cfg.LogoURL,
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		tier := it.TierLabel
		if tier == "" {
			tier = cfg.DefaultTierLabel
		}
		req.Items = append(req.Items, RegistrationItem{
			ProductID: it.Product.ID,
			Quantity:  it.Quantity,
			TierLabel: tier,
			UnitPrice: it.UnitPrice,
			Snapshot:  it.Product,
		})
	}
	return req
}

// UnitCount is the number of physical units, one code each
func (r *RegistrationRequest) UnitCount() int {
	n := 0
	for _, it := range r.Items {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}

// ExpandedUnits returns one entry per physical unit in expansion order
func (r *RegistrationRequest) ExpandedUnits() []RegistrationItem {
	units := make([]RegistrationItem, 0, r.UnitCount())
	for _, it := range r.Items {
		for i := 0; i < it.Quantity; i++ {
			units = append(units, it)
		}
	}
	return units
}

// CountUnits sums quantities of the items that would produce labels
func CountUnits(items []PrintItem) int {
	n := 0
	for _, it := range items {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}
