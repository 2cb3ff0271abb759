package printing

import (
	"time"

	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Potency is a measured cannabinoid value
type Potency struct {
	Value decimal.Decimal
	Unit  PotencyUnit
}

// String formats the value the way it is printed, e.g. "22.4%" or "10mg"
func (p Potency) String() string {
	unit := p.Unit
	if unit == "" {
		unit = PotencyPercent
	}
	return p.Value.Round(2).String() + string(unit)
}

// ItemSnapshot is a point-in-time copy of the product facts a label shows.
// Optional facts are nil or empty when unknown.
type ItemSnapshot struct {
	ID           string
	Name         string
	Category     string
	Variant      string // strain or variant badge, e.g. "Indica"
	THC          *Potency
	CBD          *Potency
	ImageURL     string
	BatchNumber  string
	TestedDate   *time.Time
	PackagedDate *time.Time
}

// LabelPayload is one label's confirmed, print-ready content
type LabelPayload struct {
	SaleCode  SaleCode
	Item      ItemSnapshot
	TierLabel string
}

// BatchConfig is the branding block the registration service echoes back
type BatchConfig struct {
	StoreID            string
	LocationName       string
	StoreLogoURL       string
	DistributorLicense string
}

// SkippedProduct is a source item the backend ignored (deleted or unknown)
type SkippedProduct struct {
	ProductID string
	Reason    string
}

// ConfirmedBatch is the output of a successful registration: one payload per
// physical unit in request expansion order.
type ConfirmedBatch struct {
	Labels            []LabelPayload
	Config            BatchConfig
	SealedDate        time.Time
	SaleContext       *SaleContext
	QRCodesRegistered int
	Skipped           []SkippedProduct
}

// ImageURLs returns the distinct thumbnail URLs referenced by the batch in first-seen order
func (b *ConfirmedBatch) ImageURLs() []string {
	seen := make(map[string]struct{}, len(b.Labels))
	urls := make([]string, 0, len(b.Labels))
	for _, l := range b.Labels {
		u := l.Item.ImageURL
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// SaleCodes returns the codes of every label in order
func (b *ConfirmedBatch) SaleCodes() []SaleCode {
	codes := make([]SaleCode, len(b.Labels))
	for i, l := range b.Labels {
		codes[i] = l.SaleCode
	}
	return codes
}

// Validate checks that the batch is fit to render: non-empty, every code
// well-formed and unique.
func (b *ConfirmedBatch) Validate() error {
	if b == nil || len(b.Labels) == 0 {
		return ErrNoItems
	}
	seen := make(map[SaleCode]struct{}, len(b.Labels))
	for _, l := range b.Labels {
		if _, err := ParseSaleCode(string(l.SaleCode)); err != nil {
			return err
		}
		if _, dup := seen[l.SaleCode]; dup {
			return shared.NewDomainError("DUPLICATE_SALE_CODE", "Sale code issued twice: "+string(l.SaleCode))
		}
		seen[l.SaleCode] = struct{}{}
	}
	return nil
}
