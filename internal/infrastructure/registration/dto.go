package registration

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/shopspring/decimal"
)

type registerRequest struct {
	StoreID      string          `json:"store_id"`
	Items        []registerItem  `json:"items"`
	SaleContext  saleContextJSON `json:"sale_context"`
	StoreLogoURL string          `json:"store_logo_url,omitempty"`
}

type registerItem struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	TierLabel string      `json:"tier_label,omitempty"`
	UnitPrice json.Number `json:"unit_price,omitempty"`
}

type saleContextJSON struct {
	OrderID      string `json:"order_id"`
	CustomerID   string `json:"customer_id,omitempty"`
	StaffID      string `json:"staff_id,omitempty"`
	LocationID   string `json:"location_id,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	SoldAt       string `json:"sold_at"`
	OrderType    string `json:"order_type,omitempty"`
	PrintSource  string `json:"print_source,omitempty"`
}

type registerResponse struct {
	Success           bool            `json:"success"`
	Payload           *payloadJSON    `json:"payload"`
	QRCodesRegistered int             `json:"qr_codes_registered"`
	SkippedProducts   json.RawMessage `json:"skipped_products"`
	Error             string          `json:"error"`
}

type payloadJSON struct {
	Items       []labelJSON      `json:"items"`
	Config      configJSON       `json:"config"`
	SealedDate  string           `json:"sealed_date"`
	SaleContext *saleContextJSON `json:"sale_context"`
}

type labelJSON struct {
	SaleCode  string      `json:"sale_code"`
	Product   productJSON `json:"product"`
	TierLabel string      `json:"tier_label"`
}

type productJSON struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	StrainType   string           `json:"strain_type"`
	THC          *decimal.Decimal `json:"thc_percentage"`
	CBD          *decimal.Decimal `json:"cbd_percentage"`
	ImageURL     string           `json:"image_url"`
	BatchNumber  string           `json:"batch_number"`
	TestedDate   string           `json:"tested_date"`
	PackagedDate string           `json:"packaged_date"`
}

type configJSON struct {
	StoreID            string `json:"store_id"`
	LocationName       string `json:"location_name"`
	StoreLogoURL       string `json:"store_logo_url"`
	DistributorLicense string `json:"distributor_license"`
}

type skippedJSON struct {
	ProductID string `json:"product_id"`
	ID        string `json:"id"`
	Reason    string `json:"reason"`
}

type locationRequest struct {
	SaleCodes    []string `json:"sale_codes"`
	LocationID   string   `json:"location_id,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	PrintedAt    string   `json:"printed_at"`
}

func toRequestJSON(req *printing.RegistrationRequest, now time.Time) registerRequest {
	out := registerRequest{
		StoreID:      req.StoreID,
		Items:        make([]registerItem, 0, len(req.Items)),
		StoreLogoURL: req.StoreLogoURL,
	}
	for _, it := range req.Items {
		item := registerItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			TierLabel: it.TierLabel,
		}
		if it.UnitPrice != nil {
			item.UnitPrice = json.Number(it.UnitPrice.String())
		}
		out.Items = append(out.Items, item)
	}
	out.SaleContext = saleContextToJSON(req.SaleContext, now)
	return out
}

func saleContextToJSON(sc *printing.SaleContext, now time.Time) saleContextJSON {
	if sc == nil {
		return saleContextJSON{SoldAt: now.UTC().Format(time.RFC3339)}
	}
	soldAt := sc.SoldAt
	if soldAt.IsZero() {
		soldAt = now
	}
	return saleContextJSON{
		OrderID:      sc.OrderID,
		CustomerID:   sc.CustomerID,
		StaffID:      sc.StaffID,
		LocationID:   sc.LocationID,
		LocationName: sc.LocationName,
		SoldAt:       soldAt.UTC().Format(time.RFC3339),
		OrderType:    sc.OrderType,
		PrintSource:  sc.PrintSource,
	}
}

func (s *saleContextJSON) toDomain() *printing.SaleContext {
	if s == nil {
		return nil
	}
	out := &printing.SaleContext{
		OrderID:      s.OrderID,
		CustomerID:   s.CustomerID,
		StaffID:      s.StaffID,
		LocationID:   s.LocationID,
		LocationName: s.LocationName,
		OrderType:    s.OrderType,
		PrintSource:  s.PrintSource,
	}
	if t := parseDate(s.SoldAt); t != nil {
		out.SoldAt = *t
	}
	return out
}

// snapshot merges backend product facts over the locally known ones
func (p productJSON) snapshot(local printing.ItemSnapshot) printing.ItemSnapshot {
	out := local
	if p.ID != "" {
		out.ID = p.ID
	}
	if p.Name != "" {
		out.Name = p.Name
	}
	if p.Category != "" {
		out.Category = p.Category
	}
	if p.StrainType != "" {
		out.Variant = p.StrainType
	}
	if p.THC != nil {
		out.THC = &printing.Potency{Value: *p.THC, Unit: printing.PotencyPercent}
	}
	if p.CBD != nil {
		out.CBD = &printing.Potency{Value: *p.CBD, Unit: printing.PotencyPercent}
	}
	if p.ImageURL != "" {
		out.ImageURL = p.ImageURL
	}
	if p.BatchNumber != "" {
		out.BatchNumber = p.BatchNumber
	}
	if t := parseDate(p.TestedDate); t != nil {
		out.TestedDate = t
	}
	if t := parseDate(p.PackagedDate); t != nil {
		out.PackagedDate = t
	}
	return out
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseSkipped accepts either a list of product ids or a list of objects
func parseSkipped(raw json.RawMessage) []printing.SkippedProduct {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		out := make([]printing.SkippedProduct, 0, len(ids))
		for _, id := range ids {
			out = append(out, printing.SkippedProduct{ProductID: id})
		}
		return out
	}
	var objs []skippedJSON
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil
	}
	out := make([]printing.SkippedProduct, 0, len(objs))
	for _, o := range objs {
		id := o.ProductID
		if id == "" {
			id = o.ID
		}
		out = append(out, printing.SkippedProduct{ProductID: id, Reason: o.Reason})
	}
	return out
}
