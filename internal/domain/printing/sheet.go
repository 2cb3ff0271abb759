package printing

// SheetGeometry describes a fixed grid of label slots on one physical sheet.
// All lengths are in inches.
type SheetGeometry struct {
	Rows             int
	Columns          int
	LabelWidth       float64
	LabelHeight      float64
	SheetWidth       float64
	SheetHeight      float64
	TopMargin        float64
	LeftMargin       float64
	HorizontalGutter float64
	VerticalGutter   float64
}

// StandardSheet returns the 4"x2" ten-up label stock on US Letter
func StandardSheet() SheetGeometry {
	return SheetGeometry{
		Rows:             5,
		Columns:          2,
		LabelWidth:       4.0,
		LabelHeight:      2.0,
		SheetWidth:       8.5,
		SheetHeight:      11.0,
		TopMargin:        0.5,
		LeftMargin:       0.15625,
		HorizontalGutter: 0.1875,
		VerticalGutter:   0,
	}
}

// LabelsPerSheet returns the slot count of one sheet
func (g SheetGeometry) LabelsPerSheet() int {
	return g.Rows * g.Columns
}

// PageCount returns ceil((start+count)/labelsPerSheet), at least 1.
// Negative inputs count as zero.
func (g SheetGeometry) PageCount(startPosition, itemCount int) int {
	per := g.LabelsPerSheet()
	if per <= 0 {
		return 1
	}
	total := clampZero(startPosition) + clampZero(itemCount)
	pages := (total + per - 1) / per
	if pages < 1 {
		return 1
	}
	return pages
}

// SheetPosition addresses one slot across all pages
type SheetPosition struct {
	Page   int `json:"page"`
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Position maps a global slot index to its page, row and column
func (g SheetGeometry) Position(globalSlot int) SheetPosition {
	per := g.LabelsPerSheet()
	globalSlot = clampZero(globalSlot)
	slot := globalSlot % per
	return SheetPosition{
		Page:   globalSlot / per,
		Row:    slot / g.Columns,
		Column: slot % g.Columns,
	}
}

// Rect is an axis-aligned rectangle in inches, origin at the sheet's top-left
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SlotRect returns the physical rectangle of a slot on its page
func (g SheetGeometry) SlotRect(slotOnPage int) Rect {
	row := slotOnPage / g.Columns
	col := slotOnPage % g.Columns
	return Rect{
		X:      g.LeftMargin + float64(col)*(g.LabelWidth+g.HorizontalGutter),
		Y:      g.TopMargin + float64(row)*(g.LabelHeight+g.VerticalGutter),
		Width:  g.LabelWidth,
		Height: g.LabelHeight,
	}
}

// PayloadIndex returns the payload index printed in a global slot, or false
// when the slot stays blank
func (g SheetGeometry) PayloadIndex(globalSlot, startPosition, itemCount int) (int, bool) {
	p := globalSlot - clampZero(startPosition)
	if p < 0 || p >= itemCount {
		return 0, false
	}
	return p, true
}

// SlotPlan is one slot with its geometry and assigned payload
type SlotPlan struct {
	Slot         int           `json:"slot"`
	Position     SheetPosition `json:"position"`
	Rect         Rect          `json:"rect"`
	PayloadIndex int           `json:"payload_index"` // -1 when blank
}

// Blank reports whether nothing is drawn in the slot
func (s SlotPlan) Blank() bool {
	return s.PayloadIndex < 0
}

// PagePlan lists every slot of one page in slot order
type PagePlan struct {
	Page  int        `json:"page"`
	Slots []SlotPlan `json:"slots"`
}

// Filled counts slots that carry a payload
func (p PagePlan) Filled() int {
	n := 0
	for _, s := range p.Slots {
		if !s.Blank() {
			n++
		}
	}
	return n
}

// Plan lays itemCount payloads onto sheets after skipping startPosition slots
func (g SheetGeometry) Plan(startPosition, itemCount int) []PagePlan {
	startPosition = clampZero(startPosition)
	itemCount = clampZero(itemCount)
	per := g.LabelsPerSheet()
	pages := g.PageCount(startPosition, itemCount)

	plans := make([]PagePlan, pages)
	for page := 0; page < pages; page++ {
		slots := make([]SlotPlan, per)
		for slot := 0; slot < per; slot++ {
			global := page*per + slot
			idx, ok := g.PayloadIndex(global, startPosition, itemCount)
			if !ok {
				idx = -1
			}
			slots[slot] = SlotPlan{
				Slot:         global,
				Position:     g.Position(global),
				Rect:         g.SlotRect(slot),
				PayloadIndex: idx,
			}
		}
		plans[page] = PagePlan{Page: page, Slots: slots}
	}
	return plans
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
