package printing

import (
	"image"
	"image/color"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/fonts"
	"github.com/erp/labelprint/internal/infrastructure/qrcode"
	"github.com/fogleman/gg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder is printed for a missing optional value
const Placeholder = "—"

const dateLayout = "01/02/2006"

// Label layout in inches, relative to the label's top-left corner
const (
	labelPadding  = 0.08
	codeSide      = 1.30
	imageSide     = 0.72
	columnGap     = 0.10
	badgeHeight   = 0.18
	nameSize      = 0.17
	bodySize      = 0.12
	smallSize     = 0.085
	footerHeight  = 0.30
	shortCodeSize = 0.09
	maxNameLines  = 2
	lineSpacing   = 1.15
)

var (
	inkColor   = color.Black
	mutedColor = color.Gray{Y: 0x55}
	plateColor = color.Gray{Y: 0xE6}
	badgeColor = color.Gray{Y: 0x22}
	badgeText  = color.White
)

type textLine struct {
	weight fonts.Weight
	size   float64
	text   string
}

// labelPainter draws single labels. It owns a face cache and a caser, so
// one painter serves one render on one goroutine.
type labelPainter struct {
	dpi    float64
	codes  *qrcode.Generator
	faces  *fonts.FaceCache
	upper  cases.Caser
	cfg    *printing.PrintJobConfig
	images map[string]image.Image
	sealed time.Time
}

func newLabelPainter(dpi float64, codes *qrcode.Generator, req *SheetRequest) *labelPainter {
	return &labelPainter{
		dpi:    dpi,
		codes:  codes,
		faces:  fonts.NewFaceCache(),
		upper:  cases.Upper(language.Und),
		cfg:    &req.Config,
		images: req.Images,
		sealed: req.SealedDate,
	}
}

func (p *labelPainter) close() {
	p.faces.Close()
}

func (p *labelPainter) px(inches float64) float64 {
	return inches * p.dpi
}

// paint draws one payload with its top-left corner at the context origin
func (p *labelPainter) paint(dc *gg.Context, label printing.LabelPayload, rect printing.Rect) error {
	w := p.px(rect.Width)
	h := p.px(rect.Height)
	pad := p.px(labelPadding)

	// code block on the right
	side := int(math.Round(p.px(codeSide)))
	qrOpts := qrcode.Options{Size: side, Logo: p.cfg.Logo}
	if qrOpts.Logo == nil {
		qrOpts.Logo = p.images[p.cfg.LogoURL]
	}
	if qrOpts.Logo == nil {
		qrOpts.Glyph = p.cfg.Glyph()
	}
	code, err := p.codes.Generate(printing.TrackingURL(p.cfg.TrackingBaseURL, label.SaleCode), qrOpts)
	if err != nil {
		return NewRenderError(ErrCodeCodeImage, "generate code for "+label.SaleCode.String(), err)
	}
	codeX := w - pad - float64(side)
	dc.DrawImage(code, int(math.Round(codeX)), int(math.Round(pad)))
	if err := p.text(dc, fonts.Regular, shortCodeSize, mutedColor, label.SaleCode.Short(),
		codeX+float64(side)/2, pad+float64(side)+p.px(0.02), 0.5, 1); err != nil {
		return err
	}

	// image block and badge on the left
	p.imageBlock(dc, label, pad, pad, p.px(imageSide))
	if label.Item.Variant != "" {
		if err := p.badge(dc, label.Item.Variant, pad, pad+p.px(imageSide)+p.px(0.05), p.px(imageSide)); err != nil {
			return err
		}
	}

	// text column
	x := pad + p.px(imageSide) + p.px(columnGap)
	colWidth := codeX - p.px(columnGap) - x
	bottom := h - p.px(footerHeight)
	y := pad

	nameFace, err := p.faces.Face(fonts.Bold, p.px(nameSize))
	if err != nil {
		return NewRenderError(ErrCodeRenderFailed, "load name font", err)
	}
	dc.SetFontFace(nameFace)
	dc.SetColor(inkColor)
	name := strings.TrimSpace(label.Item.Name)
	if name == "" {
		name = Placeholder
	}
	for _, line := range wrapLines(dc, name, colWidth, maxNameLines) {
		dc.DrawStringAnchored(line, x, y, 0, 1)
		y += p.px(nameSize) * lineSpacing
	}
	y += p.px(0.04)

	lines := []textLine{
		{fonts.Regular, bodySize, "THC " + potencyText(label.Item.THC)},
		{fonts.Regular, bodySize, "CBD " + potencyText(label.Item.CBD)},
		{fonts.Bold, bodySize, valueOr(label.TierLabel, p.cfg.DefaultTierLabel)},
		{fonts.Regular, smallSize, "Packed " + dateText(label.Item.PackagedDate, p.sealed)},
	}
	if label.Item.TestedDate != nil {
		lines = append(lines, textLine{fonts.Regular, smallSize, "Tested " + label.Item.TestedDate.Format(dateLayout)})
	}
	if label.Item.BatchNumber != "" {
		lines = append(lines, textLine{fonts.Regular, smallSize, "Batch " + label.Item.BatchNumber})
	}
	for _, l := range lines {
		if l.text == "" {
			continue
		}
		step := p.px(l.size) * lineSpacing
		if y+step > bottom {
			break
		}
		if err := p.fitted(dc, l.weight, l.size, inkColor, l.text, x, y, colWidth); err != nil {
			return err
		}
		y += step
	}

	// footer across the full width
	footer := p.footerLines()
	fy := h - pad - p.px(smallSize)*lineSpacing*float64(len(footer)-1)
	for _, line := range footer {
		if err := p.fitted(dc, fonts.Regular, smallSize, mutedColor, line, pad, fy-p.px(smallSize), w-2*pad); err != nil {
			return err
		}
		fy += p.px(smallSize) * lineSpacing
	}
	return nil
}

func (p *labelPainter) footerLines() []string {
	store := strings.TrimSpace(p.cfg.StoreName)
	if loc := strings.TrimSpace(p.cfg.LocationName); loc != "" {
		if store != "" {
			store += " · " + loc
		} else {
			store = loc
		}
	}
	lines := make([]string, 0, 3)
	if store != "" {
		lines = append(lines, store)
	}
	if lic := strings.TrimSpace(p.cfg.DistributorLicense); lic != "" {
		lines = append(lines, "License "+lic)
	}
	if len(p.cfg.ComplianceLines) > 0 {
		lines = append(lines, strings.Join(p.cfg.ComplianceLines, " "))
	}
	if len(lines) > 3 {
		lines = lines[:3]
	}
	if len(lines) == 0 {
		lines = append(lines, Placeholder)
	}
	return lines
}

// imageBlock draws the thumbnail, else the store logo, else an initial
func (p *labelPainter) imageBlock(dc *gg.Context, label printing.LabelPayload, x, y, side float64) {
	img := p.images[label.Item.ImageURL]
	if img == nil {
		img = p.cfg.Logo
	}
	if img == nil {
		img = p.images[p.cfg.LogoURL]
	}
	if img != nil {
		drawFitted(dc, img, x, y, side)
		return
	}

	dc.SetColor(plateColor)
	dc.DrawCircle(x+side/2, y+side/2, side/2)
	dc.Fill()
	initial := firstRune(label.Item.Name)
	if initial == "" {
		initial = p.cfg.Glyph()
	}
	if initial == "" {
		return
	}
	face, err := p.faces.Face(fonts.Bold, side*0.5)
	if err != nil {
		return
	}
	dc.SetFontFace(face)
	dc.SetColor(mutedColor)
	dc.DrawStringAnchored(p.upper.String(initial), x+side/2, y+side/2, 0.5, 0.38)
}

func (p *labelPainter) badge(dc *gg.Context, text string, x, y, width float64) error {
	h := p.px(badgeHeight)
	dc.SetColor(badgeColor)
	dc.DrawRoundedRectangle(x, y, width, h, h/2)
	dc.Fill()
	face, err := p.faces.Face(fonts.Bold, h*0.6)
	if err != nil {
		return NewRenderError(ErrCodeRenderFailed, "load badge font", err)
	}
	dc.SetFontFace(face)
	dc.SetColor(badgeText)
	label := truncate(dc, p.upper.String(strings.TrimSpace(text)), width-h*0.6)
	dc.DrawStringAnchored(label, x+width/2, y+h/2, 0.5, 0.38)
	return nil
}

// text draws an anchored string
func (p *labelPainter) text(dc *gg.Context, w fonts.Weight, size float64, c color.Color, s string, x, y, ax, ay float64) error {
	face, err := p.faces.Face(w, p.px(size))
	if err != nil {
		return NewRenderError(ErrCodeRenderFailed, "load font", err)
	}
	dc.SetFontFace(face)
	dc.SetColor(c)
	dc.DrawStringAnchored(s, x, y, ax, ay)
	return nil
}

// fitted draws a string top-left anchored, truncated to width
func (p *labelPainter) fitted(dc *gg.Context, w fonts.Weight, size float64, c color.Color, s string, x, y, width float64) error {
	face, err := p.faces.Face(w, p.px(size))
	if err != nil {
		return NewRenderError(ErrCodeRenderFailed, "load font", err)
	}
	dc.SetFontFace(face)
	dc.SetColor(c)
	dc.DrawStringAnchored(truncate(dc, s, width), x, y, 0, 1)
	return nil
}

// drawFitted scales img to fit a square, centered
func drawFitted(dc *gg.Context, img image.Image, x, y, side float64) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w == 0 || h == 0 {
		return
	}
	s := side / math.Max(w, h)
	dc.Push()
	dc.Translate(x+(side-w*s)/2, y+(side-h*s)/2)
	dc.Scale(s, s)
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	dc.Pop()
}

// wrapLines word-wraps s to width and truncates the last kept line
func wrapLines(dc *gg.Context, s string, width float64, maxLines int) []string {
	lines := dc.WordWrap(s, width)
	if len(lines) <= maxLines {
		for i, l := range lines {
			lines[i] = truncate(dc, strings.TrimSpace(l), width)
		}
		return lines
	}
	kept := make([]string, maxLines)
	for i := 0; i < maxLines-1; i++ {
		kept[i] = truncate(dc, strings.TrimSpace(lines[i]), width)
	}
	rest := strings.TrimSpace(strings.Join(lines[maxLines-1:], " "))
	kept[maxLines-1] = truncate(dc, rest+"…", width)
	return kept
}

// truncate shortens s with an ellipsis until it fits width
func truncate(dc *gg.Context, s string, width float64) string {
	if w, _ := dc.MeasureString(s); w <= width {
		return s
	}
	runes := []rune(strings.TrimSuffix(s, "…"))
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "…"
		if w, _ := dc.MeasureString(candidate); w <= width {
			return candidate
		}
	}
	return ""
}

func potencyText(p *printing.Potency) string {
	if p == nil {
		return Placeholder
	}
	return p.String()
}

func dateText(d *time.Time, fallback time.Time) string {
	if d != nil && !d.IsZero() {
		return d.Format(dateLayout)
	}
	if !fallback.IsZero() {
		return fallback.Format(dateLayout)
	}
	return Placeholder
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func firstRune(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}
