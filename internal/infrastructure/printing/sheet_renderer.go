package printing

import (
	"context"
	"image"
	"image/color"
	"math"
	"strconv"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/qrcode"
	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

// DefaultDPI is the raster resolution of rendered sheets
const DefaultDPI = 300

// RasterConfig contains configuration for the raster sheet renderer
type RasterConfig struct {
	// DPI of the page rasters (default: 300)
	DPI float64
	// Geometry of the label stock (default: StandardSheet)
	Geometry printing.SheetGeometry
	// Logger for debug output
	Logger *zap.Logger
}

// RasterRenderer draws label sheets with gg
type RasterRenderer struct {
	config *RasterConfig
	codes  *qrcode.Generator
	logger *zap.Logger
}

// NewRasterRenderer creates a new raster sheet renderer
func NewRasterRenderer(config *RasterConfig, codes *qrcode.Generator) *RasterRenderer {
	if config == nil {
		config = &RasterConfig{}
	}
	if config.DPI <= 0 {
		config.DPI = DefaultDPI
	}
	if config.Geometry.LabelsPerSheet() == 0 {
		config.Geometry = printing.StandardSheet()
	}
	if codes == nil {
		codes = qrcode.NewGenerator()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RasterRenderer{config: config, codes: codes, logger: logger}
}

// Geometry returns the sheet geometry used for layout
func (r *RasterRenderer) Geometry() printing.SheetGeometry {
	return r.config.Geometry
}

// Render draws every page of the request. Blank slots are left white.
func (r *RasterRenderer) Render(ctx context.Context, req *SheetRequest) (*Sheets, error) {
	if req == nil {
		return nil, NewRenderError(ErrCodeInvalidRequest, "sheet request is nil", nil)
	}
	for i, l := range req.Labels {
		if l.SaleCode == "" {
			return nil, NewRenderError(ErrCodeInvalidRequest,
				"label has no registered sale code at index "+strconv.Itoa(i), nil)
		}
	}

	start := time.Now()
	g := r.config.Geometry
	plans := g.Plan(req.StartPosition, len(req.Labels))
	width := int(math.Round(g.SheetWidth * r.config.DPI))
	height := int(math.Round(g.SheetHeight * r.config.DPI))

	painter := newLabelPainter(r.config.DPI, r.codes, req)
	defer painter.close()

	pages := make([]image.Image, 0, len(plans))
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return nil, NewRenderError(ErrCodeRenderTimeout, "sheet rendering was cancelled", err)
		}

		dc := gg.NewContext(width, height)
		dc.SetColor(color.White)
		dc.Clear()
		for _, slot := range plan.Slots {
			if slot.Blank() {
				continue
			}
			dc.Push()
			dc.Translate(slot.Rect.X*r.config.DPI, slot.Rect.Y*r.config.DPI)
			err := painter.paint(dc, req.Labels[slot.PayloadIndex], slot.Rect)
			dc.Pop()
			if err != nil {
				return nil, err
			}
		}
		pages = append(pages, dc.Image())
	}

	duration := time.Since(start)
	r.logger.Debug("label sheets rendered",
		zap.String("job_id", req.JobID.String()),
		zap.Int("pages", len(pages)),
		zap.Int("labels", len(req.Labels)),
		zap.Int("start_position", req.StartPosition),
		zap.Duration("duration", duration))

	return &Sheets{
		Pages:          pages,
		LabelCount:     len(req.Labels),
		DPI:            r.config.DPI,
		Geometry:       g,
		RenderDuration: duration,
	}, nil
}

// Ensure RasterRenderer implements SheetRenderer
var _ SheetRenderer = (*RasterRenderer)(nil)
