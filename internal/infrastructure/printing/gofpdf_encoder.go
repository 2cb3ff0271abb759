package printing

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// GofpdfEncoder assembles sheets into a PDF without an external browser
type GofpdfEncoder struct {
	logger  *zap.Logger
	creator string
}

// NewGofpdfEncoder creates a new pure-Go PDF encoder
func NewGofpdfEncoder(logger *zap.Logger) *GofpdfEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GofpdfEncoder{logger: logger, creator: "labelprint"}
}

// Encode places each sheet raster full-bleed on its own page
func (e *GofpdfEncoder) Encode(ctx context.Context, req *EncodeRequest) (*printing.Document, error) {
	if req == nil || req.Sheets == nil || len(req.Sheets.Pages) == 0 {
		return nil, NewRenderError(ErrCodeInvalidRequest, "nothing to encode", nil)
	}
	g := req.Sheets.Geometry
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: g.SheetWidth, Ht: g.SheetHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(req.Title, true)
	pdf.SetCreator(e.creator, true)
	pdf.SetCreationDate(createdAt)

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	for i, page := range req.Sheets.Pages {
		if err := ctx.Err(); err != nil {
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF encoding was cancelled", err)
		}
		var buf bytes.Buffer
		if err := encoder.Encode(&buf, page); err != nil {
			return nil, NewRenderError(ErrCodeEncodeFailed, fmt.Sprintf("encode page %d", i+1), err)
		}
		name := fmt.Sprintf("sheet-%d", i+1)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.AddPage()
		pdf.ImageOptions(name, 0, 0, g.SheetWidth, g.SheetHeight, false, opts, 0, "")
	}
	if pdf.Err() {
		return nil, NewRenderError(ErrCodeEncodeFailed, "assemble PDF", pdf.Error())
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, NewRenderError(ErrCodeEncodeFailed, "write PDF", err)
	}

	e.logger.Debug("label PDF encoded",
		zap.String("job_id", req.JobID.String()),
		zap.Int("bytes", out.Len()),
		zap.Int("pages", len(req.Sheets.Pages)))

	return &printing.Document{
		JobID:       req.JobID,
		Title:       req.Title,
		ContentType: printing.ContentTypePDF,
		Data:        out.Bytes(),
		PageCount:   len(req.Sheets.Pages),
		LabelCount:  req.Sheets.LabelCount,
		CreatedAt:   createdAt,
	}, nil
}

// Close releases resources held by the encoder
func (e *GofpdfEncoder) Close() error {
	return nil
}

// Ensure GofpdfEncoder implements DocumentEncoder
var _ DocumentEncoder = (*GofpdfEncoder)(nil)
