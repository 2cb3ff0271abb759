package printing

import (
	"context"
	"image"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
)

// SheetRequest contains everything needed to draw the label sheets of one job
type SheetRequest struct {
	JobID uuid.UUID
	// Labels in print order
	Labels []printing.LabelPayload
	// Config is the job's branding, already merged with the batch config
	Config printing.PrintJobConfig
	// StartPosition is the number of used slots on the first sheet
	StartPosition int
	// SealedDate is printed as the packed date when an item has none
	SealedDate time.Time
	// Images holds prefetched thumbnails and logos by URL; missing entries
	// fall back to placeholders
	Images map[string]image.Image
}

// Sheets is the raster output of a SheetRenderer
type Sheets struct {
	Pages          []image.Image
	LabelCount     int
	DPI            float64
	Geometry       printing.SheetGeometry
	RenderDuration time.Duration
}

// PageCount returns the number of rendered pages
func (s *Sheets) PageCount() int {
	return len(s.Pages)
}

// SheetRenderer draws label payloads onto page rasters
type SheetRenderer interface {
	Render(ctx context.Context, req *SheetRequest) (*Sheets, error)
}

// EncodeRequest contains the parameters for assembling a printable document
type EncodeRequest struct {
	JobID     uuid.UUID
	Title     string
	Sheets    *Sheets
	CreatedAt time.Time
}

// DocumentEncoder assembles rendered sheets into a paginated document
type DocumentEncoder interface {
	// Encode produces a PDF document with one page per sheet
	Encode(ctx context.Context, req *EncodeRequest) (*printing.Document, error)
	// Close releases any resources held by the encoder
	Close() error
}

// RenderError represents an error while drawing or encoding labels
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout  = "RENDER_TIMEOUT"
	ErrCodeRenderFailed   = "RENDER_FAILED"
	ErrCodeInvalidRequest = "INVALID_RENDER_REQUEST"
	ErrCodeCodeImage      = "CODE_IMAGE_FAILED"
	ErrCodeEncodeFailed   = "ENCODE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
