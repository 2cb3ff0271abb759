package printing

import (
	"time"

	"github.com/google/uuid"
)

// ContentTypePDF is the media type of encoded label documents
const ContentTypePDF = "application/pdf"

// Document is an assembled multi-page label document ready for a sink
type Document struct {
	JobID       uuid.UUID
	Title       string
	ContentType string
	Data        []byte
	PageCount   int
	LabelCount  int
	CreatedAt   time.Time
}

// Size returns the encoded document size in bytes
func (d *Document) Size() int {
	return len(d.Data)
}
