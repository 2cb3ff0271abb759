package printer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPreviewNotFound is returned for an unknown or already resolved preview
var ErrPreviewNotFound = errors.New("preview not found")

const defaultPreviewTimeout = 10 * time.Minute

// PreviewConfig contains configuration for the preview sink
type PreviewConfig struct {
	// Timeout after which an unanswered preview counts as cancelled (default: 10m)
	Timeout time.Duration
	// OnPending is called when a document starts waiting for the user
	OnPending func(Preview)
	Logger    *zap.Logger
}

// Preview describes a document waiting for confirmation
type Preview struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Pages       int       `json:"pages"`
	Labels      int       `json:"labels"`
	CreatedAt   time.Time `json:"created_at"`
}

type pendingPreview struct {
	info    Preview
	doc     *printing.Document
	result  *outcome
	claimed bool // guarded by PreviewSink.mu
}

// PreviewSink holds each document until the user confirms or cancels it.
// Confirmation forwards the document to the direct sink.
type PreviewSink struct {
	config *PreviewConfig
	direct Sink
	logger *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingPreview
}

// NewPreviewSink creates a new preview sink in front of a direct sink
func NewPreviewSink(direct Sink, config *PreviewConfig) *PreviewSink {
	if config == nil {
		config = &PreviewConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultPreviewTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreviewSink{
		config:  config,
		direct:  direct,
		logger:  logger,
		pending: make(map[uuid.UUID]*pendingPreview),
	}
}

// Present implements InteractiveSink. The preview ID is the document's job ID.
func (s *PreviewSink) Present(ctx context.Context, doc *printing.Document, destinationID string) error {
	if doc == nil || len(doc.Data) == 0 {
		return unavailable("document is empty")
	}
	p := &pendingPreview{
		info: Preview{
			ID:          doc.JobID,
			Title:       doc.Title,
			Destination: destinationID,
			Pages:       doc.PageCount,
			Labels:      doc.LabelCount,
			CreatedAt:   time.Now(),
		},
		doc:    doc,
		result: newOutcome(),
	}

	s.mu.Lock()
	if _, exists := s.pending[doc.JobID]; exists {
		s.mu.Unlock()
		return unavailable("job %s is already waiting for confirmation", doc.JobID)
	}
	s.pending[doc.JobID] = p
	s.mu.Unlock()
	defer s.remove(doc.JobID, p)

	if s.config.OnPending != nil {
		s.config.OnPending(p.info)
	}

	timer := time.NewTimer(s.config.Timeout)
	defer timer.Stop()
	select {
	case <-p.result.Done():
		return p.result.Err()
	case <-timer.C:
		if s.claim(p) {
			s.logger.Info("preview expired without confirmation", zap.String("job_id", doc.JobID.String()))
			p.result.Resolve(printing.ErrUserCancelled)
		}
		return p.result.Wait(ctx)
	case <-ctx.Done():
		if s.claim(p) {
			p.result.Resolve(ctx.Err())
		}
		return ctx.Err()
	}
}

// Confirm prints a pending preview through the direct sink and returns the
// delivery error, if any
func (s *PreviewSink) Confirm(ctx context.Context, id uuid.UUID) error {
	p := s.get(id)
	if p == nil || !s.claim(p) {
		return ErrPreviewNotFound
	}
	err := s.direct.Send(ctx, p.doc, p.info.Destination)
	p.result.Resolve(err)
	return err
}

// Cancel dismisses a pending preview
func (s *PreviewSink) Cancel(id uuid.UUID) error {
	p := s.get(id)
	if p == nil || !s.claim(p) {
		return ErrPreviewNotFound
	}
	p.result.Resolve(printing.ErrUserCancelled)
	return nil
}

// Document returns the document of a pending preview
func (s *PreviewSink) Document(id uuid.UUID) (*printing.Document, bool) {
	p := s.get(id)
	if p == nil {
		return nil, false
	}
	return p.doc, true
}

// Pending lists the previews waiting for the user
func (s *PreviewSink) Pending() []Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Preview, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.info)
	}
	return out
}

func (s *PreviewSink) get(id uuid.UUID) *pendingPreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id]
}

// claim gives one caller the right to resolve the preview
func (s *PreviewSink) claim(p *pendingPreview) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.claimed {
		return false
	}
	p.claimed = true
	return true
}

func (s *PreviewSink) remove(id uuid.UUID, p *pendingPreview) {
	s.mu.Lock()
	if s.pending[id] == p {
		delete(s.pending, id)
	}
	s.mu.Unlock()
}

var _ InteractiveSink = (*PreviewSink)(nil)
