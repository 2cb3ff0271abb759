package printer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/labelprint/internal/domain/printing"
	"go.uber.org/zap"
)

// DirectoryConfig contains configuration for the spool directory sink
type DirectoryConfig struct {
	// BasePath is the root spool directory (default: ./spool)
	BasePath string
	Logger   *zap.Logger
}

// DirectorySink writes documents into a spool directory. A file://subdir
// destination writes below BasePath; it can never escape it.
type DirectorySink struct {
	config *DirectoryConfig
	logger *zap.Logger
}

// NewDirectorySink creates the spool directory if needed
func NewDirectorySink(config *DirectoryConfig) (*DirectorySink, error) {
	if config == nil {
		config = &DirectoryConfig{}
	}
	if config.BasePath == "" {
		config.BasePath = "spool"
	}
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("create spool directory %s: %w", config.BasePath, err)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectorySink{config: config, logger: logger}, nil
}

// Send writes {dir}/{job_id}.pdf atomically through a temp file
func (s *DirectorySink) Send(ctx context.Context, doc *printing.Document, destinationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || len(doc.Data) == 0 {
		return unavailable("document is empty")
	}
	dest, err := ParseDestination(destinationID)
	if err != nil {
		return err
	}
	if dest.Scheme != SchemeFile {
		return unavailable("directory sink cannot deliver to %q", destinationID)
	}

	dir, err := s.resolve(dest.Target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return unavailable("create %s: %v", dir, err)
	}

	name := doc.JobID.String() + ".pdf"
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return unavailable("create temp file: %v", err)
	}
	if _, err := tmp.Write(doc.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return unavailable("write %s: %v", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return unavailable("close %s: %v", tmp.Name(), err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return unavailable("rename to %s: %v", path, err)
	}

	s.logger.Info("label document spooled",
		zap.String("job_id", doc.JobID.String()),
		zap.String("path", path),
		zap.Int("size", doc.Size()))
	return nil
}

func (s *DirectorySink) resolve(sub string) (string, error) {
	if containsDotDot(sub) {
		s.logger.Warn("blocked spool path", zap.String("path", sub))
		return "", unavailable("invalid spool path %q", sub)
	}
	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", unavailable("resolve spool directory: %v", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(sub)))
	if err != nil {
		return "", unavailable("resolve spool path: %v", err)
	}
	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("spool path escape blocked", zap.String("path", sub))
		return "", unavailable("invalid spool path %q", sub)
	}
	return absPath, nil
}

func containsDotDot(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

var _ Sink = (*DirectorySink)(nil)
