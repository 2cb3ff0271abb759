package printer

import (
	"context"
	"net"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"go.uber.org/zap"
)

// DefaultRawPort is the JetDirect / AppSocket port
const DefaultRawPort = "9100"

const defaultSocketTimeout = 10 * time.Second

// SocketConfig contains configuration for the raw socket sink
type SocketConfig struct {
	// Timeout bounds dialing and writing (default: 10s)
	Timeout time.Duration
	Logger  *zap.Logger
}

// SocketSink streams the document bytes to a network printer over TCP
type SocketSink struct {
	config *SocketConfig
	logger *zap.Logger
	dialer net.Dialer
}

// NewSocketSink creates a new raw socket sink
func NewSocketSink(config *SocketConfig) *SocketSink {
	if config == nil {
		config = &SocketConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultSocketTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketSink{
		config: config,
		logger: logger,
		dialer: net.Dialer{Timeout: config.Timeout},
	}
}

// Send writes the document to tcp://host[:port]
func (s *SocketSink) Send(ctx context.Context, doc *printing.Document, destinationID string) error {
	if doc == nil || len(doc.Data) == 0 {
		return unavailable("document is empty")
	}
	dest, err := ParseDestination(destinationID)
	if err != nil {
		return err
	}
	if dest.Scheme != SchemeTCP {
		return unavailable("socket sink cannot deliver to %q", destinationID)
	}
	addr := dest.Target
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultRawPort)
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return unavailable("connect %s: %v", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)

	n, err := conn.Write(doc.Data)
	if err != nil {
		return unavailable("write %s: %v", addr, err)
	}

	s.logger.Info("label document sent to printer",
		zap.String("job_id", doc.JobID.String()),
		zap.String("addr", addr),
		zap.Int("bytes", n))
	return nil
}

var _ Sink = (*SocketSink)(nil)
