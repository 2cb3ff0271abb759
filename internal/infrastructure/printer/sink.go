// Package printer delivers rendered label documents to physical printers.
//
// A destination is an opaque URL chosen by the caller. Its scheme selects the
// transport:
//
//	tcp://host[:port]   raw socket (JetDirect, port 9100 by default)
//	file://[subdir]     spool directory watched by a print service
//	agent://{agentKey}  print agent connected over websocket
//
// Every Send is a single attempt. Failures wrap printing.ErrPrinterUnavailable.
package printer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/erp/labelprint/internal/domain/printing"
)

// Sink accepts a rendered document for one destination
type Sink interface {
	// Send blocks until the destination accepted or refused the document
	Send(ctx context.Context, doc *printing.Document, destinationID string) error
}

// InteractiveSink shows the document to a user before printing it
type InteractiveSink interface {
	// Present returns printing.ErrUserCancelled when the user dismisses the
	// preview, and a delivery error when the confirmed print fails
	Present(ctx context.Context, doc *printing.Document, destinationID string) error
}

// Scheme names
const (
	SchemeTCP   = "tcp"
	SchemeFile  = "file"
	SchemeAgent = "agent"
)

// Destination is a parsed destination identifier
type Destination struct {
	Scheme string
	// Target is host[:port], a spool subdirectory, or an agent key
	Target string
	Raw    string
}

// ParseDestination parses a destination identifier
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, fmt.Errorf("%w: no destination selected", printing.ErrPrinterUnavailable)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Destination{}, fmt.Errorf("%w: invalid destination %q", printing.ErrPrinterUnavailable, raw)
	}
	d := Destination{Scheme: strings.ToLower(u.Scheme), Raw: raw}
	switch d.Scheme {
	case SchemeTCP:
		d.Target = u.Host
	case SchemeFile, SchemeAgent:
		d.Target = strings.Trim(u.Host+u.Path, "/")
	default:
		return Destination{}, fmt.Errorf("%w: unsupported destination scheme %q", printing.ErrPrinterUnavailable, u.Scheme)
	}
	if d.Target == "" && d.Scheme != SchemeFile {
		return Destination{}, fmt.Errorf("%w: destination %q has no target", printing.ErrPrinterUnavailable, raw)
	}
	return d, nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", printing.ErrPrinterUnavailable, fmt.Sprintf(format, args...))
}
