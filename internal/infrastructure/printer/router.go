package printer

import (
	"context"

	"github.com/erp/labelprint/internal/domain/printing"
)

// Router dispatches each document to the sink registered for its
// destination scheme
type Router struct {
	sinks map[string]Sink
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{sinks: make(map[string]Sink)}
}

// Handle registers the sink for a scheme
func (r *Router) Handle(scheme string, sink Sink) *Router {
	r.sinks[scheme] = sink
	return r
}

// Schemes returns the registered schemes
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.sinks))
	for s := range r.sinks {
		out = append(out, s)
	}
	return out
}

// Send implements Sink
func (r *Router) Send(ctx context.Context, doc *printing.Document, destinationID string) error {
	dest, err := ParseDestination(destinationID)
	if err != nil {
		return err
	}
	sink, ok := r.sinks[dest.Scheme]
	if !ok {
		return unavailable("no printer transport for %q", dest.Scheme)
	}
	return sink.Send(ctx, doc, destinationID)
}

var _ Sink = (*Router)(nil)
