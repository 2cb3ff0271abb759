package printing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors shared by sinks and the orchestrator
var (
	ErrNoItems            = errors.New("no items to print")
	ErrUserCancelled      = errors.New("print cancelled by user")
	ErrPrinterUnavailable = errors.New("printer unavailable")
)

// PrintResult is the single terminal outcome of a job. It is a value type;
// callers receive copies.
type PrintResult struct {
	JobID             uuid.UUID   `json:"job_id"`
	Success           bool        `json:"success"`
	ItemsPrinted      int         `json:"items_printed"`
	QRCodesRegistered int         `json:"qr_codes_registered"`
	Pages             int         `json:"pages"`
	Kind              FailureKind `json:"kind,omitempty"`
	Detail            string      `json:"detail,omitempty"`
}

// SuccessResult builds a successful result
func SuccessResult(jobID uuid.UUID, itemsPrinted, codesRegistered, pages int) PrintResult {
	return PrintResult{
		JobID:             jobID,
		Success:           true,
		ItemsPrinted:      itemsPrinted,
		QRCodesRegistered: codesRegistered,
		Pages:             pages,
	}
}

// FailureResult builds a failed result. codesRegistered records codes that
// were durably issued before the failure.
func FailureResult(jobID uuid.UUID, kind FailureKind, detail string, codesRegistered int) PrintResult {
	return PrintResult{
		JobID:             jobID,
		Kind:              kind,
		Detail:            detail,
		QRCodesRegistered: codesRegistered,
	}
}

// WithPages returns a copy carrying the page count
func (r PrintResult) WithPages(pages int) PrintResult {
	r.Pages = pages
	return r
}

// CanRetryDelivery reports whether the confirmed codes can be printed again
// without registering new ones
func (r PrintResult) CanRetryDelivery() bool {
	if r.Success || r.QRCodesRegistered == 0 {
		return false
	}
	switch r.Kind {
	case FailurePrinterUnavailable, FailureCancelled, FailureAbandoned:
		return true
	}
	return false
}

// Message returns the human-readable text for the result
func (r PrintResult) Message() string {
	if r.Success {
		return fmt.Sprintf("Printed %d labels on %d sheet(s); %d QR codes registered",
			r.ItemsPrinted, r.Pages, r.QRCodesRegistered)
	}
	var msg string
	switch r.Kind {
	case FailureNoItems:
		msg = "Nothing to print: select at least one item"
	case FailureNotConfigured:
		msg = "Label registration is not configured"
	case FailureInvalidRequest:
		msg = "The label request is invalid"
	case FailureBackendError:
		msg = "The label service rejected the batch"
	case FailureNetworkError:
		msg = "Could not reach the label service"
	case FailureRenderFailed:
		msg = "Labels could not be rendered"
	case FailurePrinterUnavailable:
		msg = "The printer did not accept the job"
	case FailureCancelled:
		msg = "Printing was cancelled"
	case FailureAbandoned:
		msg = "The print job was abandoned"
	default:
		msg = "Printing failed"
	}
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	if r.CanRetryDelivery() {
		msg += fmt.Sprintf(" (%d QR codes are registered; retry printing to reuse them)", r.QRCodesRegistered)
	}
	return msg
}

// RegistrationError is a typed failure from the registration service
type RegistrationError struct {
	Kind       FailureKind
	Detail     string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *RegistrationError) Error() string {
	s := string(e.Kind)
	if e.StatusCode != 0 {
		s += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// NewRegistrationError creates a new RegistrationError
func NewRegistrationError(kind FailureKind, detail string, cause error) *RegistrationError {
	return &RegistrationError{Kind: kind, Detail: detail, Cause: cause}
}

// FailureKindOf classifies an error returned by a registrar. Errors of
// unknown type are treated as backend errors.
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		return regErr.Kind
	}
	switch {
	case errors.Is(err, ErrNoItems):
		return FailureNoItems
	case errors.Is(err, ErrUserCancelled):
		return FailureCancelled
	case errors.Is(err, ErrPrinterUnavailable):
		return FailurePrinterUnavailable
	}
	return FailureBackendError
}

// FailureDetail returns the detail text of an error for a result
func FailureDetail(err error) string {
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		if regErr.Detail != "" {
			return regErr.Detail
		}
		if regErr.Cause != nil {
			return regErr.Cause.Error()
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
