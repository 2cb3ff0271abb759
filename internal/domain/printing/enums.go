package printing

// JobState represents the lifecycle state of a label print job
type JobState string

const (
	JobStatePreparing        JobState = "PREPARING"
	JobStateRegisteringCodes JobState = "REGISTERING_CODES"
	JobStateCodesRegistered  JobState = "CODES_REGISTERED"
	JobStateRendering        JobState = "RENDERING"
	JobStateSending          JobState = "SENDING"
	JobStateCompleted        JobState = "COMPLETED"
	JobStateFailed           JobState = "FAILED"
)

// IsValid checks if the JobState is a valid value
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePreparing, JobStateRegisteringCodes, JobStateCodesRegistered,
		JobStateRendering, JobStateSending, JobStateCompleted, JobStateFailed:
		return true
	}
	return false
}

// String returns the string representation of JobState
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal state (no further transitions)
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// CanTransitionTo checks if the state can transition to the target state.
// FAILED is only reachable before codes are registered; later problems end
// the job as COMPLETED with a failure result.
func (s JobState) CanTransitionTo(target JobState) bool {
	switch s {
	case JobStatePreparing:
		return target == JobStateRegisteringCodes || target == JobStateFailed
	case JobStateRegisteringCodes:
		return target == JobStateCodesRegistered || target == JobStateFailed
	case JobStateCodesRegistered:
		return target == JobStateRendering
	case JobStateRendering:
		return target == JobStateSending || target == JobStateCompleted
	case JobStateSending:
		return target == JobStateCompleted
	case JobStateCompleted, JobStateFailed:
		return false
	}
	return false
}

// FailureKind classifies why a job did not print
type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureNoItems            FailureKind = "NO_ITEMS"
	FailureNotConfigured      FailureKind = "NOT_CONFIGURED"
	FailureInvalidRequest     FailureKind = "INVALID_REQUEST"
	FailureBackendError       FailureKind = "BACKEND_ERROR"
	FailureNetworkError       FailureKind = "NETWORK_ERROR"
	FailureRenderFailed       FailureKind = "RENDER_FAILED"
	FailurePrinterUnavailable FailureKind = "PRINTER_UNAVAILABLE"
	FailureCancelled          FailureKind = "CANCELLED"
	FailureAbandoned          FailureKind = "ABANDONED"
)

// AllFailureKinds returns every declared failure kind
func AllFailureKinds() []FailureKind {
	return []FailureKind{
		FailureNoItems, FailureNotConfigured, FailureInvalidRequest,
		FailureBackendError, FailureNetworkError, FailureRenderFailed,
		FailurePrinterUnavailable, FailureCancelled, FailureAbandoned,
	}
}

// String returns the string representation of FailureKind
func (k FailureKind) String() string {
	return string(k)
}

// RetryClass says whether the registration retry policy may repeat an attempt
type RetryClass int

const (
	RetryUnclassified RetryClass = iota
	RetryTransient
	RetryPermanent
)

// RetryClass returns the retry classification of the kind. Every kind is
// listed; a new kind stays unclassified until it is added here.
func (k FailureKind) RetryClass() RetryClass {
	switch k {
	case FailureBackendError, FailureNetworkError:
		return RetryTransient
	case FailureNoItems, FailureNotConfigured, FailureInvalidRequest,
		FailureRenderFailed, FailurePrinterUnavailable, FailureCancelled, FailureAbandoned:
		return RetryPermanent
	}
	return RetryUnclassified
}

// IsRetryable reports whether a registration attempt that failed with this
// kind may be repeated. Unclassified kinds are not retried.
func (k FailureKind) IsRetryable() bool {
	return k.RetryClass() == RetryTransient
}

// SaleCodeKind is the single-letter prefix of a sale code
type SaleCodeKind byte

const (
	SaleCodeProduct  SaleCodeKind = 'P'
	SaleCodeSaleUnit SaleCodeKind = 'S'
	SaleCodeOrder    SaleCodeKind = 'O'
)

// IsValid checks if the SaleCodeKind is a known prefix
func (k SaleCodeKind) IsValid() bool {
	switch k {
	case SaleCodeProduct, SaleCodeSaleUnit, SaleCodeOrder:
		return true
	}
	return false
}

// PotencyUnit is the unit a potency value is expressed in
type PotencyUnit string

const (
	PotencyPercent    PotencyUnit = "%"
	PotencyMilligrams PotencyUnit = "mg"
)
