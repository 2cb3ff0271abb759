package printing

import (
	"time"

	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/google/uuid"
)

// PrintJob is one run of the label pipeline, from registration to delivery.
// Jobs created for a reprint start with their codes already registered.
type PrintJob struct {
	shared.BaseAggregateRoot
	StoreID           string
	Settings          PrinterSettings // snapshot taken when the job was created
	State             JobState
	Reprint           bool
	UnitCount         int
	Pages             int
	QRCodesRegistered int
	Result            *PrintResult
	CompletedAt       *time.Time
}

// JobOption customizes a job at creation
type JobOption func(*PrintJob)

// WithJobID makes the job use a caller-chosen ID
func WithJobID(id uuid.UUID) JobOption {
	return func(j *PrintJob) {
		if id != uuid.Nil {
			j.BaseAggregateRoot = shared.NewBaseAggregateRootWithID(id)
		}
	}
}

func newJob(opts []JobOption) *PrintJob {
	job := &PrintJob{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

// NewPrintJob creates a job for freshly selected items
func NewPrintJob(storeID string, settings PrinterSettings, unitCount int, opts ...JobOption) *PrintJob {
	job := newJob(opts)
	job.StoreID = storeID
	job.Settings = settings
	job.State = JobStatePreparing
	job.UnitCount = unitCount
	job.AddDomainEvent(NewLabelJobStateChangedEvent(job, "", JobStatePreparing))
	return job
}

// NewReprintJob creates a job that delivers an already confirmed batch
func NewReprintJob(batch *ConfirmedBatch, settings PrinterSettings, opts ...JobOption) *PrintJob {
	job := newJob(opts)
	job.StoreID = batch.Config.StoreID
	job.Settings = settings
	job.State = JobStateCodesRegistered
	job.Reprint = true
	job.UnitCount = len(batch.Labels)
	job.QRCodesRegistered = batch.QRCodesRegistered
	job.AddDomainEvent(NewLabelJobStateChangedEvent(job, "", JobStateCodesRegistered))
	return job
}

func (j *PrintJob) transition(target JobState) error {
	if !j.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot move label job from "+j.State.String()+" to "+target.String())
	}
	old := j.State
	j.State = target
	j.IncrementVersion()
	j.AddDomainEvent(NewLabelJobStateChangedEvent(j, old, target))
	return nil
}

// BeginRegistration marks the registration call as in flight
func (j *PrintJob) BeginRegistration() error {
	return j.transition(JobStateRegisteringCodes)
}

// ConfirmCodes records the number of durably registered codes
func (j *PrintJob) ConfirmCodes(registered int) error {
	if registered < 0 {
		return shared.NewDomainError("INVALID_CODE_COUNT", "Registered code count cannot be negative")
	}
	j.QRCodesRegistered = registered
	return j.transition(JobStateCodesRegistered)
}

// BeginRendering records the page count computed before drawing starts
func (j *PrintJob) BeginRendering(pages int) error {
	if pages < 1 {
		return shared.NewDomainError("INVALID_PAGE_COUNT", "A label job renders at least one page")
	}
	j.Pages = pages
	return j.transition(JobStateRendering)
}

// BeginSending marks the document as handed to the printer sink
func (j *PrintJob) BeginSending() error {
	return j.transition(JobStateSending)
}

// Complete ends a job that reached rendering, successfully or not
func (j *PrintJob) Complete(result PrintResult) error {
	if err := j.transition(JobStateCompleted); err != nil {
		return err
	}
	j.finish(result)
	return nil
}

// Fail ends a job before any codes were registered
func (j *PrintJob) Fail(result PrintResult) error {
	if result.Success {
		return shared.NewDomainError("INVALID_RESULT", "Cannot fail a job with a successful result")
	}
	if err := j.transition(JobStateFailed); err != nil {
		return err
	}
	j.finish(result)
	return nil
}

// Abandon records the result of a job whose caller went away. The state is
// left as it was and no event is published.
func (j *PrintJob) Abandon(result PrintResult) error {
	if j.IsTerminal() || j.Result != nil {
		return shared.NewDomainError("INVALID_STATE", "Cannot abandon a finished label job")
	}
	result.Success = false
	result.Kind = FailureAbandoned
	result.QRCodesRegistered = j.QRCodesRegistered
	result.JobID = j.ID
	if result.Pages == 0 {
		result.Pages = j.Pages
	}
	j.Result = &result
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

func (j *PrintJob) finish(result PrintResult) {
	result.JobID = j.ID
	if result.Pages == 0 {
		result.Pages = j.Pages
	}
	j.Result = &result
	now := time.Now()
	j.CompletedAt = &now
	// the terminal status event should carry the result
	if n := len(j.GetDomainEvents()); n > 0 {
		if ev, ok := j.GetDomainEvents()[n-1].(*LabelJobStateChangedEvent); ok {
			ev.Result = j.Result
		}
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *PrintJob) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Record returns the persisted history entry for the job
func (j *PrintJob) Record() JobRecord {
	rec := JobRecord{
		ID:                j.ID,
		StoreID:           j.StoreID,
		Destination:       j.Settings.Destination,
		State:             j.State,
		Reprint:           j.Reprint,
		UnitCount:         j.UnitCount,
		Pages:             j.Pages,
		QRCodesRegistered: j.QRCodesRegistered,
		CreatedAt:         j.CreatedAt,
		CompletedAt:       j.CompletedAt,
	}
	if j.Result != nil {
		rec.Success = j.Result.Success
		rec.ItemsPrinted = j.Result.ItemsPrinted
		rec.FailureKind = j.Result.Kind
		rec.Message = j.Result.Message()
	}
	return rec
}
