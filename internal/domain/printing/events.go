package printing

import (
	"time"

	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeLabelJob is the aggregate type of PrintJob events
const AggregateTypeLabelJob = "LabelPrintJob"

// EventTypeLabelJobStateChanged is published on every state transition
const EventTypeLabelJobStateChanged = "LabelPrintJobStateChanged"

// LabelJobStateChangedEvent is published when a job changes state
type LabelJobStateChangedEvent struct {
	shared.BaseDomainEvent
	JobID             uuid.UUID    `json:"job_id"`
	From              JobState     `json:"from,omitempty"`
	To                JobState     `json:"to"`
	Pages             int          `json:"pages,omitempty"`
	QRCodesRegistered int          `json:"qr_codes_registered,omitempty"`
	Result            *PrintResult `json:"result,omitempty"`
}

// NewLabelJobStateChangedEvent creates a new LabelJobStateChangedEvent
func NewLabelJobStateChangedEvent(job *PrintJob, from, to JobState) *LabelJobStateChangedEvent {
	return &LabelJobStateChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeLabelJobStateChanged,
			AggregateTypeLabelJob,
			job.ID,
		),
		JobID:             job.ID,
		From:              from,
		To:                to,
		Pages:             job.Pages,
		QRCodesRegistered: job.QRCodesRegistered,
	}
}

// StatusUpdate is the progress notification shown to a UI
type StatusUpdate struct {
	JobID             uuid.UUID    `json:"job_id"`
	State             JobState     `json:"state"`
	Pages             int          `json:"pages,omitempty"`
	QRCodesRegistered int          `json:"qr_codes_registered,omitempty"`
	Result            *PrintResult `json:"result,omitempty"`
	Message           string       `json:"message,omitempty"`
	At                time.Time    `json:"at"`
}

// Status converts the event to a UI status update
func (e *LabelJobStateChangedEvent) Status() StatusUpdate {
	s := StatusUpdate{
		JobID:             e.JobID,
		State:             e.To,
		Pages:             e.Pages,
		QRCodesRegistered: e.QRCodesRegistered,
		Result:            e.Result,
		At:                e.Recorded,
	}
	if e.Result != nil {
		s.Message = e.Result.Message()
	}
	return s
}
