package printing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    JobState
		to      JobState
		allowed bool
	}{
		{JobStatePreparing, JobStateRegisteringCodes, true},
		{JobStatePreparing, JobStateFailed, true},
		{JobStatePreparing, JobStateRendering, false},
		{JobStateRegisteringCodes, JobStateCodesRegistered, true},
		{JobStateRegisteringCodes, JobStateFailed, true},
		{JobStateCodesRegistered, JobStateRendering, true},
		{JobStateCodesRegistered, JobStateFailed, false},
		{JobStateRendering, JobStateSending, true},
		{JobStateRendering, JobStateCompleted, true},
		{JobStateRendering, JobStateFailed, false},
		{JobStateSending, JobStateCompleted, true},
		{JobStateSending, JobStateFailed, false},
		{JobStateCompleted, JobStatePreparing, false},
		{JobStateFailed, JobStatePreparing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPrintJob_SuccessfulLifecycle(t *testing.T) {
	job := NewPrintJob("store-1", PrinterSettings{Destination: "tcp://printer", StartPosition: 3}, 12)
	assert.Equal(t, JobStatePreparing, job.State)

	require.NoError(t, job.BeginRegistration())
	require.NoError(t, job.ConfirmCodes(12))
	require.NoError(t, job.BeginRendering(2))
	require.NoError(t, job.BeginSending())
	require.NoError(t, job.Complete(SuccessResult(job.ID, 12, 12, 2)))

	assert.True(t, job.IsTerminal())
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.Success)
	assert.Equal(t, job.ID, job.Result.JobID)

	events := job.PullDomainEvents()
	var states []JobState
	for _, ev := range events {
		states = append(states, ev.(*LabelJobStateChangedEvent).To)
	}
	assert.Equal(t, []JobState{
		JobStatePreparing, JobStateRegisteringCodes, JobStateCodesRegistered,
		JobStateRendering, JobStateSending, JobStateCompleted,
	}, states)

	last := events[len(events)-1].(*LabelJobStateChangedEvent).Status()
	require.NotNil(t, last.Result)
	assert.Equal(t, 2, last.Pages)
	assert.NotEmpty(t, last.Message)
	assert.Empty(t, job.GetDomainEvents())
}

func TestPrintJob_FailIsOnlyAllowedBeforeCodesRegistered(t *testing.T) {
	job := NewPrintJob("store-1", PrinterSettings{}, 1)
	require.NoError(t, job.BeginRegistration())
	require.NoError(t, job.ConfirmCodes(1))

	err := job.Fail(FailureResult(job.ID, FailureBackendError, "late", 1))
	assert.Error(t, err)
	assert.Equal(t, JobStateCodesRegistered, job.State)
}

func TestPrintJob_RejectsSuccessfulFailure(t *testing.T) {
	job := NewPrintJob("store-1", PrinterSettings{}, 1)
	assert.Error(t, job.Fail(SuccessResult(job.ID, 1, 1, 1)))
}

func TestNewReprintJob_StartsWithCodesRegistered(t *testing.T) {
	batch := &ConfirmedBatch{
		Labels:            make([]LabelPayload, 5),
		Config:            BatchConfig{StoreID: "store-9"},
		QRCodesRegistered: 5,
	}

	job := NewReprintJob(batch, PrinterSettings{Destination: "file://"})

	assert.Equal(t, JobStateCodesRegistered, job.State)
	assert.True(t, job.Reprint)
	assert.Equal(t, 5, job.QRCodesRegistered)
	assert.Equal(t, "store-9", job.StoreID)
	assert.Error(t, job.BeginRegistration())
}

func TestPrintJob_Record(t *testing.T) {
	job := NewPrintJob("store-1", PrinterSettings{Destination: "tcp://10.0.0.5"}, 5)
	require.NoError(t, job.BeginRegistration())
	require.NoError(t, job.ConfirmCodes(5))
	require.NoError(t, job.BeginRendering(1))
	require.NoError(t, job.BeginSending())
	require.NoError(t, job.Complete(FailureResult(job.ID, FailurePrinterUnavailable, "connection refused", 5)))

	rec := job.Record()
	assert.Equal(t, job.ID, rec.ID)
	assert.Equal(t, JobStateCompleted, rec.State)
	assert.False(t, rec.Success)
	assert.Equal(t, FailurePrinterUnavailable, rec.FailureKind)
	assert.Equal(t, 5, rec.QRCodesRegistered)
	assert.Equal(t, 1, rec.Pages)
	assert.Equal(t, "tcp://10.0.0.5", rec.Destination)
	assert.NotNil(t, rec.CompletedAt)
}

func TestNewPrintJob_WithJobID(t *testing.T) {
	id := uuid.New()
	job := NewPrintJob("store-1", PrinterSettings{}, 2, WithJobID(id))

	assert.Equal(t, id, job.ID)
	events := job.PullDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].AggregateID())

	generated := NewPrintJob("store-1", PrinterSettings{}, 2, WithJobID(uuid.Nil))
	assert.NotEqual(t, uuid.Nil, generated.ID)
}

func TestPrintJob_AbandonKeepsState(t *testing.T) {
	job := NewPrintJob("store-1", PrinterSettings{}, 5)
	require.NoError(t, job.BeginRegistration())
	require.NoError(t, job.ConfirmCodes(5))
	job.PullDomainEvents()

	require.NoError(t, job.Abandon(PrintResult{Detail: "caller left"}))

	assert.Equal(t, JobStateCodesRegistered, job.State)
	assert.Empty(t, job.GetDomainEvents())
	require.NotNil(t, job.Result)
	assert.Equal(t, FailureAbandoned, job.Result.Kind)
	assert.Equal(t, 5, job.Result.QRCodesRegistered)
	assert.True(t, job.Result.CanRetryDelivery())
	assert.Error(t, job.Abandon(PrintResult{}))
}

func TestPrinterSettings_ValidateStartPosition(t *testing.T) {
	assert.NoError(t, PrinterSettings{StartPosition: 0}.Validate())
	assert.NoError(t, PrinterSettings{StartPosition: MaxStartPosition}.Validate())
	assert.Error(t, PrinterSettings{StartPosition: -1}.Validate())
	assert.Error(t, PrinterSettings{StartPosition: MaxStartPosition + 1}.Validate())
}
