package printing

import (
	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/domain/shared"
	"go.uber.org/zap"
)

// StatusObserver receives progress updates of a job. Observers run on the
// job's goroutine and should return quickly.
type StatusObserver func(printing.StatusUpdate)

// statusUpdates converts pending job events to UI updates
func statusUpdates(events []shared.DomainEvent) []printing.StatusUpdate {
	updates := make([]printing.StatusUpdate, 0, len(events))
	for _, ev := range events {
		if changed, ok := ev.(*printing.LabelJobStateChangedEvent); ok {
			updates = append(updates, changed.Status())
		}
	}
	return updates
}

// notify delivers an update to every observer. A panicking observer is
// logged and skipped; it never reaches the job.
func notify(logger *zap.Logger, observers []StatusObserver, update printing.StatusUpdate) {
	for _, obs := range observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn("status observer panicked",
						zap.String("job_id", update.JobID.String()),
						zap.String("state", update.State.String()),
						zap.Any("panic", r))
				}
			}()
			obs(update)
		}()
	}
}
