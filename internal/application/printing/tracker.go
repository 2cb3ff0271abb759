package printing

import (
	"sync"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
)

const (
	defaultTrackerRetention = 30 * time.Minute
	subscriberBuffer        = 16
)

type trackedJob struct {
	updates     []printing.StatusUpdate
	subscribers map[int]chan printing.StatusUpdate
	finishedAt  time.Time
}

// JobTracker keeps the status history of recent jobs and streams updates to
// subscribers. Finished jobs are forgotten after the retention period.
type JobTracker struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*trackedJob
	nextSub   int
	retention time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewJobTracker creates a new tracker and starts its cleanup goroutine
func NewJobTracker(retention time.Duration) *JobTracker {
	if retention <= 0 {
		retention = defaultTrackerRetention
	}
	t := &JobTracker{
		jobs:      make(map[uuid.UUID]*trackedJob),
		retention: retention,
		stopChan:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.cleanupLoop()
	return t
}

func (t *JobTracker) job(id uuid.UUID) *trackedJob {
	j, ok := t.jobs[id]
	if !ok {
		j = &trackedJob{subscribers: make(map[int]chan printing.StatusUpdate)}
		t.jobs[id] = j
	}
	return j
}

// Observe records an update; it is a StatusObserver
func (t *JobTracker) Observe(update printing.StatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.job(update.JobID)
	if !j.finishedAt.IsZero() {
		return
	}
	j.updates = append(j.updates, update)
	terminal := update.Result != nil
	for id, ch := range j.subscribers {
		select {
		case ch <- update:
		default:
			if !terminal {
				// slow subscriber; it can re-read History
				break
			}
			// the terminal update replaces the oldest buffered one
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
		if terminal {
			close(ch)
			delete(j.subscribers, id)
		}
	}
	if terminal {
		j.finishedAt = time.Now()
	}
}

// Finish closes a job with the result Run or Deliver returned. It is a no-op
// when the terminal update was already observed; otherwise, for an abandoned
// job, a final update in the job's last state carries the result.
func (t *JobTracker) Finish(result printing.PrintResult) {
	t.mu.Lock()
	j, ok := t.jobs[result.JobID]
	finished := ok && !j.finishedAt.IsZero()
	var state printing.JobState
	if ok && len(j.updates) > 0 {
		state = j.updates[len(j.updates)-1].State
	}
	t.mu.Unlock()
	if finished {
		return
	}
	res := result
	t.Observe(printing.StatusUpdate{
		JobID:             result.JobID,
		State:             state,
		Pages:             result.Pages,
		QRCodesRegistered: result.QRCodesRegistered,
		Result:            &res,
		Message:           result.Message(),
		At:                time.Now(),
	})
}

// Latest returns the most recent update of a job
func (t *JobTracker) Latest(id uuid.UUID) (printing.StatusUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok || len(j.updates) == 0 {
		return printing.StatusUpdate{}, false
	}
	return j.updates[len(j.updates)-1], true
}

// History returns every update of a job in order
func (t *JobTracker) History(id uuid.UUID) []printing.StatusUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return nil
	}
	return append([]printing.StatusUpdate(nil), j.updates...)
}

// Subscribe returns the updates so far and a channel of later ones. The
// channel is closed after the terminal update, or immediately if the job has
// already finished. The returned func unsubscribes.
func (t *JobTracker) Subscribe(id uuid.UUID) ([]printing.StatusUpdate, <-chan printing.StatusUpdate, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.job(id)
	past := append([]printing.StatusUpdate(nil), j.updates...)
	ch := make(chan printing.StatusUpdate, subscriberBuffer)
	if !j.finishedAt.IsZero() {
		close(ch)
		return past, ch, func() {}
	}
	subID := t.nextSub
	t.nextSub++
	j.subscribers[subID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if existing, ok := j.subscribers[subID]; ok {
				close(existing)
				delete(j.subscribers, subID)
			}
		})
	}
	return past, ch, cancel
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (t *JobTracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
	return nil
}

func (t *JobTracker) cleanupLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.cleanup(time.Now())
		}
	}
}

func (t *JobTracker) cleanup(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, j := range t.jobs {
		if !j.finishedAt.IsZero() && now.Sub(j.finishedAt) > t.retention {
			delete(t.jobs, id)
		}
	}
}
