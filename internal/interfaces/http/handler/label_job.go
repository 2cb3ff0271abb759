package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	apprinting "github.com/erp/labelprint/internal/application/printing"
	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/erp/labelprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHeartbeat = 15 * time.Second
	maxLayoutCount   = 1000
)

// JobRunner runs label jobs; *apprinting.Orchestrator implements it
type JobRunner interface {
	Run(ctx context.Context, req apprinting.RunRequest) printing.PrintResult
	Reprint(ctx context.Context, req apprinting.ReprintRequest) (printing.PrintResult, error)
	CanReprint(previous uuid.UUID) bool
	Geometry() printing.SheetGeometry
}

// LabelJobConfig contains the collaborators of a LabelJobHandler
type LabelJobConfig struct {
	Runner  JobRunner
	Tracker *apprinting.JobTracker
	// History is optional
	History printing.JobHistoryRepository
	// Defaults is the store branding every job starts from
	Defaults  printing.PrintJobConfig
	Heartbeat time.Duration
	Logger    *zap.Logger
}

// LabelJobHandler starts label jobs in the background and reports on them
type LabelJobHandler struct {
	BaseHandler
	runner    JobRunner
	tracker   *apprinting.JobTracker
	history   printing.JobHistoryRepository
	defaults  printing.PrintJobConfig
	heartbeat time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewLabelJobHandler creates a new LabelJobHandler
func NewLabelJobHandler(cfg LabelJobConfig) *LabelJobHandler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LabelJobHandler{
		runner:    cfg.Runner,
		tracker:   cfg.Tracker,
		history:   cfg.History,
		defaults:  cfg.Defaults,
		heartbeat: cfg.Heartbeat,
		logger:    cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Create godoc
//
//	@ID				createLabelJob
//
//	@Summary		Start a label job
//	@Description	Register sale codes for the items, then render and print their labels in the background. Poll the job or stream its events for the outcome.
//	@Tags			label-jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body	dto.CreateLabelJobRequest	true	"Label job request"
//	@Success		202	{object}	dto.Response{data=dto.JobAcceptedResponse}
//	@Failure		400	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Router			/label-jobs [post]
func (h *LabelJobHandler) Create(c *gin.Context) {
	var req dto.CreateLabelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}

	items := dto.Items(req.Items)
	if n := printing.CountUnits(items); n > printing.MaxUnitsPerJob {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation,
			fmt.Sprintf("%d labels requested, a job prints at most %d", n, printing.MaxUnitsPerJob))
		return
	}

	cfg := h.defaults
	req.Sale.ApplyTo(&cfg, time.Now())
	jobID := uuid.New()
	run := apprinting.RunRequest{
		JobID:         jobID,
		Items:         items,
		Config:        &cfg,
		Destination:   req.Destination,
		StartPosition: req.StartPosition,
		Observer:      h.tracker.Observe,
	}
	h.start(jobID, func(ctx context.Context) printing.PrintResult {
		return h.runner.Run(ctx, run)
	})
	h.Accepted(c, accepted(jobID))
}

// Reprint godoc
//
//	@ID				reprintLabelJob
//
//	@Summary		Reprint a held batch
//	@Description	Print the confirmed labels held for a failed or cancelled job as a new job. No codes are registered again.
//	@Tags			label-jobs
//	@Accept			json
//	@Produce		json
//	@Param			id	path	string	true	"Job ID (UUID)"
//	@Param			request	body	dto.ReprintRequest	false	"Destination override"
//	@Success		202	{object}	dto.Response{data=dto.JobAcceptedResponse}
//	@Failure		400	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/label-jobs/{id}/reprint [post]
func (h *LabelJobHandler) Reprint(c *gin.Context) {
	previous, ok := h.parseID(c)
	if !ok {
		return
	}
	var req dto.ReprintRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, err.Error())
		return
	}
	if !h.runner.CanReprint(previous) {
		h.NotFound(c, "No confirmed labels are held for this job")
		return
	}

	jobID := uuid.New()
	h.start(jobID, func(ctx context.Context) printing.PrintResult {
		result, err := h.runner.Reprint(ctx, apprinting.ReprintRequest{
			Previous:    previous,
			JobID:       jobID,
			Destination: req.Destination,
			Observer:    h.tracker.Observe,
		})
		if err != nil {
			return printing.FailureResult(jobID, printing.FailureNoItems, err.Error(), 0)
		}
		return result
	})
	h.Accepted(c, accepted(jobID))
}

// Get godoc
//
//	@ID				getLabelJob
//
//	@Summary		Get label job status
//	@Description	Return the latest status of a job, falling back to its history record once it has been forgotten
//	@Tags			label-jobs
//	@Produce		json
//	@Param			id	path	string	true	"Job ID (UUID)"
//	@Success		200	{object}	dto.Response{data=dto.JobStatusResponse}
//	@Failure		400	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/label-jobs/{id} [get]
func (h *LabelJobHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	resp := dto.JobStatusResponse{JobID: id, Running: h.isRunning(id)}
	if latest, found := h.tracker.Latest(id); found {
		resp.Status = &latest
	}
	if resp.Status == nil && h.history != nil {
		rec, err := h.history.FindByID(c.Request.Context(), id)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("job history lookup failed", zap.Error(err))
		}
		if rec != nil {
			resp.Record = dto.NewJobRecordResponse(rec)
		}
	}
	if resp.Status == nil && resp.Record == nil && !resp.Running {
		h.NotFound(c, "Job not found")
		return
	}
	h.Success(c, resp)
}

// Events godoc
//
//	@ID				streamLabelJobEvents
//
//	@Summary		Stream label job status
//	@Description	Stream the status updates of a job as server-sent status events until its terminal update
//	@Tags			label-jobs
//	@Produce		text/event-stream
//	@Param			id	path	string	true	"Job ID (UUID)"
//	@Success		200	{string}	string	"text/event-stream"
//	@Failure		400	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/label-jobs/{id}/events [get]
func (h *LabelJobHandler) Events(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if _, found := h.tracker.Latest(id); !found && !h.isRunning(id) {
		h.NotFound(c, "Job not found")
		return
	}

	past, updates, unsubscribe := h.tracker.Subscribe(id)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for _, u := range past {
		c.SSEvent("status", u)
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			return
		case u, open := <-updates:
			if !open {
				return
			}
			c.SSEvent("status", u)
			c.Writer.Flush()
		case <-ticker.C:
			_, _ = c.Writer.WriteString(": heartbeat\n\n")
			c.Writer.Flush()
		}
	}
}

// Cancel godoc
//
//	@ID				cancelLabelJob
//
//	@Summary		Cancel a label job
//	@Description	Abandon a running job. Labels whose codes are registered are held for reprint.
//	@Tags			label-jobs
//	@Produce		json
//	@Param			id	path	string	true	"Job ID (UUID)"
//	@Success		202	{object}	dto.Response
//	@Failure		400	{object}	dto.Response
//	@Failure		409	{object}	dto.Response
//	@Router			/label-jobs/{id} [delete]
func (h *LabelJobHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	h.mu.Lock()
	cancel, running := h.running[id]
	h.mu.Unlock()
	if !running {
		h.Conflict(c, "Job is not running")
		return
	}
	cancel()
	h.Accepted(c, gin.H{"job_id": id})
}

// List godoc
//
//	@ID				listLabelJobs
//
//	@Summary		List label jobs
//	@Description	Return recent job history, newest first
//	@Tags			label-jobs
//	@Produce		json
//	@Param			store_id	query	string	false	"Filter by store"
//	@Param			limit	query	int	false	"Maximum records"	default(50)
//	@Success		200	{object}	dto.Response{data=[]dto.JobRecordResponse}
//	@Failure		400	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Router			/label-jobs [get]
func (h *LabelJobHandler) List(c *gin.Context) {
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	out := make([]*dto.JobRecordResponse, 0)
	if h.history == nil {
		h.Success(c, out)
		return
	}
	records, err := h.history.FindRecent(c.Request.Context(), c.Query("store_id"), limit)
	if err != nil {
		h.logger.Error("failed to list job history", zap.Error(err))
		h.InternalError(c, "Failed to list jobs")
		return
	}
	for i := range records {
		out = append(out, dto.NewJobRecordResponse(&records[i]))
	}
	h.Success(c, out)
}

// Layout godoc
//
//	@ID				getSheetLayout
//
//	@Summary		Preview sheet layout
//	@Description	Return the slot map of the label sheets for a start position and item count
//	@Tags			layout
//	@Produce		json
//	@Param			start	query	int	false	"First slot to fill, at most 99"	default(0)
//	@Param			count	query	int	false	"Number of labels, at most 1000"	default(0)
//	@Success		200	{object}	dto.Response{data=dto.LayoutResponse}
//	@Failure		400	{object}	dto.Response
//	@Router			/layout [get]
func (h *LabelJobHandler) Layout(c *gin.Context) {
	start, err := intQuery(c, "start", 0)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	count, err := intQuery(c, "count", 0)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if start > printing.MaxStartPosition {
		h.BadRequest(c, "start must not exceed "+strconv.Itoa(printing.MaxStartPosition))
		return
	}
	if count > maxLayoutCount {
		h.BadRequest(c, "count must not exceed "+strconv.Itoa(maxLayoutCount))
		return
	}
	g := h.runner.Geometry()
	h.Success(c, dto.LayoutResponse{
		StartPosition:  start,
		ItemCount:      count,
		LabelsPerSheet: g.LabelsPerSheet(),
		PageCount:      g.PageCount(start, count),
		Pages:          g.Plan(start, count),
	})
}

// Close abandons running jobs and waits for them to return
func (h *LabelJobHandler) Close() error {
	h.cancel()
	h.wg.Wait()
	return nil
}

func (h *LabelJobHandler) start(jobID uuid.UUID, run func(ctx context.Context) printing.PrintResult) {
	ctx, cancel := context.WithCancel(h.ctx)
	h.mu.Lock()
	h.running[jobID] = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		result := run(ctx)
		h.tracker.Finish(result)
		h.mu.Lock()
		delete(h.running, jobID)
		h.mu.Unlock()
	}()
}

func (h *LabelJobHandler) isRunning(id uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.running[id]
	return ok
}

func accepted(id uuid.UUID) dto.JobAcceptedResponse {
	base := "/api/v1/label-jobs/" + id.String()
	return dto.JobAcceptedResponse{JobID: id, StatusURL: base, EventsURL: base + "/events"}
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
