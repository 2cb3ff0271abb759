// Package printing runs label print jobs: register codes with the backend,
// render the label sheets, and deliver the document to a printer.
package printing

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/logger"
	"github.com/erp/labelprint/internal/infrastructure/printer"
	infra "github.com/erp/labelprint/internal/infrastructure/printing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName  = "github.com/erp/labelprint/orchestrator"
	hookTimeout = 30 * time.Second
)

// ImageSource loads thumbnails and logos; missing entries mean the image
// could not be loaded
type ImageSource interface {
	Prefetch(ctx context.Context, urls []string) map[string]image.Image
}

// Dependencies are the collaborators of an Orchestrator. Registrar, Renderer,
// Encoder and Sink are required.
type Dependencies struct {
	Registrar Registrar
	Renderer  infra.SheetRenderer
	Encoder   infra.DocumentEncoder
	Sink      printer.Sink
	// Interactive receives documents when auto-print is off
	Interactive printer.InteractiveSink
	Images      ImageSource
	Settings    *SettingsStore
	Reprints    *ReprintStore
	History     printing.JobHistoryRepository
	Hooks       []PrintedHook
	Metrics     JobMetrics
	// Observers receive the updates of every job
	Observers []StatusObserver
	// Defaults is the job config used when a request carries none
	Defaults printing.PrintJobConfig
	Geometry printing.SheetGeometry
	Retry    RetryPolicy
	Sleep    Sleeper
	Logger   *zap.Logger
}

// RunRequest starts a job for freshly selected items
type RunRequest struct {
	// JobID is optional; a new ID is generated when zero
	JobID  uuid.UUID
	Items  []printing.PrintItem
	Config *printing.PrintJobConfig
	// Destination overrides the selected printer for this job
	Destination string
	// StartPosition overrides the settings offset for this job
	StartPosition *int
	Observer      StatusObserver
}

// DeliverRequest prints an already confirmed batch again
type DeliverRequest struct {
	JobID         uuid.UUID
	Batch         *printing.ConfirmedBatch
	Config        *printing.PrintJobConfig
	Destination   string
	StartPosition *int
	Observer      StatusObserver
}

// Orchestrator sequences registration, rendering and delivery of label jobs.
// Jobs are independent; a single Orchestrator runs any number concurrently.
type Orchestrator struct {
	registrar   *RetryingRegistrar
	renderer    infra.SheetRenderer
	encoder     infra.DocumentEncoder
	sink        printer.Sink
	interactive printer.InteractiveSink
	images      ImageSource
	settings    *SettingsStore
	reprints    *ReprintStore
	history     printing.JobHistoryRepository
	hooks       []PrintedHook
	metrics     JobMetrics
	observers   []StatusObserver
	defaults    printing.PrintJobConfig
	geometry    printing.SheetGeometry
	tracer      trace.Tracer
	logger      *zap.Logger

	hookWG sync.WaitGroup
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Registrar == nil:
		return nil, errors.New("orchestrator: registrar is required")
	case deps.Renderer == nil:
		return nil, errors.New("orchestrator: renderer is required")
	case deps.Encoder == nil:
		return nil, errors.New("orchestrator: encoder is required")
	case deps.Sink == nil:
		return nil, errors.New("orchestrator: sink is required")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	settings := deps.Settings
	if settings == nil {
		settings = NewSettingsStore(printing.PrinterSettings{AutoPrint: true})
	}
	geometry := deps.Geometry
	if geometry.LabelsPerSheet() == 0 {
		geometry = printing.StandardSheet()
	}

	o := &Orchestrator{
		renderer:    deps.Renderer,
		encoder:     deps.Encoder,
		sink:        deps.Sink,
		interactive: deps.Interactive,
		images:      deps.Images,
		settings:    settings,
		reprints:    deps.Reprints,
		history:     deps.History,
		hooks:       deps.Hooks,
		metrics:     metrics,
		observers:   deps.Observers,
		defaults:    deps.Defaults,
		geometry:    geometry,
		tracer:      otel.Tracer(tracerName),
		logger:      log,
	}
	o.registrar = NewRetryingRegistrar(deps.Registrar, deps.Retry,
		WithSleeper(deps.Sleep),
		WithRetryLogger(log),
		WithAttemptObserver(func(attempt int, err error) {
			o.metrics.RecordRegistrationAttempt(context.Background(), attempt, printing.FailureKindOf(err))
		}),
	)
	return o, nil
}

// Settings returns the settings store jobs snapshot from
func (o *Orchestrator) Settings() *SettingsStore {
	return o.settings
}

// Geometry returns the sheet geometry
func (o *Orchestrator) Geometry() printing.SheetGeometry {
	return o.geometry
}

// Run registers codes for the items, renders the labels and delivers them.
// It returns exactly one result. Cancelling ctx abandons the job: the
// registration call in flight finishes in the background and is discarded.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) printing.PrintResult {
	settings := o.snapshot(req.Destination, req.StartPosition)
	cfg := o.jobConfig(req.Config)
	job := printing.NewPrintJob(cfg.StoreID, settings, printing.CountUnits(req.Items), printing.WithJobID(req.JobID))
	r := o.newRun(ctx, job, cfg, req.Observer)
	defer r.end()
	r.publish()

	if job.UnitCount == 0 {
		return r.fail(printing.FailureNoItems, "")
	}
	if job.UnitCount > printing.MaxUnitsPerJob {
		return r.fail(printing.FailureInvalidRequest,
			fmt.Sprintf("%d labels requested, a job prints at most %d", job.UnitCount, printing.MaxUnitsPerJob))
	}
	if err := cfg.Validate(); err != nil {
		return r.fail(printing.FailureNotConfigured, err.Error())
	}
	if err := settings.Validate(); err != nil {
		return r.fail(printing.FailureInvalidRequest, err.Error())
	}

	registration := printing.NewRegistrationRequest(&cfg, req.Items)
	r.must(job.BeginRegistration())
	r.publish()

	batch, err := r.register(registration)
	if r.abandoned() {
		return r.abandon("registration")
	}
	if err != nil {
		return r.fail(printing.FailureKindOf(err), printing.FailureDetail(err))
	}
	if err := batch.Validate(); err != nil {
		return r.fail(printing.FailureBackendError, err.Error())
	}

	r.must(job.ConfirmCodes(batch.QRCodesRegistered))
	r.publish()
	r.logger.Info("label codes registered",
		zap.Int("labels", len(batch.Labels)),
		zap.Int("qr_codes_registered", batch.QRCodesRegistered),
		zap.Int("skipped", len(batch.Skipped)))

	return r.deliver(batch)
}

// Deliver renders and prints a confirmed batch without registering codes
func (o *Orchestrator) Deliver(ctx context.Context, req DeliverRequest) printing.PrintResult {
	settings := o.snapshot(req.Destination, req.StartPosition)
	cfg := o.jobConfig(req.Config)
	if req.Batch == nil {
		req.Batch = &printing.ConfirmedBatch{}
	}
	job := printing.NewReprintJob(req.Batch, settings, printing.WithJobID(req.JobID))
	if job.StoreID == "" {
		job.StoreID = cfg.StoreID
	}
	r := o.newRun(ctx, job, cfg, req.Observer)
	defer r.end()
	r.publish()
	return r.deliver(req.Batch)
}

// ReprintRequest delivers the batch held for a previous job
type ReprintRequest struct {
	Previous uuid.UUID
	// JobID is optional; a new ID is generated when zero
	JobID uuid.UUID
	// Destination is optional; empty reuses the previous destination
	Destination string
	Observer    StatusObserver
}

// CanReprint reports whether a confirmed batch is held for the job
func (o *Orchestrator) CanReprint(previous uuid.UUID) bool {
	if o.reprints == nil {
		return false
	}
	_, ok := o.reprints.Get(previous)
	return ok
}

// Reprint delivers the batch held for a previous job under a new job ID
func (o *Orchestrator) Reprint(ctx context.Context, req ReprintRequest) (printing.PrintResult, error) {
	if o.reprints == nil {
		return printing.PrintResult{}, printing.ErrNoItems
	}
	held, ok := o.reprints.Get(req.Previous)
	if !ok {
		return printing.PrintResult{}, fmt.Errorf("no confirmed labels held for job %s: %w", req.Previous, printing.ErrNoItems)
	}
	destination := req.Destination
	if destination == "" {
		destination = held.Destination
	}
	cfg := held.Config
	result := o.Deliver(ctx, DeliverRequest{
		JobID:       req.JobID,
		Batch:       held.Batch,
		Config:      &cfg,
		Destination: destination,
		Observer:    req.Observer,
	})
	if result.Success {
		o.reprints.Release(req.Previous)
	}
	return result, nil
}

// Wait blocks until background after-print hooks have finished
func (o *Orchestrator) Wait() {
	o.hookWG.Wait()
}

func (o *Orchestrator) snapshot(destination string, start *int) printing.PrinterSettings {
	s := o.settings.Snapshot()
	if destination != "" {
		s.Destination = destination
	}
	if start != nil {
		s.StartPosition = *start
	}
	return s
}

func (o *Orchestrator) jobConfig(cfg *printing.PrintJobConfig) printing.PrintJobConfig {
	if cfg == nil {
		return o.defaults
	}
	return *cfg
}

// jobRun is the per-job execution state
type jobRun struct {
	o         *Orchestrator
	ctx       context.Context
	span      trace.Span
	job       *printing.PrintJob
	cfg       printing.PrintJobConfig
	observers []StatusObserver
	logger    *zap.Logger
	started   time.Time
	batch     *printing.ConfirmedBatch
	result    printing.PrintResult
}

func (o *Orchestrator) newRun(ctx context.Context, job *printing.PrintJob, cfg printing.PrintJobConfig, observer StatusObserver) *jobRun {
	ctx, span := o.tracer.Start(ctx, "label_job", trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("store.id", job.StoreID),
		attribute.Bool("job.reprint", job.Reprint),
		attribute.Int("job.units", job.UnitCount),
	))
	ctx, log := logger.WithJob(ctx, o.logger, job.ID, job.StoreID)
	observers := append([]StatusObserver(nil), o.observers...)
	observers = append(observers, observer)
	return &jobRun{
		o:         o,
		ctx:       ctx,
		span:      span,
		job:       job,
		cfg:       cfg,
		observers: observers,
		logger:    log,
		started:   time.Now(),
	}
}

// publish sends the job's pending state changes to the observers
func (r *jobRun) publish() {
	for _, u := range statusUpdates(r.job.PullDomainEvents()) {
		notify(r.logger, r.observers, u)
	}
}

// must guards transitions the run sequence makes legal by construction
func (r *jobRun) must(err error) {
	if err != nil {
		panic(fmt.Sprintf("label job %s: %v", r.job.ID, err))
	}
}

func (r *jobRun) abandoned() bool {
	return r.ctx.Err() != nil
}

func (r *jobRun) register(req *printing.RegistrationRequest) (*printing.ConfirmedBatch, error) {
	ctx, span := r.o.tracer.Start(r.ctx, "register_codes")
	defer span.End()

	type reply struct {
		batch *printing.ConfirmedBatch
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		batch, err := r.o.registrar.Register(ctx, req)
		done <- reply{batch, err}
	}()

	select {
	case rep := <-done:
		if rep.err != nil {
			span.RecordError(rep.err)
			span.SetStatus(codes.Error, string(printing.FailureKindOf(rep.err)))
		}
		return rep.batch, rep.err
	case <-r.ctx.Done():
		span.SetStatus(codes.Error, "abandoned")
		return nil, r.ctx.Err()
	}
}

// deliver runs rendering and delivery. The job is in codesRegistered.
func (r *jobRun) deliver(batch *printing.ConfirmedBatch) printing.PrintResult {
	job := r.job
	r.batch = batch
	if r.abandoned() {
		return r.abandon("before rendering")
	}

	cfg := r.cfg.WithBatch(batch.Config)
	start := job.Settings.StartPosition
	pages := r.o.geometry.PageCount(start, len(batch.Labels))
	r.must(job.BeginRendering(pages))
	r.publish()

	if len(batch.Labels) == 0 {
		return r.complete(printing.FailureResult(job.ID, printing.FailureNoItems, "", job.QRCodesRegistered))
	}
	if err := job.Settings.Validate(); err != nil {
		return r.complete(printing.FailureResult(job.ID, printing.FailureInvalidRequest, err.Error(), job.QRCodesRegistered))
	}
	if err := batch.Validate(); err != nil {
		return r.complete(printing.FailureResult(job.ID, printing.FailureRenderFailed, err.Error(), job.QRCodesRegistered))
	}

	images := r.prefetch(batch, cfg)
	if r.abandoned() {
		return r.abandon("image prefetch")
	}

	doc, err := r.render(batch, cfg, start, images)
	if r.abandoned() {
		return r.abandon("rendering")
	}
	if err != nil {
		r.logger.Error("label rendering failed", zap.Error(err))
		return r.complete(printing.FailureResult(job.ID, printing.FailureRenderFailed, err.Error(), job.QRCodesRegistered))
	}

	r.must(job.BeginSending())
	r.publish()

	interactive := !job.Settings.AutoPrint && r.o.interactive != nil
	err = r.send(doc, interactive)
	if err != nil && r.abandoned() {
		return r.abandon("delivery")
	}
	if err != nil {
		kind := printing.FailurePrinterUnavailable
		if errors.Is(err, printing.ErrUserCancelled) {
			kind = printing.FailureCancelled
		}
		r.logger.Warn("label delivery failed",
			zap.String("destination", job.Settings.Destination),
			zap.String("kind", kind.String()),
			zap.Bool("interactive", interactive),
			zap.Error(err))
		result := r.complete(printing.FailureResult(job.ID, kind, deliveryDetail(err), job.QRCodesRegistered))
		r.hold(batch, result)
		return result
	}

	result := r.complete(printing.SuccessResult(job.ID, len(batch.Labels), job.QRCodesRegistered, pages))
	r.runHooks(PrintedBatch{
		JobID:       job.ID,
		Batch:       batch,
		Config:      cfg,
		Document:    doc,
		Destination: job.Settings.Destination,
		Reprint:     job.Reprint,
	})
	return result
}

func (r *jobRun) prefetch(batch *printing.ConfirmedBatch, cfg printing.PrintJobConfig) map[string]image.Image {
	if r.o.images == nil {
		return nil
	}
	urls := batch.ImageURLs()
	if cfg.Logo == nil && cfg.LogoURL != "" {
		urls = append(urls, cfg.LogoURL)
	}
	if len(urls) == 0 {
		return nil
	}
	ctx, span := r.o.tracer.Start(r.ctx, "prefetch_images", trace.WithAttributes(attribute.Int("images.requested", len(urls))))
	defer span.End()
	images := r.o.images.Prefetch(ctx, urls)
	span.SetAttributes(attribute.Int("images.loaded", len(images)))
	return images
}

func (r *jobRun) render(batch *printing.ConfirmedBatch, cfg printing.PrintJobConfig, start int, images map[string]image.Image) (*printing.Document, error) {
	ctx, span := r.o.tracer.Start(r.ctx, "render_labels")
	defer span.End()

	sheets, err := r.o.renderer.Render(ctx, &infra.SheetRequest{
		JobID:         r.job.ID,
		Labels:        batch.Labels,
		Config:        cfg,
		StartPosition: start,
		SealedDate:    batch.SealedDate,
		Images:        images,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if sheets.PageCount() != r.job.Pages {
		return nil, fmt.Errorf("rendered %d pages, planned %d", sheets.PageCount(), r.job.Pages)
	}

	title := "Labels"
	if cfg.StoreName != "" {
		title = cfg.StoreName + " labels"
	}
	doc, err := r.o.encoder.Encode(ctx, &infra.EncodeRequest{
		JobID:     r.job.ID,
		Title:     title,
		Sheets:    sheets,
		CreatedAt: time.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	r.logger.Info("label sheets rendered",
		zap.Int("pages", doc.PageCount),
		zap.Int("labels", doc.LabelCount),
		zap.Int("bytes", doc.Size()),
		zap.Duration("render_duration", sheets.RenderDuration))
	return doc, nil
}

// send makes the single delivery attempt
func (r *jobRun) send(doc *printing.Document, interactive bool) error {
	ctx, span := r.o.tracer.Start(r.ctx, "deliver_document", trace.WithAttributes(
		attribute.String("printer.destination", r.job.Settings.Destination),
		attribute.Bool("printer.interactive", interactive),
	))
	defer span.End()

	var err error
	if interactive {
		err = r.o.interactive.Present(ctx, doc, r.job.Settings.Destination)
	} else {
		err = r.o.sink.Send(ctx, doc, r.job.Settings.Destination)
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *jobRun) complete(result printing.PrintResult) printing.PrintResult {
	r.must(r.job.Complete(result))
	return r.finish()
}

func (r *jobRun) fail(kind printing.FailureKind, detail string) printing.PrintResult {
	r.must(r.job.Fail(printing.FailureResult(r.job.ID, kind, detail, 0)))
	return r.finish()
}

func (r *jobRun) finish() printing.PrintResult {
	r.publish()
	r.result = *r.job.Result
	return r.result
}

// abandon records the result without any further state transition
func (r *jobRun) abandon(stage string) printing.PrintResult {
	job := r.job
	r.must(job.Abandon(printing.PrintResult{Detail: "abandoned during " + stage}))
	r.result = *job.Result
	r.logger.Info("label job abandoned",
		zap.String("stage", stage),
		zap.String("state", job.State.String()),
		zap.Int("qr_codes_registered", job.QRCodesRegistered))
	return r.result
}

// hold keeps a batch whose codes are registered but not printed
func (r *jobRun) hold(batch *printing.ConfirmedBatch, result printing.PrintResult) {
	if r.o.reprints == nil || !result.CanRetryDelivery() {
		return
	}
	r.o.reprints.Hold(HeldBatch{
		JobID:       r.job.ID,
		Batch:       batch,
		Config:      r.cfg,
		Destination: r.job.Settings.Destination,
		Result:      result,
	})
}

func (r *jobRun) runHooks(printed PrintedBatch) {
	if len(r.o.hooks) == 0 {
		return
	}
	ctx := context.WithoutCancel(r.ctx)
	for _, h := range r.o.hooks {
		r.o.hookWG.Add(1)
		go func(h PrintedHook) {
			defer r.o.hookWG.Done()
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("after-print hook panicked", zap.String("hook", h.Name()), zap.Any("panic", p))
				}
			}()
			hctx, cancel := context.WithTimeout(ctx, hookTimeout)
			defer cancel()
			if err := h.AfterPrint(hctx, printed); err != nil {
				r.logger.Warn("after-print hook failed", zap.String("hook", h.Name()), zap.Error(err))
			}
		}(h)
	}
}

// end records history and metrics for the run's result
func (r *jobRun) end() {
	defer r.span.End()
	result := r.result
	if result.Kind == printing.FailureAbandoned && r.batch != nil {
		r.hold(r.batch, result)
	}
	if result.Success {
		r.span.SetStatus(codes.Ok, "")
	} else {
		r.span.SetStatus(codes.Error, string(result.Kind))
	}
	r.span.SetAttributes(
		attribute.Bool("job.success", result.Success),
		attribute.Int("job.pages", result.Pages),
		attribute.Int("job.qr_codes_registered", result.QRCodesRegistered),
	)

	ctx := context.WithoutCancel(r.ctx)
	r.o.metrics.RecordJob(ctx, result, r.job.Reprint, time.Since(r.started))
	if r.o.history != nil {
		rec := r.job.Record()
		if err := r.o.history.Save(ctx, &rec); err != nil {
			r.logger.Warn("failed to record label job history", zap.Error(err))
		}
	}
	if result.Success {
		r.logger.Info("label job completed",
			zap.Int("items_printed", result.ItemsPrinted),
			zap.Int("pages", result.Pages),
			zap.Duration("duration", time.Since(r.started)))
	} else {
		r.logger.Info("label job finished without printing",
			zap.String("kind", result.Kind.String()),
			zap.String("message", result.Message()))
	}
}

func deliveryDetail(err error) string {
	if errors.Is(err, printing.ErrUserCancelled) {
		return ""
	}
	return err.Error()
}
