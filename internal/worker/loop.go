package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"adscope/internal/analysis"
	"adscope/internal/digest"
	"adscope/internal/domain"
	"adscope/internal/embedding"
	"adscope/internal/infra"
	"adscope/internal/media"
	"adscope/internal/webhook"
)

// LeaseName is the shared invocation lease key. Holding it marks one loop as
// live inside the throttle window; it is advisory only, the claim query is
// the correctness guard.
const LeaseName = "worker-loop"

// baselineSize is how many prior brand digests feed the anomaly baseline.
const baselineSize = 10

// defaultFrameRequests samples a video's narrative arc: the opening hook, an
// early beat, the midpoint and the closing quarter. Negative offsets follow
// the media.FrameRequest convention.
var defaultFrameRequests = []media.FrameRequest{
	{OffsetMs: 0, Label: "opening"},
	{OffsetMs: 1500, Label: "hook"},
	{OffsetMs: -0.5, Label: "midpoint"},
	{OffsetMs: -0.25, Label: "closing"},
}

// Collaborator contracts, narrowed to what the loop actually calls.

type mediaFetcher interface {
	Fetch(ctx context.Context, mediaURL string) ([]byte, error)
}

type frameExtractor interface {
	Keyframes(ctx context.Context, ws *media.Workspace, srcPath string, requests []media.FrameRequest) (*media.FrameSet, error)
	Audio(ctx context.Context, ws *media.Workspace, srcPath string) (string, error)
}

type analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

type transcriber interface {
	Configured() bool
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type embedder interface {
	Configured() bool
	Embed(ctx context.Context, text string) (domain.Embedding, error)
}

type leaseAcquirer interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event webhook.Event)
}

// Options wires the loop's collaborators and tuning knobs.
type Options struct {
	Queue       domain.JobQueue
	Lease       leaseAcquirer
	Fetcher     mediaFetcher
	Extractor   frameExtractor
	Gateway     analyzer
	Transcriber transcriber
	Embedder    embedder
	Webhooks    eventDispatcher
	Usage       domain.UsageRecorder

	BatchSize     int
	TimeBudget    time.Duration
	Throttle      time.Duration
	ZombieTimeout time.Duration
	PromptVersion string

	Logger infra.Logger
}

// Runner executes worker invocations. Jobs within a batch are processed one
// at a time in claim order; cross-invocation safety comes entirely from the
// store's atomic claim.
type Runner struct {
	queue       domain.JobQueue
	lease       leaseAcquirer
	fetcher     mediaFetcher
	extractor   frameExtractor
	gateway     analyzer
	transcriber transcriber
	embedder    embedder
	webhooks    eventDispatcher
	usage       domain.UsageRecorder

	batchSize     int
	timeBudget    time.Duration
	throttle      time.Duration
	zombieTimeout time.Duration
	promptVersion string

	logger infra.Logger
	now    func() time.Time
}

func NewRunner(opts Options) *Runner {
	r := &Runner{
		queue:         opts.Queue,
		lease:         opts.Lease,
		fetcher:       opts.Fetcher,
		extractor:     opts.Extractor,
		gateway:       opts.Gateway,
		transcriber:   opts.Transcriber,
		embedder:      opts.Embedder,
		webhooks:      opts.Webhooks,
		usage:         opts.Usage,
		batchSize:     opts.BatchSize,
		timeBudget:    opts.TimeBudget,
		throttle:      opts.Throttle,
		zombieTimeout: opts.ZombieTimeout,
		promptVersion: opts.PromptVersion,
		logger:        opts.Logger,
		now:           time.Now,
	}
	if r.batchSize <= 0 {
		r.batchSize = 5
	}
	if r.timeBudget <= 0 {
		r.timeBudget = 4 * time.Minute
	}
	if r.zombieTimeout <= 0 {
		r.zombieTimeout = time.Hour
	}
	return r
}

// JobDetail reports one job's outcome in the invocation summary.
type JobDetail struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// Summary is the invocation result returned to the trigger endpoint.
type Summary struct {
	Success        bool        `json:"success"`
	ProcessedCount int         `json:"processed_count"`
	Reclaimed      int         `json:"reclaimed,omitempty"`
	Details        []JobDetail `json:"details"`
}

// RunOnce executes one invocation: reclaim zombies, claim a batch, process
// jobs until the batch is exhausted or the time budget expires, requeueing
// whatever was claimed but not reached. Per-job failures are absorbed into
// the job's persisted digest and never abort the batch.
func (r *Runner) RunOnce(ctx context.Context) (*Summary, error) {
	if r.lease != nil && r.throttle > 0 {
		ok, err := r.lease.Acquire(ctx, LeaseName, r.throttle)
		if err != nil {
			return nil, fmt.Errorf("acquire worker lease: %w", err)
		}
		if !ok {
			return nil, domain.ErrThrottled
		}
	}

	reclaimed, err := r.queue.ReclaimStale(ctx, r.zombieTimeout)
	if err != nil {
		return nil, err
	}
	if reclaimed > 0 {
		r.logger.Info().Int("count", reclaimed).Msg("worker: reclaimed zombie jobs")
	}

	jobs, err := r.queue.ClaimBatch(ctx, r.batchSize)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Success: true, Reclaimed: reclaimed, Details: []JobDetail{}}
	if len(jobs) == 0 {
		return summary, nil
	}

	deadline := r.now().Add(r.timeBudget)
	for i, job := range jobs {
		if i > 0 && r.now().After(deadline) {
			r.requeueRemainder(ctx, jobs[i:], summary)
			break
		}
		detail := r.processJob(ctx, job)
		summary.Details = append(summary.Details, detail)
		if detail.Status != string(domain.JobStatusQueued) {
			summary.ProcessedCount++
		}
	}
	return summary, nil
}

func (r *Runner) requeueRemainder(ctx context.Context, remainder []domain.Job, summary *Summary) {
	ids := make([]string, len(remainder))
	for i, job := range remainder {
		ids[i] = job.ID
	}
	if err := r.queue.Requeue(ctx, ids); err != nil {
		// Stuck rows will be recovered by the next zombie reclaim pass.
		r.logger.Error().Err(err).Strs("ids", ids).Msg("worker: requeue after budget expiry failed")
	}
	for _, id := range ids {
		summary.Details = append(summary.Details, JobDetail{
			ID:     id,
			Status: string(domain.JobStatusQueued),
			Note:   "time budget exceeded",
		})
	}
	r.logger.Warn().Int("requeued", len(ids)).Msg("worker: time budget exceeded mid-batch")
}

// processJob runs the full pipeline for one claimed job. Every failure path
// persists a terminal status with the reason embedded in the stored digest;
// nothing escapes to the caller.
func (r *Runner) processJob(ctx context.Context, job domain.Job) JobDetail {
	start := r.now()
	logger := r.logger.With().Str("job_id", job.ID).Str("media_kind", string(job.MediaKind)).Logger()

	status, note := r.runPipeline(ctx, logger, job)

	if r.usage != nil {
		success := status == domain.JobStatusProcessed
		if err := r.usage.RecordJob(ctx, job.UserID, job.ID, "ad_analysis", success, r.now().Sub(start)); err != nil {
			logger.Warn().Err(err).Msg("worker: usage accounting failed")
		}
	}

	logger.Info().
		Str("status", string(status)).
		Dur("elapsed", r.now().Sub(start)).
		Msg("worker: job finished")
	return JobDetail{ID: job.ID, Status: string(status), Note: note}
}

func (r *Runner) runPipeline(ctx context.Context, logger infra.Logger, job domain.Job) (domain.JobStatus, string) {
	promptVersion := job.PromptVersion
	if promptVersion == "" {
		promptVersion = r.promptVersion
	}

	data, err := r.fetcher.Fetch(ctx, job.MediaURL)
	if err != nil {
		return r.fail(ctx, logger, job, domain.JobStatusError, "fetch", err)
	}
	mediaHash := media.Hash(data)

	// Dedup: an already processed job with the same bytes under the same
	// prompt version answers this one without a model call.
	if dup, err := r.queue.FindProcessedDuplicate(ctx, mediaHash, promptVersion, job.ID); err == nil && dup != nil {
		return r.reuseDuplicate(ctx, logger, job, dup, mediaHash)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn().Err(err).Msg("worker: dedup lookup failed, analyzing fresh")
	}

	inputs, transcript, cleanup, err := r.buildInputs(ctx, logger, job, data)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return r.fail(ctx, logger, job, domain.JobStatusError, "extract", err)
	}

	result, err := r.gateway.Analyze(ctx, analysis.Request{
		Inputs:        inputs,
		PromptVersion: promptVersion,
		Tier:          analysis.TierStandard,
		Transcript:    transcript,
	})
	if err != nil {
		return r.fail(ctx, logger, job, domain.JobStatusError, "analyze", err)
	}

	d, err := digest.Normalize(result.Raw)
	if err != nil {
		return r.fail(ctx, logger, job, domain.JobStatusNeedsReview, "normalize", err)
	}
	if transcript != "" && d.Extraction.Transcript == "" {
		d.Extraction.Transcript = transcript
	}
	digest.Finalize(d, promptVersion, result.Model)
	d.Meta.CacheHit = result.CacheHit

	status := domain.JobStatusProcessed
	note := ""
	if errs := digest.Validate(d); len(errs) > 0 {
		d.Meta.ValidationErrors = errs
		status = domain.JobStatusNeedsReview
		note = "digest failed validation"
		logger.Warn().Strs("validation_errors", errs).Msg("worker: digest failed validation")
	} else {
		r.detectAnomaly(ctx, logger, job, d)
	}

	payload, err := digest.Marshal(d)
	if err != nil {
		return r.fail(ctx, logger, job, domain.JobStatusError, "persist", err)
	}
	if err := r.persist(ctx, logger, job, status, mediaHash, d.Classification.BrandGuess, payload); err != nil {
		return domain.JobStatusError, "persistence failed"
	}

	if status == domain.JobStatusProcessed {
		r.dispatchEvents(ctx, job, d, payload)
	}
	return status, note
}

// buildInputs turns raw media bytes into model inputs. Images pass straight
// through; videos land in a scoped workspace for keyframe and audio
// extraction. The returned cleanup releases the workspace and must run on
// every exit path.
func (r *Runner) buildInputs(ctx context.Context, logger infra.Logger, job domain.Job, data []byte) ([]analysis.Input, string, func(), error) {
	if job.MediaKind != domain.MediaKindVideo {
		return []analysis.Input{{Data: data, MimeType: http.DetectContentType(data), Label: "image"}}, "", nil, nil
	}

	ws, err := media.NewWorkspace(job.ID)
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := ws.Cleanup

	srcPath, err := ws.Write("source.mp4", data)
	if err != nil {
		return nil, "", cleanup, err
	}

	frames, err := r.extractor.Keyframes(ctx, ws, srcPath, defaultFrameRequests)
	if err != nil {
		return nil, "", cleanup, err
	}

	inputs := make([]analysis.Input, 0, len(frames.Frames))
	for _, frame := range frames.Frames {
		frameData, err := os.ReadFile(frame.Path)
		if err != nil {
			logger.Warn().Err(err).Str("label", frame.Label).Msg("worker: keyframe unreadable, skipping")
			continue
		}
		inputs = append(inputs, analysis.Input{Data: frameData, MimeType: "image/jpeg", Label: frame.Label})
	}
	if len(inputs) == 0 {
		return nil, "", cleanup, domain.ErrNoFrames
	}

	transcript := r.transcribe(ctx, logger, ws, srcPath)
	return inputs, transcript, cleanup, nil
}

// transcribe extracts the audio track and turns it into text. Every failure
// here is non-fatal: the job proceeds without a transcript.
func (r *Runner) transcribe(ctx context.Context, logger infra.Logger, ws *media.Workspace, srcPath string) string {
	if r.transcriber == nil || !r.transcriber.Configured() {
		return ""
	}
	audioPath, err := r.extractor.Audio(ctx, ws, srcPath)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: audio extraction failed, continuing without transcript")
		return ""
	}
	text, err := r.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: transcription failed, continuing without transcript")
		return ""
	}
	return text
}

// reuseDuplicate copies the duplicate's digest onto the current job. The
// analysis content is reused verbatim; only meta provenance is annotated.
func (r *Runner) reuseDuplicate(ctx context.Context, logger infra.Logger, job domain.Job, dup *domain.Job, mediaHash string) (domain.JobStatus, string) {
	payload := dup.Digest
	brand := dup.Brand
	if d, err := digest.Normalize(dup.Digest); err == nil {
		d.Meta.DedupOf = dup.ID
		if marshaled, err := digest.Marshal(d); err == nil {
			payload = marshaled
		}
		if brand == "" {
			brand = d.Classification.BrandGuess
		}
	}

	if err := r.persist(ctx, logger, job, domain.JobStatusProcessed, mediaHash, brand, payload); err != nil {
		return domain.JobStatusError, "persistence failed"
	}
	logger.Info().Str("dedup_of", dup.ID).Msg("worker: reused digest from duplicate media")

	if r.webhooks != nil {
		r.webhooks.Dispatch(ctx, webhook.Event{
			Type:   domain.EventAnalysisComplete,
			AdID:   job.ID,
			Brand:  brand,
			Digest: payload,
		})
	}
	return domain.JobStatusProcessed, "deduplicated"
}

// detectAnomaly embeds the digest's salient text and scores it against the
// brand's recent baseline. Failures degrade to "no anomaly verdict"; they
// never fail the job.
func (r *Runner) detectAnomaly(ctx context.Context, logger infra.Logger, job domain.Job, d *digest.Digest) {
	if r.embedder == nil || !r.embedder.Configured() {
		return
	}
	brand := d.Classification.BrandGuess
	if brand == "" {
		return
	}

	text := embedding.SalientText(d)
	if text == "" {
		return
	}
	current, err := r.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: embedding failed, skipping anomaly detection")
		return
	}

	prior, err := r.queue.RecentBrandDigests(ctx, brand, job.ID, baselineSize)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: baseline lookup failed, skipping anomaly detection")
		return
	}
	baseline := make([]domain.Embedding, 0, len(prior))
	for _, p := range prior {
		pd, err := digest.Normalize(p.Digest)
		if err != nil {
			continue
		}
		pt := embedding.SalientText(pd)
		if pt == "" {
			continue
		}
		vec, err := r.embedder.Embed(ctx, pt)
		if err != nil {
			logger.Warn().Err(err).Str("baseline_job_id", p.ID).Msg("worker: baseline embedding failed, skipping entry")
			continue
		}
		baseline = append(baseline, vec)
	}

	decision := embedding.Detect(current, baseline)
	d.Meta.Anomaly = &decision
	if decision.IsAnomaly {
		logger.Info().
			Float64("score", decision.Score).
			Str("severity", decision.Severity).
			Str("brand", brand).
			Msg("worker: strategic anomaly detected")
	}
}

func (r *Runner) dispatchEvents(ctx context.Context, job domain.Job, d *digest.Digest, payload json.RawMessage) {
	if r.webhooks == nil {
		return
	}
	brand := d.Classification.BrandGuess
	r.webhooks.Dispatch(ctx, webhook.Event{
		Type:   domain.EventAnalysisComplete,
		AdID:   job.ID,
		Brand:  brand,
		Digest: payload,
	})
	if d.Meta.Anomaly != nil && d.Meta.Anomaly.IsAnomaly {
		r.webhooks.Dispatch(ctx, webhook.Event{
			Type:          domain.EventStrategicAnomaly,
			AdID:          job.ID,
			Brand:         brand,
			IsAnomaly:     true,
			AnomalyReason: d.Meta.Anomaly.Reason,
			Digest:        payload,
		})
	}
}

// fail converts a pipeline error into a persisted terminal state carrying the
// failure reason inside the stored digest.
func (r *Runner) fail(ctx context.Context, logger infra.Logger, job domain.Job, status domain.JobStatus, stage string, cause error) (domain.JobStatus, string) {
	logger.Error().Err(cause).Str("stage", stage).Msg("worker: job failed")

	promptVersion := job.PromptVersion
	if promptVersion == "" {
		promptVersion = r.promptVersion
	}
	payload, err := digest.Marshal(digest.ErrorDigest(promptVersion, stage, cause))
	if err != nil {
		payload = json.RawMessage(`{}`)
	}
	if err := r.queue.MarkFailed(ctx, job.ID, status, payload); err != nil {
		logger.Error().Err(err).Msg("worker: failed to persist failure state")
	}
	return status, fmt.Sprintf("%s: %v", stage, cause)
}

// persist finalizes the job row. Persistence errors degrade the job to the
// error state best-effort; the batch continues regardless.
func (r *Runner) persist(ctx context.Context, logger infra.Logger, job domain.Job, status domain.JobStatus, mediaHash, brand string, payload json.RawMessage) error {
	var err error
	if status == domain.JobStatusProcessed {
		err = r.queue.MarkProcessed(ctx, job.ID, mediaHash, brand, payload)
	} else {
		err = r.queue.MarkFailed(ctx, job.ID, status, payload)
	}
	if err != nil {
		logger.Error().Err(err).Str("status", string(status)).Msg("worker: persisting job result failed")
		if markErr := r.queue.MarkFailed(ctx, job.ID, domain.JobStatusError, json.RawMessage(`{}`)); markErr != nil {
			logger.Error().Err(markErr).Msg("worker: marking job errored also failed")
		}
	}
	return err
}
