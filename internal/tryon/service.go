package tryon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/credits"
	"server/internal/domain"
	"server/internal/inference"
	"server/internal/materialize"
	"server/internal/metrics"
	"server/internal/progress"
	"server/internal/scratch"
)

// Inferencer is the inference backend contract. The concrete client is
// constructed and injected, never reached through ambient state, so tests
// swap in a fake without touching anything process-wide.
type Inferencer interface {
	Generate(ctx context.Context, garment, person inference.Input) (*inference.Outcome, error)
}

// Materializer converts a resolved result URL into a durable data URI.
type Materializer interface {
	Materialize(ctx context.Context, resolvedURL string) (string, error)
}

// Upload is one user-supplied source image.
type Upload struct {
	Filename string
	MIME     string
	Data     []byte
}

// Options wire the orchestration service.
type Options struct {
	Credits      *credits.Gateway
	Inference    Inferencer
	Materializer Materializer
	Scratch      *scratch.Store
	Locker       Locker
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Stages       []progress.Stage
}

type jobState struct {
	mu     sync.Mutex
	job    domain.Job
	sim    *progress.Simulator
	result *domain.Result
	err    error
	done   chan struct{}
}

// Service runs the try-on pipeline: quota gate, scratch handles, inference,
// materialization, settlement. One Service instance serves all sessions;
// per-job state lives in an in-memory registry and is discarded when the
// owner starts a new job.
type Service struct {
	credits      *credits.Gateway
	inference    Inferencer
	materializer Materializer
	scratch      *scratch.Store
	locker       Locker
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	stages       []progress.Stage

	mu     sync.Mutex
	jobs   map[string]*jobState
	byUser map[string]string
}

func NewService(opts Options) *Service {
	locker := opts.Locker
	if locker == nil {
		locker = NewMemoryLocker()
	}
	stages := opts.Stages
	if len(stages) == 0 {
		stages = progress.DefaultStages()
	}
	return &Service{
		credits:      opts.Credits,
		inference:    opts.Inference,
		materializer: opts.Materializer,
		scratch:      opts.Scratch,
		locker:       locker,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		stages:       stages,
		jobs:         make(map[string]*jobState),
		byUser:       make(map[string]string),
	}
}

// Submit validates inputs, enforces the quota gate and starts the job. The
// quota check happens strictly before any network traffic to the inference
// backend; a zero balance means the backend is never contacted. The returned
// job ID is the handle for the progress and result endpoints.
func (s *Service) Submit(ctx context.Context, userID string, garment, person Upload) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthenticated
	}

	garmentInput := inference.Input{Name: "garment", MIME: garment.MIME, Data: garment.Data}
	personInput := inference.Input{Name: "person", MIME: person.MIME, Data: person.Data}
	if err := garmentInput.Validate(); err != nil {
		return "", err
	}
	if err := personInput.Validate(); err != nil {
		return "", err
	}

	balance, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read balance: %w", err)
	}
	if !balance.CanGenerate() {
		return "", domain.ErrQuotaExhausted
	}

	releaseLock, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	garmentHandle, err := s.scratch.Put(ctx, jobID, "garment.bin", garment.Data)
	if err != nil {
		releaseLock()
		return "", fmt.Errorf("stage garment input: %w", err)
	}
	personHandle, err := s.scratch.Put(ctx, jobID, "person.bin", person.Data)
	if err != nil {
		_ = garmentHandle.Release()
		releaseLock()
		return "", fmt.Errorf("stage person input: %w", err)
	}

	st := &jobState{
		job: domain.Job{
			ID:        jobID,
			UserID:    userID,
			Status:    domain.JobStatusPending,
			StartedAt: time.Now(),
		},
		sim:  progress.NewSimulator(s.stages),
		done: make(chan struct{}),
	}
	s.register(userID, st)
	st.sim.Start()
	if s.metrics != nil {
		s.metrics.JobsStarted.Inc()
	}

	// The HTTP request that submitted the job returns immediately; the job
	// itself must not die with it.
	go s.run(context.WithoutCancel(ctx), st, garmentHandle, personHandle, releaseLock)

	return jobID, nil
}

func (s *Service) run(ctx context.Context, st *jobState, garmentHandle, personHandle *scratch.Handle, releaseLock func()) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("try-on job panicked: %v", r)
			s.logger.Error().Str("job_id", st.job.ID).Msgf("tryon: %v", panicErr)
			s.finish(st, nil, panicErr)
		}
		// Cleanup symmetry: input handles, scratch directory, the in-flight
		// lock and the simulator are released on success, parse failure and
		// panic paths alike.
		_ = garmentHandle.Release()
		_ = personHandle.Release()
		_ = s.scratch.ReleaseJob(st.job.ID)
		releaseLock()
		st.sim.Reset()

		s.settle(ctx, st, time.Since(started))
	}()

	garmentBytes, err := garmentHandle.Bytes()
	if err != nil {
		s.finish(st, nil, fmt.Errorf("read garment input: %w", err))
		return
	}
	personBytes, err := personHandle.Bytes()
	if err != nil {
		s.finish(st, nil, fmt.Errorf("read person input: %w", err))
		return
	}

	s.setStatus(st, domain.JobStatusSubmitted)

	inferenceStarted := time.Now()
	outcome, err := s.inference.Generate(ctx,
		inference.Input{Name: "garment", Data: garmentBytes},
		inference.Input{Name: "person", Data: personBytes},
	)
	if s.metrics != nil {
		s.metrics.InferenceLatency.Observe(time.Since(inferenceStarted).Seconds())
	}
	if err != nil {
		s.finish(st, nil, err)
		return
	}

	primary, err := s.materializer.Materialize(ctx, outcome.ResolvedURL)
	if err != nil {
		s.finish(st, nil, err)
		return
	}

	result := &domain.Result{
		PrimaryImage: primary,
		LowQuality:   outcome.LowQuality,
	}
	result.ComparisonImage = s.comparison(ctx, outcome, personBytes, primary)

	s.finish(st, result, nil)
}

// comparison materializes the backend's composite when one was produced, and
// otherwise builds it locally. Either way a comparison failure never fails
// the primary image.
func (s *Service) comparison(ctx context.Context, outcome *inference.Outcome, personBytes []byte, primary string) string {
	if outcome.ComparisonURL != "" {
		uri, err := s.materializer.Materialize(ctx, outcome.ComparisonURL)
		if err == nil {
			return uri
		}
		s.logger.Warn().Err(err).Msg("tryon: comparison materialization failed, composing locally")
	}
	_, primaryBytes, err := materialize.DecodeDataURI(primary)
	if err != nil {
		return ""
	}
	composite, err := materialize.SideBySide(personBytes, primaryBytes)
	if err != nil {
		s.logger.Warn().Err(err).Msg("tryon: local comparison composite failed")
		return ""
	}
	return materialize.DataURI(composite)
}

func (s *Service) settle(ctx context.Context, st *jobState, latency time.Duration) {
	st.mu.Lock()
	job := st.job
	jobErr := st.err
	st.mu.Unlock()

	kind := domain.FailureKind(jobErr)
	ev := credits.UsageEvent{
		UserID:    job.UserID,
		JobID:     job.ID,
		EventType: "tryon_generate",
		Success:   job.Status == domain.JobStatusSucceeded,
		// A downstream fetch failure happens after the model generated; the
		// decrement stands even though the user never saw the image.
		Billable:    job.Status == domain.JobStatusSucceeded || kind == "downstream_fetch",
		FailureKind: kind,
		Latency:     latency,
	}
	if err := s.credits.Settle(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("tryon: settlement failed")
	}
	if s.metrics != nil {
		status := string(job.Status)
		s.metrics.JobsCompleted.WithLabelValues(status, ev.FailureKind).Inc()
	}
}

func (s *Service) setStatus(st *jobState, status domain.JobStatus) {
	st.mu.Lock()
	if !st.job.Status.Terminal() {
		st.job.Status = status
	}
	st.mu.Unlock()
}

// finish applies the terminal transition once. The simulator is reset here,
// before any caller can observe the terminal status, so a finished job never
// keeps animating.
func (s *Service) finish(st *jobState, result *domain.Result, err error) {
	st.mu.Lock()
	if st.job.Status.Terminal() {
		st.mu.Unlock()
		return
	}
	if err != nil {
		st.job.Status = domain.JobStatusFailed
		st.err = err
	} else {
		st.job.Status = domain.JobStatusSucceeded
		st.result = result
	}
	st.mu.Unlock()

	st.sim.Reset()
	close(st.done)

	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", st.job.ID).Str("kind", domain.FailureKind(err)).Msg("tryon: job failed")
	} else {
		s.logger.Info().Str("job_id", st.job.ID).Bool("low_quality", result.LowQuality).Msg("tryon: job succeeded")
	}
}

func (s *Service) register(userID string, st *jobState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A fresh job discards the previous result for this user.
	if prev, ok := s.byUser[userID]; ok {
		delete(s.jobs, prev)
	}
	s.jobs[st.job.ID] = st
	s.byUser[userID] = st.job.ID
}

func (s *Service) lookup(jobID, userID string) (*jobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[jobID]
	if !ok || st.job.UserID != userID {
		return nil, domain.ErrJobNotFound
	}
	return st, nil
}

// Job returns the current lifecycle view of a job.
func (s *Service) Job(jobID, userID string) (domain.Job, error) {
	st, err := s.lookup(jobID, userID)
	if err != nil {
		return domain.Job{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.job, nil
}

// Progress returns the simulator snapshot for a job.
func (s *Service) Progress(jobID, userID string) (progress.Snapshot, error) {
	st, err := s.lookup(jobID, userID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return st.sim.Snapshot(), nil
}

// Result returns the materialized result once the job succeeded. A running
// job yields ErrResultNotReady; a failed one yields its classified error.
func (s *Service) Result(jobID, userID string) (*domain.Result, error) {
	st, err := s.lookup(jobID, userID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case !st.job.Status.Terminal():
		return nil, domain.ErrResultNotReady
	case st.err != nil:
		return nil, st.err
	default:
		return st.result, nil
	}
}

// Await blocks until the job reaches a terminal state or ctx expires.
func (s *Service) Await(ctx context.Context, jobID, userID string) (*domain.Result, error) {
	st, err := s.lookup(jobID, userID)
	if err != nil {
		return nil, err
	}
	select {
	case <-st.done:
		return s.Result(jobID, userID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abandon stops the client-side view of a job: the simulator is reset and
// the result is discarded. The remote computation cannot be canceled; this
// only stops waiting and stops updating.
func (s *Service) Abandon(jobID, userID string) error {
	st, err := s.lookup(jobID, userID)
	if err != nil {
		return err
	}
	st.sim.Reset()
	s.mu.Lock()
	delete(s.jobs, jobID)
	if s.byUser[userID] == jobID {
		delete(s.byUser, userID)
	}
	s.mu.Unlock()
	return nil
}
