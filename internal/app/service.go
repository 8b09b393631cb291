// Package service provides the core business service that implements the
// dependencies required by the HTTP API: risk queries, counterfactual
// simulation, intervention search, and the personalization trigger.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	jobqueue "github.com/okian/aura/internal/adapters/mq/queue"
	workerpool "github.com/okian/aura/internal/adapters/mq/worker"
	"github.com/okian/aura/internal/adapters/persistence"
	"github.com/okian/aura/internal/adapters/registry"
	"github.com/okian/aura/internal/adapters/repository"
	"github.com/okian/aura/internal/domain/adapter"
	"github.com/okian/aura/internal/domain/encoder"
	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/intervene"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/simulate"
	"github.com/okian/aura/pkg/logger"
	"github.com/okian/aura/pkg/metrics"
)

// Defaults for risk reporting.
const (
	// neutralScore is returned when a user has no history yet.
	neutralScore = 0.5

	// confidenceSaturation is the history length at which the risk-query
	// confidence reaches 1.
	confidenceSaturation = 30

	// minRefitRecords gates background refits; shorter histories would be
	// personalization no-ops anyway.
	minRefitRecords = 2
)

// Service implements the API dependencies for the vulnerability system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	base      *encoder.Encoder
	adapters  *registry.Registry
	simulator *simulate.Simulator
	optimizer *intervene.Optimizer
	queue     jobqueue.Queue
	pool      *workerpool.Pool
	snapshots *persistence.SnapshotStore
	scheduler *cron.Cron

	// Configuration
	hiddenDim     int
	latentDim     int
	dropoutRate   float64
	encoderSeed   int64
	rollouts      int
	simWindow     int
	riskWindow    int
	epochs        int
	learningRate  float64
	workerCount   int
	queueSize     int
	shardCount    int
	snapshotPath  string
	refitSchedule string

	// State
	started    bool
	cancelJobs context.CancelFunc

	// Logging
	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEncoderDims sets the shared encoder's hidden and latent dimensions.
func WithEncoderDims(hidden, latent int) Option {
	return func(s *Service) {
		if hidden > 0 && latent > 0 {
			s.hiddenDim = hidden
			s.latentDim = latent
		}
	}
}

// WithEncoderSeed fixes shared weight initialization.
func WithEncoderSeed(seed int64) Option {
	return func(s *Service) { s.encoderSeed = seed }
}

// WithDropoutRate sets the stochastic-rollout dropout rate.
func WithDropoutRate(rate float64) Option {
	return func(s *Service) {
		if rate >= 0 && rate < 1 {
			s.dropoutRate = rate
		}
	}
}

// WithRollouts sets the stochastic passes per simulation.
func WithRollouts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rollouts = n
		}
	}
}

// WithWindows sets the simulation forward window and the risk-query window.
func WithWindows(simulation, risk int) Option {
	return func(s *Service) {
		if simulation > 0 {
			s.simWindow = simulation
		}
		if risk > 0 {
			s.riskWindow = risk
		}
	}
}

// WithTraining sets personalization epochs and learning rate.
func WithTraining(epochs int, lr float64) Option {
	return func(s *Service) {
		if epochs > 0 {
			s.epochs = epochs
		}
		if lr > 0 {
			s.learningRate = lr
		}
	}
}

// WithWorkerCount sets the number of background personalization workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithQueueSize bounds the personalization job queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithShardCount configures store and registry sharding.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithSnapshotPath points weight snapshots at an on-disk directory; empty
// keeps them in memory.
func WithSnapshotPath(path string) Option {
	return func(s *Service) { s.snapshotPath = path }
}

// WithRefitSchedule enables periodic background refits (cron expression).
func WithRefitSchedule(spec string) Option {
	return func(s *Service) { s.refitSchedule = spec }
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		hiddenDim:    encoder.DefaultHiddenDim,
		latentDim:    encoder.DefaultLatentDim,
		dropoutRate:  0.1,
		encoderSeed:  1,
		rollouts:     simulate.DefaultRollouts,
		simWindow:    simulate.DefaultWindow,
		riskWindow:   7,
		epochs:       adapter.DefaultEpochs,
		learningRate: 1e-3,
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		shardCount:   8,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get()
	}

	s.log.Info(ctx, "starting vulnerability service...")

	snapOpts := []persistence.Option{persistence.WithInMemory()}
	if s.snapshotPath != "" {
		snapOpts = []persistence.Option{persistence.WithPath(s.snapshotPath)}
	}
	snapshots, err := persistence.Open(snapOpts...)
	if err != nil {
		return fmt.Errorf("start snapshots: %w", err)
	}
	s.snapshots = snapshots

	s.store = repository.NewMemoryStore(repository.WithShardCount(s.shardCount))
	s.restoreEncoder(ctx)
	s.adapters = registry.New(s.base,
		registry.WithShardCount(s.shardCount),
		registry.WithAdapterOptions(adapter.WithLearningRate(s.learningRate)),
		registry.WithLoader(func(ctx context.Context, userID string) (adapter.State, bool) {
			state, err := s.snapshots.LoadAdapter(ctx, userID)
			if err != nil {
				return adapter.State{}, false
			}
			return state, true
		}),
	)
	s.simulator = simulate.New(simulate.WithRollouts(s.rollouts))
	s.optimizer = intervene.New()

	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, s.adapters,
		workerpool.WithLogger(s.log.Named("worker")),
		workerpool.WithSnapshots(s.snapshots),
	)

	jobCtx, cancel := context.WithCancel(context.Background())
	s.cancelJobs = cancel
	s.pool.Start(jobCtx)

	if s.refitSchedule != "" {
		s.scheduler = cron.New()
		if _, err := s.scheduler.AddFunc(s.refitSchedule, func() {
			s.RefitAll(jobCtx)
		}); err != nil {
			cancel()
			return fmt.Errorf("invalid refit schedule %q: %w", s.refitSchedule, err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.log.Info(ctx, "vulnerability service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("hiddenDim", s.hiddenDim),
		logger.Int("latentDim", s.latentDim),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.log.Info(ctx, "stopping vulnerability service...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if q, ok := s.queue.(*jobqueue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.pool != nil {
		s.pool.Wait()
	}
	if s.cancelJobs != nil {
		s.cancelJobs()
	}
	if s.snapshots != nil {
		_ = s.snapshots.Close()
	}

	s.started = false
	s.log.Info(ctx, "vulnerability service stopped")
}

// restoreEncoder rebuilds the shared encoder from its persisted snapshot so
// that adapter snapshots taken before a restart stay compatible. A missing or
// dimension-mismatched snapshot yields a fresh encoder, persisted in its
// place.
func (s *Service) restoreEncoder(ctx context.Context) {
	state, err := s.snapshots.LoadEncoder(ctx)
	if err == nil &&
		state.InputDim == feature.Dim &&
		state.HiddenDim == s.hiddenDim &&
		state.LatentDim == s.latentDim {
		base, ferr := encoder.FromState(state, encoder.WithDropoutRate(s.dropoutRate))
		if ferr == nil {
			s.base = base
			return
		}
		s.log.Warn(ctx, "encoder snapshot rejected", logger.Error(ferr))
	}

	s.base = encoder.New(
		encoder.WithDims(feature.Dim, s.hiddenDim, s.latentDim),
		encoder.WithInitSeed(s.encoderSeed),
		encoder.WithDropoutRate(s.dropoutRate),
	)
	if err := s.snapshots.SaveEncoder(ctx, s.base.State()); err != nil {
		s.log.Warn(ctx, "encoder snapshot failed", logger.Error(err))
	}
}

// RefitAll schedules a background fit for every user with enough history to
// make one worthwhile. The cron scheduler calls it on the configured
// schedule; hosts may also trigger it directly.
func (s *Service) RefitAll(ctx context.Context) {
	for _, userID := range s.store.UserIDs(ctx) {
		records, err := s.store.Records(ctx, userID)
		if err != nil || len(records) < minRefitRecords {
			continue
		}
		s.queue.Enqueue(ctx, model.PersonalizeJob{
			JobID:  uuid.NewString(),
			UserID: userID,
			Epochs: s.epochs,
		})
	}
}

// CreateUser registers a new profile.
func (s *Service) CreateUser(ctx context.Context, profile model.UserProfile) (model.UserProfile, error) {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

// User returns a stored profile.
func (s *Service) User(ctx context.Context, userID string) (model.UserProfile, error) {
	return s.store.Profile(ctx, userID)
}

// SubmitRecord validates, normalizes, and stores one daily record.
func (s *Service) SubmitRecord(ctx context.Context, userID string, record model.DailyRecord) (feature.IngestResult, error) {
	if err := record.Validate(); err != nil {
		return feature.IngestResult{}, err
	}
	if _, err := s.store.AppendRecord(ctx, userID, record); err != nil {
		return feature.IngestResult{}, err
	}
	result := feature.Ingest(record, userID)
	metrics.RecordIngestWarnings(len(result.Warnings))
	return result, nil
}

// Vulnerability answers the risk query: the adapter's event probability at
// the most recent step over the risk window, with confidence growing with
// history length. A user without records gets a neutral score with zero
// confidence.
func (s *Service) Vulnerability(ctx context.Context, userID string) (model.VulnerabilityState, error) {
	if _, err := s.store.Profile(ctx, userID); err != nil {
		return model.VulnerabilityState{}, err
	}
	records, err := s.store.Records(ctx, userID)
	if err != nil {
		return model.VulnerabilityState{}, err
	}

	state := model.VulnerabilityState{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if len(records) == 0 {
		state.VulnerabilityScore = neutralScore
		state.Confidence = 0
		return state, nil
	}

	recent := records
	if len(recent) > s.riskWindow {
		recent = recent[len(recent)-s.riskWindow:]
	}

	start := time.Now()
	a := s.adapters.GetOrCreate(ctx, userID)
	_, probs, err := a.Trajectory(feature.Matrix(recent))
	if err != nil {
		return model.VulnerabilityState{}, err
	}
	metrics.RecordInference(time.Since(start).Seconds())

	state.VulnerabilityScore = probs[len(probs)-1]
	confidence := float64(len(records)) / confidenceSaturation
	if confidence > 1 {
		confidence = 1
	}
	state.Confidence = confidence
	return state, nil
}

// Simulate runs a counterfactual for one user using their adapter.
func (s *Service) Simulate(
	ctx context.Context,
	userID string,
	baseline []model.DailyRecord,
	overrides map[string]float64,
) (model.SimulationResult, error) {
	if _, err := s.store.Profile(ctx, userID); err != nil {
		return model.SimulationResult{}, err
	}
	a := s.adapters.GetOrCreate(ctx, userID)
	result, err := s.simulator.Simulate(ctx, baseline, overrides, a, s.simWindow)
	if err != nil {
		return model.SimulationResult{}, err
	}
	metrics.RecordSimulation(s.rollouts)
	return result, nil
}

// Interventions returns the ranked candidate list for one user.
func (s *Service) Interventions(
	ctx context.Context,
	userID string,
	constraints intervene.Constraints,
) ([]model.InterventionCandidate, error) {
	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.Records(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics.RecordInterventionSearch()
	return s.optimizer.Optimize(profile, records, constraints), nil
}

// Personalize runs a synchronous fit on the user's stored history and
// reports the loss history. Insufficient history yields an empty history,
// not an error.
func (s *Service) Personalize(ctx context.Context, userID string, epochs int) (model.FitResult, error) {
	if _, err := s.store.Profile(ctx, userID); err != nil {
		return model.FitResult{}, err
	}
	records, err := s.store.Records(ctx, userID)
	if err != nil {
		return model.FitResult{}, err
	}
	if epochs <= 0 {
		epochs = s.epochs
	}

	start := time.Now()
	a := s.adapters.GetOrCreate(ctx, userID)
	result := a.FitPersonal(records, epochs)

	finalLoss := 0.0
	if n := len(result.LossHistory); n > 0 {
		finalLoss = result.LossHistory[n-1]
		if err := s.snapshots.SaveAdapter(ctx, a.State()); err != nil {
			s.log.Warn(ctx, "adapter snapshot failed",
				logger.String("userID", userID), logger.Error(err))
		}
	}
	metrics.RecordPersonalization(time.Since(start).Seconds(), finalLoss)
	return result, nil
}

// EnqueuePersonalize schedules a background fit. Returns false on
// backpressure.
func (s *Service) EnqueuePersonalize(ctx context.Context, userID string, epochs int) (string, bool) {
	if epochs <= 0 {
		epochs = s.epochs
	}
	job := model.PersonalizeJob{
		JobID:  uuid.NewString(),
		UserID: userID,
		Epochs: epochs,
	}
	if !s.queue.Enqueue(ctx, job) {
		return "", false
	}
	return job.JobID, true
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"rollouts":    s.rollouts,
	}
	if s.started {
		stats["users"] = s.store.Count(ctx)
		stats["adapters"] = s.adapters.Size()
		stats["queueLength"] = s.queue.Len(ctx)
	}
	return stats
}
