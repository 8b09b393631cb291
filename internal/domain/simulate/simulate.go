// Package simulate implements the counterfactual engine: it perturbs a
// historical window of records, rolls a model forward under repeated
// stochastic sampling, and aggregates the rollouts into a risk estimate
// with an uncertainty band.
package simulate

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/model"
)

// Default simulation configuration constants.
const (
	DefaultRollouts = 20
	DefaultWindow   = 7

	// heuristicSeed fixes the no-model fallback; its output must be
	// bit-identical for identical inputs.
	heuristicSeed  = 42
	heuristicSigma = 0.05
)

// heuristicWeights is the fixed per-field weighting of the no-model
// fallback, truncated to the feature count and renormalized.
var heuristicWeights = []float64{0.3, 0.2, 0.15, 0.1, 0.1, 0.05, 0.05, 0.05}

// Model is the forward-pass capability a simulation consumes. The
// stochastic pass takes an explicit noise source, so there is no mode flag
// to restore and a failed rollout cannot leave a model stochastic.
type Model interface {
	Trajectory(x [][]float64) (vuln, probs []float64, err error)
	StochasticTrajectory(x [][]float64, rng *rand.Rand) (vuln, probs []float64, err error)
}

// Option applies a configuration option to the Simulator.
type Option func(*Simulator)

// WithRollouts sets the number of stochastic forward passes.
func WithRollouts(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.rollouts = n
		}
	}
}

// WithSeedSource overrides the rollout seed source; tests use this to make
// model-path runs reproducible.
func WithSeedSource(src func() int64) Option {
	return func(s *Simulator) {
		if src != nil {
			s.seedSource = src
		}
	}
}

// Simulator runs counterfactual what-if scenarios.
type Simulator struct {
	rollouts   int
	seedSource func() int64
}

// New constructs a Simulator with default configuration.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		rollouts:   DefaultRollouts,
		seedSource: time.Now().UnixNano,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Simulate applies overrides uniformly to every baseline record, selects the
// most recent window records, and produces the aggregated rollout result.
// A nil m falls back to the deterministic seeded heuristic, so simulation is
// available before any personalization has occurred.
func (s *Simulator) Simulate(
	ctx context.Context,
	baseline []model.DailyRecord,
	overrides map[string]float64,
	m Model,
	window int,
) (model.SimulationResult, error) {
	if len(baseline) == 0 {
		return model.SimulationResult{}, ErrNoRecords
	}
	if window <= 0 {
		window = DefaultWindow
	}

	modified := make([]model.DailyRecord, len(baseline))
	for i, r := range baseline {
		modified[i] = feature.Apply(r, overrides)
	}
	if len(modified) > window {
		modified = modified[len(modified)-window:]
	}
	features := feature.Matrix(modified)

	var (
		trajectories [][]float64
		err          error
	)
	if m != nil {
		trajectories, err = s.modelRollout(ctx, m, features)
	} else {
		trajectories = s.heuristicRollout(features)
	}
	if err != nil {
		return model.SimulationResult{}, err
	}

	mean := meanTrajectory(trajectories)
	risk := clip01(mean[len(mean)-1])
	return model.SimulationResult{
		Trajectory:   mean,
		MigraineRisk: risk,
		Uncertainty:  ComputeUncertainty(trajectories),
	}, nil
}

// modelRollout runs the configured number of stochastic passes in parallel.
// Each rollout owns its RNG; variance comes from the model's own
// regularizing noise and is expected to differ run to run.
func (s *Simulator) modelRollout(ctx context.Context, m Model, features [][]float64) ([][]float64, error) {
	trajectories := make([][]float64, s.rollouts)
	seeds := make([]int64, s.rollouts)
	for i := range seeds {
		seeds[i] = s.seedSource() + int64(i)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.rollouts; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i])) //nolint:gosec // rollout noise, not security-sensitive
			_, probs, err := m.StochasticTrajectory(features, rng)
			if err != nil {
				return err
			}
			mu.Lock()
			trajectories[i] = probs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trajectories, nil
}

// heuristicRollout is the closed-form fallback: a fixed weighted sum of the
// normalized feature matrix broadcast across rollouts with small seeded
// Gaussian jitter. Exactly reproducible for identical inputs.
func (s *Simulator) heuristicRollout(features [][]float64) [][]float64 {
	n := len(features[0])
	w := make([]float64, n)
	var sum float64
	for i := 0; i < n && i < len(heuristicWeights); i++ {
		w[i] = heuristicWeights[i]
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}

	var base float64
	for _, row := range features {
		var dot float64
		for i, v := range row {
			dot += v * w[i]
		}
		base += dot
	}
	base /= float64(len(features))

	rng := rand.New(rand.NewSource(heuristicSeed)) //nolint:gosec // fixed seed is the determinism contract
	trajectories := make([][]float64, s.rollouts)
	for i := range trajectories {
		traj := make([]float64, len(features))
		for t := range traj {
			traj[t] = clip01(base + rng.NormFloat64()*heuristicSigma)
		}
		trajectories[i] = traj
	}
	return trajectories
}

// ComputeUncertainty returns the mean, across time steps, of the standard
// deviation across rollouts at each step. One rollout yields 0.
func ComputeUncertainty(trajectories [][]float64) float64 {
	if len(trajectories) == 0 || len(trajectories[0]) == 0 {
		return 0
	}
	steps := len(trajectories[0])
	var total float64
	for t := 0; t < steps; t++ {
		var mean float64
		for _, traj := range trajectories {
			mean += traj[t]
		}
		mean /= float64(len(trajectories))

		var variance float64
		for _, traj := range trajectories {
			d := traj[t] - mean
			variance += d * d
		}
		variance /= float64(len(trajectories))
		total += math.Sqrt(variance)
	}
	return total / float64(steps)
}

func meanTrajectory(trajectories [][]float64) []float64 {
	steps := len(trajectories[0])
	mean := make([]float64, steps)
	for _, traj := range trajectories {
		for t, v := range traj {
			mean[t] += v
		}
	}
	for t := range mean {
		mean[t] /= float64(len(trajectories))
	}
	return mean
}

func clip01(v float64) float64 { return math.Min(math.Max(v, 0), 1) }
