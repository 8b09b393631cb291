// Package adapter implements the per-individual adaptation layer: a linear
// remap of the shared encoder's latent space plus a personal decision
// threshold, trained by gradient descent while the shared weights stay
// untouched.
//
// The shared encoder is never mutated and carries no trainable flag; the
// update set is exactly {remap, bias, personal threshold}, so concurrent
// personalization of different users cannot race on shared state. The
// gradient is closed-form. With frozen latents z_t, head (w, c), personal
// threshold th and temperature tau:
//
//	a_t = A z_t + b
//	v_t = sigmoid(w . a_t + c)
//	p_t = sigmoid((v_t - th) / tau)
//	L   = mean_t BCE(p_t, y_t)
//
//	dL/du_t  = (p_t - y_t) / T          with u_t = (v_t - th) / tau
//	dL/dth   = sum_t dL/du_t * (-1/tau)
//	dL/ds_t  = dL/du_t * v_t(1 - v_t) / tau   with s_t = w . a_t + c
//	dL/dA_ij = sum_t dL/ds_t * w_i * z_tj
//	dL/db_i  = sum_t dL/ds_t * w_i
package adapter

import (
	"math"
	"math/rand"
	"sync"

	"github.com/okian/aura/internal/domain/encoder"
	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/model"
)

// Training defaults; epochs and learning rate are caller-tunable.
const (
	DefaultEpochs       = 50
	defaultLearningRate = 1e-3

	// minFitRecords is the smallest history that supports a fit; fewer
	// records is a defined no-op, not an error.
	minFitRecords = 2

	// probEpsilon keeps the BCE logarithms finite.
	probEpsilon = 1e-7
)

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithLearningRate sets the gradient-descent step size.
func WithLearningRate(lr float64) Option {
	return func(a *Adapter) {
		if lr > 0 {
			a.lr = lr
		}
	}
}

// Adapter wraps one shared encoder with per-user parameters. A fresh
// adapter (identity remap, zero bias, copied threshold) is behaviorally
// identical to the shared encoder.
type Adapter struct {
	mu   sync.RWMutex // serializes personalization against inference
	base *encoder.Encoder

	userID    string
	remap     [][]float64 // latent x latent, identity init
	bias      []float64
	threshold float64 // personal copy, diverges from the shared value
	lr        float64
}

// New constructs an unpersonalized adapter for one user.
func New(base *encoder.Encoder, userID string, opts ...Option) *Adapter {
	dim := base.LatentDim()
	remap := make([][]float64, dim)
	for i := range remap {
		remap[i] = make([]float64, dim)
		remap[i][i] = 1.0
	}
	a := &Adapter{
		base:      base,
		userID:    userID,
		remap:     remap,
		bias:      make([]float64, dim),
		threshold: base.Threshold(),
		lr:        defaultLearningRate,
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// UserID returns the owning individual's identity.
func (a *Adapter) UserID() string { return a.userID }

// Threshold returns the current personal decision threshold.
func (a *Adapter) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.threshold
}

// Trajectory forwards one sequence through the shared recurrence, applies
// the personal remap before the vulnerability head, and uses the personal
// threshold for the crossing probability.
func (a *Adapter) Trajectory(x [][]float64) (vuln, probs []float64, err error) {
	return a.trajectory(x, nil)
}

// StochasticTrajectory is Trajectory with the encoder's latent dropout
// driven by rng; it is the variance source for Monte-Carlo rollouts.
func (a *Adapter) StochasticTrajectory(x [][]float64, rng *rand.Rand) (vuln, probs []float64, err error) {
	return a.trajectory(x, rng)
}

func (a *Adapter) trajectory(x [][]float64, rng *rand.Rand) (vuln, probs []float64, err error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	latents, err := a.base.Latents(x, rng)
	if err != nil {
		return nil, nil, err
	}
	vuln = make([]float64, len(latents))
	probs = make([]float64, len(latents))
	for t, z := range latents {
		adapted := a.apply(z)
		vuln[t] = a.base.Vulnerability(adapted)
		probs[t] = a.base.CrossingProb(vuln[t], a.threshold)
	}
	return vuln, probs, nil
}

// apply computes A z + b. Caller holds at least a read lock.
func (a *Adapter) apply(z []float64) []float64 {
	out := make([]float64, len(a.remap))
	for i, row := range a.remap {
		s := a.bias[i]
		for j, w := range row {
			s += w * z[j]
		}
		out[i] = s
	}
	return out
}

// FitPersonal trains the remap and personal threshold on one user's ordered
// records for the given number of epochs. Fewer than two records returns an
// empty loss history with no parameter change. Personalization is
// best-effort and never fails for valid non-empty input.
func (a *Adapter) FitPersonal(records []model.DailyRecord, epochs int) model.FitResult {
	if len(records) < minFitRecords {
		return model.FitResult{LossHistory: []float64{}}
	}
	if epochs <= 0 {
		epochs = DefaultEpochs
	}

	x := feature.Matrix(records)
	labels := make([]float64, len(records))
	for i, r := range records {
		labels[i] = r.Label()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The shared weights are frozen by construction, so the latent
	// trajectory is constant across epochs and computed once.
	latents, err := a.base.Latents(x, nil)
	if err != nil {
		return model.FitResult{LossHistory: []float64{}}
	}

	w, c := a.base.Head()
	tau := a.base.Temperature()
	dim := a.base.LatentDim()
	steps := float64(len(latents))

	history := make([]float64, 0, epochs)
	gradA := make([][]float64, dim)
	for i := range gradA {
		gradA[i] = make([]float64, dim)
	}
	gradB := make([]float64, dim)

	for epoch := 0; epoch < epochs; epoch++ {
		for i := range gradA {
			for j := range gradA[i] {
				gradA[i][j] = 0
			}
			gradB[i] = 0
		}
		var gradTh, loss float64

		for t, z := range latents {
			adapted := a.apply(z)
			s := c
			for i := range w {
				s += w[i] * adapted[i]
			}
			v := sigmoid(s)
			p := sigmoid((v - a.threshold) / tau)

			pc := math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
			y := labels[t]
			loss -= (y*math.Log(pc) + (1-y)*math.Log(1-pc)) / steps

			gu := (p - y) / steps
			gradTh += gu * (-1.0 / tau)
			gs := gu * v * (1 - v) / tau
			for i := range w {
				gw := gs * w[i]
				for j := range z {
					gradA[i][j] += gw * z[j]
				}
				gradB[i] += gw
			}
		}

		for i := range a.remap {
			for j := range a.remap[i] {
				a.remap[i][j] -= a.lr * gradA[i][j]
			}
			a.bias[i] -= a.lr * gradB[i]
		}
		a.threshold -= a.lr * gradTh

		history = append(history, loss)
	}

	return model.FitResult{LossHistory: history}
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }
