// Package encoder implements the shared sequence encoder: a single-layer
// gated recurrent unit that maps a sequence of normalized feature vectors to
// a latent trajectory and a calibrated event-probability trajectory.
//
// The recurrence per step t:
//
//	h_t = GRU(x_t, h_{t-1})
//	z_t = tanh(P h_t + pb)                 latent state
//	v_t = sigmoid(w . z_t + c)             vulnerability in [0, 1]
//	p_t = sigmoid((v_t - threshold) / tau) event probability
//
// with tau clamped to a strictly positive floor. Weights are shared,
// read-mostly process state; forward passes are purely functional and safe
// to run concurrently.
package encoder

import (
	"fmt"
	"math"
	"math/rand"
)

// Default model dimensions and calibration constants.
const (
	DefaultInputDim  = 8
	DefaultHiddenDim = 32
	DefaultLatentDim = 16

	defaultThreshold   = 0.5
	defaultTemperature = 0.1
	defaultDropoutRate = 0.1
	defaultInitSeed    = 1

	// MinTemperature floors the crossing temperature to avoid division
	// blow-up when the learned value collapses toward zero.
	MinTemperature = 1e-3
)

// Option applies a configuration option to the Encoder.
type Option func(*Encoder)

// WithDims sets the input, hidden, and latent dimensions.
func WithDims(input, hidden, latent int) Option {
	return func(e *Encoder) {
		if input > 0 && hidden > 0 && latent > 0 {
			e.inputDim = input
			e.hiddenDim = hidden
			e.latentDim = latent
		}
	}
}

// WithInitSeed sets the weight-initialization seed.
func WithInitSeed(seed int64) Option {
	return func(e *Encoder) { e.initSeed = seed }
}

// WithDropoutRate sets the latent dropout rate used by stochastic passes.
func WithDropoutRate(rate float64) Option {
	return func(e *Encoder) {
		if rate >= 0 && rate < 1 {
			e.dropout = rate
		}
	}
}

// WithCalibration sets the shared crossing threshold and temperature.
func WithCalibration(threshold, temperature float64) Option {
	return func(e *Encoder) {
		e.threshold = threshold
		e.temperature = temperature
	}
}

// Encoder is the shared GRU sequence encoder. All fields are fixed after New;
// concurrent forward passes require no locking.
type Encoder struct {
	inputDim  int
	hiddenDim int
	latentDim int
	initSeed  int64
	dropout   float64

	// GRU gate weights. W* are hidden x input, U* hidden x hidden.
	wz, wr, wn [][]float64
	uz, ur, un [][]float64
	bz, br, bn []float64

	// Latent projection, latent x hidden.
	proj     [][]float64
	projBias []float64

	// Vulnerability head, latent -> scalar.
	head     []float64
	headBias float64

	// Shared crossing calibration.
	threshold   float64
	temperature float64
}

// New constructs an encoder with deterministically initialized weights.
func New(opts ...Option) *Encoder {
	e := &Encoder{
		inputDim:    DefaultInputDim,
		hiddenDim:   DefaultHiddenDim,
		latentDim:   DefaultLatentDim,
		initSeed:    defaultInitSeed,
		dropout:     defaultDropoutRate,
		threshold:   defaultThreshold,
		temperature: defaultTemperature,
	}

	// Apply all options
	for _, opt := range opts {
		opt(e)
	}

	rng := rand.New(rand.NewSource(e.initSeed)) //nolint:gosec // deterministic init, not security-sensitive
	e.wz = randMatrix(rng, e.hiddenDim, e.inputDim)
	e.wr = randMatrix(rng, e.hiddenDim, e.inputDim)
	e.wn = randMatrix(rng, e.hiddenDim, e.inputDim)
	e.uz = randMatrix(rng, e.hiddenDim, e.hiddenDim)
	e.ur = randMatrix(rng, e.hiddenDim, e.hiddenDim)
	e.un = randMatrix(rng, e.hiddenDim, e.hiddenDim)
	e.bz = make([]float64, e.hiddenDim)
	e.br = make([]float64, e.hiddenDim)
	e.bn = make([]float64, e.hiddenDim)
	e.proj = randMatrix(rng, e.latentDim, e.hiddenDim)
	e.projBias = make([]float64, e.latentDim)
	e.head = randVector(rng, e.latentDim)
	return e
}

// randMatrix draws rows x cols weights uniformly in +-1/sqrt(cols).
func randMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	scale := 1.0 / math.Sqrt(float64(cols))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * scale
		}
	}
	return m
}

func randVector(rng *rand.Rand, n int) []float64 {
	scale := 1.0 / math.Sqrt(float64(n))
	v := make([]float64, n)
	for i := range v {
		v[i] = (rng.Float64()*2 - 1) * scale
	}
	return v
}

// Dimension accessors used by the adapter layer.
func (e *Encoder) InputDim() int  { return e.inputDim }
func (e *Encoder) LatentDim() int { return e.latentDim }

// Threshold returns the shared crossing threshold.
func (e *Encoder) Threshold() float64 { return e.threshold }

// Temperature returns the shared crossing temperature, floored.
func (e *Encoder) Temperature() float64 {
	return math.Max(e.temperature, MinTemperature)
}

// Head exposes the vulnerability head weights for the adapter forward pass.
// Callers must not mutate the returned slice.
func (e *Encoder) Head() ([]float64, float64) { return e.head, e.headBias }

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// matVec computes m*x for m rows x len(x).
func matVec(m [][]float64, x []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var s float64
		for j, w := range row {
			s += w * x[j]
		}
		out[i] = s
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Latents runs the recurrence and latent projection over one sequence.
// A non-nil rng makes the pass stochastic: inverted dropout is applied to
// every latent component, which is the variance source for Monte-Carlo
// rollouts. A nil rng yields the deterministic inference pass.
func (e *Encoder) Latents(x [][]float64, rng *rand.Rand) ([][]float64, error) {
	if err := e.checkShape(x); err != nil {
		return nil, err
	}
	h := make([]float64, e.hiddenDim)
	latents := make([][]float64, len(x))
	for t, xt := range x {
		h = e.step(xt, h)
		z := matVec(e.proj, h)
		for i := range z {
			z[i] = math.Tanh(z[i] + e.projBias[i])
		}
		if rng != nil && e.dropout > 0 {
			keep := 1.0 - e.dropout
			for i := range z {
				if rng.Float64() < e.dropout {
					z[i] = 0
				} else {
					z[i] /= keep
				}
			}
		}
		latents[t] = z
	}
	return latents, nil
}

// step advances the GRU hidden state by one time step.
func (e *Encoder) step(xt, h []float64) []float64 {
	zi, ri, ni := matVec(e.wz, xt), matVec(e.wr, xt), matVec(e.wn, xt)
	zh, rh, nh := matVec(e.uz, h), matVec(e.ur, h), matVec(e.un, h)
	next := make([]float64, e.hiddenDim)
	for i := 0; i < e.hiddenDim; i++ {
		z := sigmoid(zi[i] + zh[i] + e.bz[i])
		r := sigmoid(ri[i] + rh[i] + e.br[i])
		n := math.Tanh(ni[i] + r*nh[i] + e.bn[i])
		next[i] = (1-z)*n + z*h[i]
	}
	return next
}

// Vulnerability applies the head to one latent state.
func (e *Encoder) Vulnerability(latent []float64) float64 {
	return sigmoid(dot(e.head, latent) + e.headBias)
}

// CrossingProb converts a vulnerability score to an event probability using
// the supplied threshold and the shared temperature.
func (e *Encoder) CrossingProb(vuln, threshold float64) float64 {
	return sigmoid((vuln - threshold) / e.Temperature())
}

// Trajectory runs a deterministic forward pass over one sequence, returning
// the vulnerability and event-probability trajectories, both length-matched
// to the input.
func (e *Encoder) Trajectory(x [][]float64) (vuln, probs []float64, err error) {
	return e.trajectory(x, nil)
}

// StochasticTrajectory is Trajectory with latent dropout driven by rng.
func (e *Encoder) StochasticTrajectory(x [][]float64, rng *rand.Rand) (vuln, probs []float64, err error) {
	return e.trajectory(x, rng)
}

func (e *Encoder) trajectory(x [][]float64, rng *rand.Rand) (vuln, probs []float64, err error) {
	latents, err := e.Latents(x, rng)
	if err != nil {
		return nil, nil, err
	}
	vuln = make([]float64, len(latents))
	probs = make([]float64, len(latents))
	for t, z := range latents {
		vuln[t] = e.Vulnerability(z)
		probs[t] = e.CrossingProb(vuln[t], e.threshold)
	}
	return vuln, probs, nil
}

// TrajectoryBatch runs Trajectory over an ordered batch of sequences.
func (e *Encoder) TrajectoryBatch(batch [][][]float64) (vuln, probs [][]float64, err error) {
	vuln = make([][]float64, len(batch))
	probs = make([][]float64, len(batch))
	for i, seq := range batch {
		v, p, err := e.Trajectory(seq)
		if err != nil {
			return nil, nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		vuln[i], probs[i] = v, p
	}
	return vuln, probs, nil
}

// EncodeState returns the latent state of the final time step.
func (e *Encoder) EncodeState(x [][]float64) ([]float64, error) {
	latents, err := e.Latents(x, nil)
	if err != nil {
		return nil, err
	}
	if len(latents) == 0 {
		return nil, fmt.Errorf("empty sequence: %w", ErrBadShape)
	}
	return latents[len(latents)-1], nil
}

func (e *Encoder) checkShape(x [][]float64) error {
	for t, xt := range x {
		if len(xt) != e.inputDim {
			return fmt.Errorf("step %d has %d features, want %d: %w", t, len(xt), e.inputDim, ErrBadShape)
		}
	}
	return nil
}
