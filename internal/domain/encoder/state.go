package encoder

import "fmt"

// State is the serializable snapshot of encoder weights. It is the single
// shared blob a host may persist; the layout follows the feature-vector
// order, so dimensions must match on restore.
type State struct {
	InputDim  int `json:"inputDim"`
	HiddenDim int `json:"hiddenDim"`
	LatentDim int `json:"latentDim"`

	Wz [][]float64 `json:"wz"`
	Wr [][]float64 `json:"wr"`
	Wn [][]float64 `json:"wn"`
	Uz [][]float64 `json:"uz"`
	Ur [][]float64 `json:"ur"`
	Un [][]float64 `json:"un"`
	Bz []float64   `json:"bz"`
	Br []float64   `json:"br"`
	Bn []float64   `json:"bn"`

	Proj     [][]float64 `json:"proj"`
	ProjBias []float64   `json:"projBias"`
	Head     []float64   `json:"head"`
	HeadBias float64     `json:"headBias"`

	Threshold   float64 `json:"threshold"`
	Temperature float64 `json:"temperature"`
}

// State captures a deep copy of the encoder weights.
func (e *Encoder) State() State {
	return State{
		InputDim:    e.inputDim,
		HiddenDim:   e.hiddenDim,
		LatentDim:   e.latentDim,
		Wz:          copyMatrix(e.wz),
		Wr:          copyMatrix(e.wr),
		Wn:          copyMatrix(e.wn),
		Uz:          copyMatrix(e.uz),
		Ur:          copyMatrix(e.ur),
		Un:          copyMatrix(e.un),
		Bz:          copyVector(e.bz),
		Br:          copyVector(e.br),
		Bn:          copyVector(e.bn),
		Proj:        copyMatrix(e.proj),
		ProjBias:    copyVector(e.projBias),
		Head:        copyVector(e.head),
		HeadBias:    e.headBias,
		Threshold:   e.threshold,
		Temperature: e.temperature,
	}
}

// FromState rebuilds an encoder from a persisted snapshot. Options apply on
// top of the snapshot; dimensions always come from the snapshot itself
// because the weight layout depends on them.
func FromState(s State, opts ...Option) (*Encoder, error) {
	if s.InputDim <= 0 || s.HiddenDim <= 0 || s.LatentDim <= 0 {
		return nil, fmt.Errorf("invalid dimensions %d/%d/%d: %w", s.InputDim, s.HiddenDim, s.LatentDim, ErrBadShape)
	}
	e := &Encoder{
		inputDim:    s.InputDim,
		hiddenDim:   s.HiddenDim,
		latentDim:   s.LatentDim,
		dropout:     defaultDropoutRate,
		wz:          copyMatrix(s.Wz),
		wr:          copyMatrix(s.Wr),
		wn:          copyMatrix(s.Wn),
		uz:          copyMatrix(s.Uz),
		ur:          copyMatrix(s.Ur),
		un:          copyMatrix(s.Un),
		bz:          copyVector(s.Bz),
		br:          copyVector(s.Br),
		bn:          copyVector(s.Bn),
		proj:        copyMatrix(s.Proj),
		projBias:    copyVector(s.ProjBias),
		head:        copyVector(s.Head),
		headBias:    s.HeadBias,
		threshold:   s.Threshold,
		temperature: s.Temperature,
	}

	for _, opt := range opts {
		opt(e)
	}
	e.inputDim, e.hiddenDim, e.latentDim = s.InputDim, s.HiddenDim, s.LatentDim
	return e, nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = copyVector(row)
	}
	return out
}

func copyVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
