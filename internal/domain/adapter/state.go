package adapter

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch reports a snapshot whose latent dimension does not
// match the adapter's encoder.
var ErrDimensionMismatch = errors.New("adapter snapshot dimension mismatch")

// State is the serializable per-user snapshot: the latent remap, its bias,
// and the personal threshold. Hosts persist it keyed by user identity.
type State struct {
	UserID    string      `json:"userId"`
	Remap     [][]float64 `json:"remap"`
	Bias      []float64   `json:"bias"`
	Threshold float64     `json:"threshold"`
}

// State captures a deep copy of the adapter parameters.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	remap := make([][]float64, len(a.remap))
	for i, row := range a.remap {
		remap[i] = make([]float64, len(row))
		copy(remap[i], row)
	}
	bias := make([]float64, len(a.bias))
	copy(bias, a.bias)
	return State{
		UserID:    a.userID,
		Remap:     remap,
		Bias:      bias,
		Threshold: a.threshold,
	}
}

// Restore loads persisted parameters into the adapter.
func (a *Adapter) Restore(s State) error {
	dim := a.base.LatentDim()
	if len(s.Remap) != dim || len(s.Bias) != dim {
		return fmt.Errorf("got %dx%d remap for latent dim %d: %w", len(s.Remap), len(s.Bias), dim, ErrDimensionMismatch)
	}
	for i, row := range s.Remap {
		if len(row) != dim {
			return fmt.Errorf("remap row %d has %d columns, want %d: %w", i, len(row), dim, ErrDimensionMismatch)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, row := range s.Remap {
		copy(a.remap[i], row)
	}
	copy(a.bias, s.Bias)
	a.threshold = s.Threshold
	return nil
}
