// Package constraints implements post-step weight projections that keep a
// parameter's operator norm within a configured Lipschitz bound.
package constraints

import (
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/normalizers"
)

// Constraint projects a weight tensor back into its feasible set, mutating
// it in place. Constraints are applied after each optimizer step.
type Constraint[B tensor.Backend] interface {
	// Apply projects w in place.
	Apply(w *tensor.Tensor[float32, B])
}

// SpectralConstraint rescales a weight tensor after a gradient step so its
// largest singular value does not exceed the configured bound.
//
// The singular value is estimated by power iteration on the tensor's
// flattened 2D view; the running singular vector estimate is kept across
// calls so a few iterations per step suffice. When the norm is already
// within the bound the tensor is left untouched, which makes the projection
// idempotent.
//
// A SpectralConstraint carries per-tensor state (the running estimate) and
// must not be shared between different parameters.
type SpectralConstraint[B tensor.Backend] struct {
	kCoefLip float32
	niter    int
	u        *tensor.Tensor[float32, B]
}

// NewSpectralConstraint creates a constraint with the given Lipschitz bound.
// A zero bound selects 1; a zero iteration budget selects the default.
func NewSpectralConstraint[B tensor.Backend](kCoefLip float32, niter int) *SpectralConstraint[B] {
	if kCoefLip == 0 {
		kCoefLip = 1
	}
	if kCoefLip < 0 {
		panic(fmt.Sprintf("constraints: invalid Lipschitz bound %f", kCoefLip))
	}
	if niter <= 0 {
		niter = normalizers.DefaultSpectralIters
	}
	return &SpectralConstraint[B]{
		kCoefLip: kCoefLip,
		niter:    niter,
	}
}

// Apply rescales w in place so its estimated spectral norm is at most the
// configured bound. No-op when the norm is already within bound.
func (c *SpectralConstraint[B]) Apply(w *tensor.Tensor[float32, B]) {
	sigma := c.estimate(w)
	if sigma <= c.kCoefLip {
		return
	}

	scale := c.kCoefLip / sigma
	data := w.Raw().AsFloat32()
	for i := range data {
		data[i] *= scale
	}
}

// Sigma returns the current power-iteration estimate of w's spectral norm
// without modifying w.
func (c *SpectralConstraint[B]) Sigma(w *tensor.Tensor[float32, B]) float32 {
	return c.estimate(w)
}

// KCoefLip returns the configured bound.
func (c *SpectralConstraint[B]) KCoefLip() float32 {
	return c.kCoefLip
}

func (c *SpectralConstraint[B]) estimate(w *tensor.Tensor[float32, B]) float32 {
	_, u, sigma := normalizers.SpectralNormalization(w.Detach(), c.u, c.niter)
	c.u = u.Detach()
	return sigma
}
