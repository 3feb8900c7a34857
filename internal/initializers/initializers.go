// Package initializers implements weight initializers that produce
// spectrally normalized or approximately orthogonal kernels.
package initializers

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/normalizers"
)

// Initializer produces an initial weight tensor for the given shape.
//
// Implementations condition the random draw so the resulting kernel already
// satisfies (approximately) the property the layer enforces during training,
// which avoids a large projection on the first optimization step.
type Initializer[B tensor.Backend] interface {
	// Init returns a freshly initialized tensor of the given shape.
	Init(shape tensor.Shape, backend B) *tensor.Tensor[float32, B]
}

// BjorckInitializer initializes weights close to orthogonal.
//
// A random normal draw is first rescaled to unit spectral norm (power
// iteration), then orthogonalized with the Björck recurrence. Non-square
// shapes are conditioned on their flattened 2D view; the result after the
// iteration budget is used as-is even if not fully converged.
type BjorckInitializer[B tensor.Backend] struct {
	niterSpectral int
	niterBjorck   int
}

// NewBjorckInitializer creates a BjorckInitializer with the given iteration
// budgets. Zero values select the defaults (10 spectral iterations for a
// fresh kernel, 15 Björck iterations).
//
// Example:
//
//	init := initializers.NewBjorckInitializer[B](15, 50)
//	w := init.Init(tensor.Shape{64, 64}, backend)
func NewBjorckInitializer[B tensor.Backend](niterSpectral, niterBjorck int) *BjorckInitializer[B] {
	if niterSpectral <= 0 {
		niterSpectral = normalizers.DefaultSpectralItersInit
	}
	if niterBjorck <= 0 {
		niterBjorck = normalizers.DefaultBjorckIters
	}
	return &BjorckInitializer[B]{
		niterSpectral: niterSpectral,
		niterBjorck:   niterBjorck,
	}
}

// Init returns an approximately orthogonal tensor of the given shape.
func (b *BjorckInitializer[B]) Init(shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	w := tensor.Randn[float32](shape, backend)
	wBar, _, _ := normalizers.SpectralNormalization(w, nil, b.niterSpectral)
	wBar = normalizers.BjorckNormalization(wBar, b.niterBjorck)
	return wBar.Reshape(shape...).Detach()
}

// NiterSpectral returns the power-iteration budget.
func (b *BjorckInitializer[B]) NiterSpectral() int {
	return b.niterSpectral
}

// NiterBjorck returns the Björck iteration budget.
func (b *BjorckInitializer[B]) NiterBjorck() int {
	return b.niterBjorck
}

// SpectralInitializer initializes weights with unit spectral norm.
//
// Unlike BjorckInitializer it does not orthogonalize; only the largest
// singular value is normalized to one.
type SpectralInitializer[B tensor.Backend] struct {
	niterSpectral int
}

// NewSpectralInitializer creates a SpectralInitializer. A zero iteration
// budget selects the default for fresh kernels.
func NewSpectralInitializer[B tensor.Backend](niterSpectral int) *SpectralInitializer[B] {
	if niterSpectral <= 0 {
		niterSpectral = normalizers.DefaultSpectralItersInit
	}
	return &SpectralInitializer[B]{niterSpectral: niterSpectral}
}

// Init returns a tensor of the given shape with spectral norm close to one.
func (s *SpectralInitializer[B]) Init(shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	w := tensor.Randn[float32](shape, backend)
	wBar, _, _ := normalizers.SpectralNormalization(w, nil, s.niterSpectral)
	return wBar.Reshape(shape...).Detach()
}
