// Package normalizers implements the weight conditioning procedures used by
// the Lipschitz-constrained layers: power iteration, spectral normalization
// and Björck orthogonalization. For internal use by the layer, initializer
// and constraint packages.
package normalizers

import (
	"fmt"
	"math"

	"github.com/born-ml/born/tensor"
)

// Default iteration budgets for the normalization procedures.
const (
	// DefaultBjorckIters is the default number of Björck orthogonalization steps.
	DefaultBjorckIters = 15

	// DefaultSpectralIters is the default number of power iterations when a
	// running singular vector estimate is available.
	DefaultSpectralIters = 3

	// DefaultSpectralItersInit is the default number of power iterations when
	// normalizing a freshly initialized kernel (no running estimate yet).
	DefaultSpectralItersInit = 10
)

// l2Normalize returns x scaled to unit Euclidean norm.
//
// A small epsilon guards against division by zero for all-zero vectors.
func l2Normalize[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	var sum float64
	for _, v := range x.Data() {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum)) + 1e-12
	return x.MulScalar(1 / norm)
}

// PowerIteration estimates the dominant singular vectors of the 2D matrix w.
//
// Starting from the row vector u with shape [1, cols], it alternates
//
//	v ← l2norm(u · wᵀ)
//	u ← l2norm(v · w)
//
// for niter iterations and returns the final u [1, cols] and v [1, rows].
// niter must be greater than zero.
func PowerIteration[B tensor.Backend](w, u *tensor.Tensor[float32, B], niter int) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	if niter <= 0 {
		panic(fmt.Sprintf("normalizers: power iteration requires niter > 0, got %d", niter))
	}

	var v *tensor.Tensor[float32, B]
	for i := 0; i < niter; i++ {
		v = l2Normalize(u.MatMul(w.T()))
		u = l2Normalize(v.MatMul(w))
	}
	return u, v
}

// SpectralNormalization rescales kernel so its largest singular value is
// approximately one.
//
// The kernel is flattened to a 2D view [numElements/lastDim, lastDim] and the
// dominant singular value sigma is estimated by power iteration. When u is
// nil (no running estimate), the iteration count is doubled and u is seeded
// with ones.
//
// Returns the normalized 2D view kernel/sigma, the updated singular vector
// estimate u (to be carried across calls), and sigma itself.
func SpectralNormalization[B tensor.Backend](kernel, u *tensor.Tensor[float32, B], niter int) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B], float32) {
	shape := kernel.Shape()
	lastDim := shape[len(shape)-1]
	rows := shape.NumElements() / lastDim

	if u == nil {
		// No running estimate: start from ones and iterate longer.
		niter *= 2
		u = tensor.Ones[float32](tensor.Shape{1, lastDim}, kernel.Backend())
	}

	w := kernel.Reshape(rows, lastDim)
	uOut, v := PowerIteration(w, u, niter)

	// sigma = v · W · uᵀ, a 1x1 tensor.
	sigma := v.MatMul(w).MatMul(uOut.T()).Data()[0]

	wBar := w.MulScalar(1 / sigma)
	return wBar, uOut, sigma
}

// BjorckNormalization iteratively orthogonalizes w via the Björck recurrence
//
//	w ← 1.5·w − 0.5·w·wᵀ·w
//
// The input must already be spectrally normalized (largest singular value
// close to one) for the iteration to converge. After niter iterations the
// columns of the smaller dimension are approximately orthonormal; failure to
// converge within the budget is tolerated and the approximation is returned
// as-is.
func BjorckNormalization[B tensor.Backend](w *tensor.Tensor[float32, B], niter int) *tensor.Tensor[float32, B] {
	for i := 0; i < niter; i++ {
		w = w.MulScalar(1.5).Sub(w.MatMul(w.T()).MatMul(w).MulScalar(0.5))
	}
	return w
}

// ProjectKernel produces the effective weight used during a forward pass:
// spectral normalization followed by Björck orthogonalization, scaled by the
// adjustment coefficient and reshaped back to the kernel's original shape.
//
// Callers that condition a higher-rank kernel (e.g. conv filters) are
// expected to reshape it to the 2D matrix whose operator norm they want to
// bound before calling.
func ProjectKernel[B tensor.Backend](kernel, u *tensor.Tensor[float32, B], adjustment float32, niterSpectral, niterBjorck int) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B], float32) {
	wBar, uOut, sigma := SpectralNormalization(kernel, u, niterSpectral)
	wBar = BjorckNormalization(wBar, niterBjorck)
	wBar = wBar.MulScalar(adjustment)
	wBar = wBar.Reshape(kernel.Shape()...)
	return wBar, uOut, sigma
}
