package normalizers_test

import (
	"math"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-lip/internal/normalizers"
)

func TestPowerIteration_DominantSingularValue(t *testing.T) {
	backend := cpu.New()

	// diag(3, 1): the largest singular value is 3.
	w, err := tensor.FromSlice([]float32{3, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	u := tensor.Ones[float32](tensor.Shape{1, 2}, backend)

	uOut, v := normalizers.PowerIteration(w, u, 20)

	require.True(t, uOut.Shape().Equal(tensor.Shape{1, 2}))
	require.True(t, v.Shape().Equal(tensor.Shape{1, 2}))

	sigma := v.MatMul(w).MatMul(uOut.T()).Data()[0]
	assert.InDelta(t, 3.0, sigma, 1e-3)
}

func TestPowerIteration_PanicsOnNonPositiveIter(t *testing.T) {
	backend := cpu.New()
	w := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	u := tensor.Ones[float32](tensor.Shape{1, 2}, backend)

	require.Panics(t, func() {
		normalizers.PowerIteration(w, u, 0)
	})
}

func TestSpectralNormalization_UnitNorm(t *testing.T) {
	backend := cpu.New()

	w, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}, backend)
	require.NoError(t, err)

	wBar, u, sigma := normalizers.SpectralNormalization(w, nil, 15)

	exact := normalizers.ExactSpectralNorm(w)
	assert.InDelta(t, exact, float64(sigma), exact*0.01)
	assert.InDelta(t, 1.0, normalizers.ExactSpectralNorm(wBar), 0.01)

	require.True(t, wBar.Shape().Equal(tensor.Shape{3, 2}))
	require.True(t, u.Shape().Equal(tensor.Shape{1, 2}))
}

func TestSpectralNormalization_RunningEstimate(t *testing.T) {
	backend := cpu.New()

	w, err := tensor.FromSlice([]float32{2, 1, 1, 2}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	// Cold start builds the estimate, the warm call refines it cheaply.
	_, u, sigmaCold := normalizers.SpectralNormalization(w, nil, 10)
	_, _, sigmaWarm := normalizers.SpectralNormalization(w, u, 3)

	assert.InDelta(t, 3.0, float64(sigmaCold), 1e-2)
	assert.InDelta(t, float64(sigmaCold), float64(sigmaWarm), 1e-3)
}

func TestSpectralNormalization_FlattensHigherRank(t *testing.T) {
	backend := cpu.New()

	data := make([]float32, 8)
	for i := range data {
		data[i] = float32(i + 1)
	}
	kernel, err := tensor.FromSlice(data, tensor.Shape{2, 2, 2}, backend)
	require.NoError(t, err)

	wBar, u, sigma := normalizers.SpectralNormalization(kernel, nil, 15)

	// The 2D view is [numElements/lastDim, lastDim].
	require.True(t, wBar.Shape().Equal(tensor.Shape{4, 2}))
	require.True(t, u.Shape().Equal(tensor.Shape{1, 2}))
	assert.Greater(t, sigma, float32(0))
}

func TestBjorckNormalization_ConvergesToIdentity(t *testing.T) {
	backend := cpu.New()

	// Already diagonal with singular values below 1: Björck should push both
	// towards 1, converging to the identity.
	w, err := tensor.FromSlice([]float32{0.9, 0, 0, 0.5}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	wBar := normalizers.BjorckNormalization(w, 25)

	assert.Less(t, normalizers.OrthogonalityError(wBar), 1e-4)

	data := wBar.Data()
	assert.InDelta(t, 1.0, float64(data[0]), 1e-3)
	assert.InDelta(t, 1.0, float64(data[3]), 1e-3)
}

func TestBjorckNormalization_RandomMatrix(t *testing.T) {
	backend := cpu.New()

	w := tensor.Randn[float32](tensor.Shape{8, 8}, backend)
	wBar, _, _ := normalizers.SpectralNormalization(w, nil, 20)
	wBar = normalizers.BjorckNormalization(wBar, 100)

	assert.Less(t, normalizers.OrthogonalityError(wBar), 0.01)
	assert.InDelta(t, 1.0, normalizers.ExactSpectralNorm(wBar), 0.01)
}

func TestProjectKernel(t *testing.T) {
	backend := cpu.New()

	// Symmetric [[2,1],[1,2]] has singular values 3 and 1.
	kernel, err := tensor.FromSlice([]float32{2, 1, 1, 2}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	wBar, u, sigma := normalizers.ProjectKernel(kernel, nil, 0.5, 10, 30)

	require.True(t, wBar.Shape().Equal(kernel.Shape()))
	require.NotNil(t, u)
	assert.InDelta(t, 3.0, float64(sigma), 1e-2)

	// After orthogonalization and scaling, both singular values equal the
	// adjustment coefficient.
	assert.InDelta(t, 0.5, normalizers.ExactSpectralNorm(wBar), 0.01)
}

func TestExactSpectralNorm(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name  string
		data  []float32
		shape tensor.Shape
		want  float64
	}{
		{"diagonal", []float32{3, 0, 0, 1}, tensor.Shape{2, 2}, 3},
		{"identity", []float32{1, 0, 0, 1}, tensor.Shape{2, 2}, 1},
		{"symmetric", []float32{2, 1, 1, 2}, tensor.Shape{2, 2}, 3},
		{"rank one", []float32{3, 4}, tensor.Shape{1, 2}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := tensor.FromSlice(tt.data, tt.shape, backend)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, normalizers.ExactSpectralNorm(w), 1e-5)
		})
	}
}

func TestOrthogonalityError(t *testing.T) {
	backend := cpu.New()

	eye, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	assert.Less(t, normalizers.OrthogonalityError(eye), 1e-6)

	scaled, err := tensor.FromSlice([]float32{2, 0, 0, 2}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, normalizers.OrthogonalityError(scaled), 1e-5)

	// Wide matrix with orthonormal rows.
	invSqrt2 := float32(1 / math.Sqrt2)
	wide, err := tensor.FromSlice([]float32{invSqrt2, invSqrt2, 0, 0, 0, 0, 1, 0}, tensor.Shape{2, 4}, backend)
	require.NoError(t, err)
	assert.Less(t, normalizers.OrthogonalityError(wide), 1e-6)
}
