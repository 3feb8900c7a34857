package layers_test

import (
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-lip/internal/layers"
)

func TestSpectralConv2D_Creation(t *testing.T) {
	backend := cpu.New()

	conv := layers.NewSpectralConv2D(3, 16, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)

	assert.Equal(t, 3, conv.InChannels())
	assert.Equal(t, 16, conv.OutChannels())
	assert.Equal(t, float32(1), conv.KCoefLip())

	require.True(t, conv.Weight().Tensor().Shape().Equal(tensor.Shape{16, 3, 3, 3}))
	assert.Len(t, conv.Parameters(), 2)
	assert.Contains(t, conv.String(), "SpectralConv2D")
}

func TestSpectralConv2D_NoBias(t *testing.T) {
	backend := cpu.New()

	conv := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, false, layers.Conv2DConfig{}, backend)
	assert.Len(t, conv.Parameters(), 1)
}

func TestSpectralConv2D_ForwardShape(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name    string
		stride  int
		padding int
		want    tensor.Shape
	}{
		{"same padding", 1, 1, tensor.Shape{2, 4, 8, 8}},
		{"valid", 1, 0, tensor.Shape{2, 4, 6, 6}},
		{"strided", 2, 1, tensor.Shape{2, 4, 4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := layers.NewSpectralConv2D(1, 4, 3, 3, tt.stride, tt.padding, true, layers.Conv2DConfig{}, backend)
			input := deterministicInput(backend, tensor.Shape{2, 1, 8, 8})

			output := conv.Forward(input)
			require.True(t, output.Shape().Equal(tt.want), "got %v, want %v", output.Shape(), tt.want)
		})
	}
}

func TestSpectralConv2D_ForwardPanicsOnBadInput(t *testing.T) {
	backend := cpu.New()
	conv := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)

	require.Panics(t, func() {
		conv.Forward(deterministicInput(backend, tensor.Shape{2, 8, 8}))
	})
	require.Panics(t, func() {
		conv.Forward(deterministicInput(backend, tensor.Shape{2, 3, 8, 8}))
	})
}

func TestSpectralConv2D_LipschitzBound(t *testing.T) {
	backend := cpu.New()

	conv := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, false, layers.Conv2DConfig{}, backend)

	x1 := deterministicInput(backend, tensor.Shape{1, 1, 5, 5})
	x2 := x1.AddScalar(0.1)

	out1 := conv.Forward(x1)
	out2 := conv.Forward(x2)

	inDist := l2Dist(x1.Data(), x2.Data())
	outDist := l2Dist(out1.Data(), out2.Data())

	assert.LessOrEqual(t, outDist/inDist, 1.1)
}

func TestSpectralConv2D_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	src := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)
	dst := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	input := deterministicInput(backend, tensor.Shape{1, 1, 6, 6})
	want := src.Forward(input)
	got := dst.Forward(input)

	for i := range want.Data() {
		assert.InDelta(t, float64(want.Data()[i]), float64(got.Data()[i]), 1e-5)
	}
}

func TestSpectralConv2D_LoadStateDictErrors(t *testing.T) {
	backend := cpu.New()

	conv := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)

	require.Error(t, conv.LoadStateDict(map[string]*tensor.RawTensor{}))

	other := layers.NewSpectralConv2D(2, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)
	err := conv.LoadStateDict(other.StateDict())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape mismatch")
}

func TestSpectralConv2D_VanillaExport(t *testing.T) {
	backend := cpu.New()

	conv := layers.NewSpectralConv2D(1, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)
	input := deterministicInput(backend, tensor.Shape{1, 1, 6, 6})

	conv.Forward(input)

	exported := conv.VanillaExport()
	want := conv.Forward(input)
	got := exported.Forward(input)

	require.True(t, got.Shape().Equal(want.Shape()))
	for i := range want.Data() {
		assert.InDelta(t, float64(want.Data()[i]), float64(got.Data()[i]), 1e-3)
	}
}

func TestSpectralConv2D_InvalidConfig(t *testing.T) {
	backend := cpu.New()

	require.Panics(t, func() {
		layers.NewSpectralConv2D(0, 4, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)
	})
	require.Panics(t, func() {
		layers.NewSpectralConv2D(1, 4, 0, 3, 1, 1, true, layers.Conv2DConfig{}, backend)
	})
	require.Panics(t, func() {
		layers.NewSpectralConv2D(1, 4, 3, 3, 0, 1, true, layers.Conv2DConfig{}, backend)
	})
}
