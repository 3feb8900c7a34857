package activations_test

import (
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-lip/internal/activations"
)

func TestGroupSort_Forward(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name  string
		n     int
		data  []float32
		shape tensor.Shape
		want  []float32
	}{
		{
			name:  "pairs",
			n:     2,
			data:  []float32{3, 1, 4, 2},
			shape: tensor.Shape{1, 4},
			want:  []float32{1, 3, 2, 4},
		},
		{
			name:  "full group",
			n:     4,
			data:  []float32{4, 3, 2, 1},
			shape: tensor.Shape{1, 4},
			want:  []float32{1, 2, 3, 4},
		},
		{
			name:  "batched pairs",
			n:     2,
			data:  []float32{2, 1, 1, 2, 5, -5, 0, 0},
			shape: tensor.Shape{2, 4},
			want:  []float32{1, 2, 1, 2, -5, 5, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := tensor.FromSlice(tt.data, tt.shape, backend)
			require.NoError(t, err)

			act := activations.NewGroupSort[*cpu.Backend](tt.n)
			output := act.Forward(input)

			require.True(t, output.Shape().Equal(tt.shape))
			assert.Equal(t, tt.want, output.Data())
		})
	}
}

func TestGroupSort_InputUnchanged(t *testing.T) {
	backend := cpu.New()

	input, err := tensor.FromSlice([]float32{3, 1, 4, 2}, tensor.Shape{1, 4}, backend)
	require.NoError(t, err)

	activations.NewGroupSort2[*cpu.Backend]().Forward(input)

	assert.Equal(t, []float32{3, 1, 4, 2}, input.Data())
}

func TestGroupSort_PreservesNorm(t *testing.T) {
	backend := cpu.New()

	input, err := tensor.FromSlice([]float32{-2, 7, 0.5, -3, 1, 1}, tensor.Shape{1, 6}, backend)
	require.NoError(t, err)

	output := activations.NewGroupSort2[*cpu.Backend]().Forward(input)

	var inSum, outSum float64
	for i := range input.Data() {
		inSum += float64(input.Data()[i]) * float64(input.Data()[i])
		outSum += float64(output.Data()[i]) * float64(output.Data()[i])
	}
	assert.InDelta(t, inSum, outSum, 1e-6)
}

func TestGroupSort_Panics(t *testing.T) {
	backend := cpu.New()

	require.Panics(t, func() { activations.NewGroupSort[*cpu.Backend](1) })

	input, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	require.Panics(t, func() {
		activations.NewGroupSort2[*cpu.Backend]().Forward(input)
	})
}

func TestGroupSort_Accessors(t *testing.T) {
	act := activations.NewGroupSort[*cpu.Backend](4)
	assert.Equal(t, 4, act.GroupSize())
	assert.Nil(t, act.Parameters())
	assert.Contains(t, act.String(), "GroupSort")
	assert.Empty(t, act.StateDict())
}

func TestFullSort_Forward(t *testing.T) {
	backend := cpu.New()

	input, err := tensor.FromSlice([]float32{3, 1, 2, 6, 5, 4}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	output := activations.NewFullSort[*cpu.Backend]().Forward(input)

	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, output.Data())
}
