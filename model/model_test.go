// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model_test

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/nn"
	bornoptim "github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-lip/layers"
	"github.com/born-ml/born-lip/losses"
	"github.com/born-ml/born-lip/model"
	"github.com/born-ml/born-lip/optim"
)

type testBackend = *autodiff.Backend[*cpu.Backend]

// TestTrainingStep exercises the full public surface: a 1-Lipschitz model,
// the HKR loss, a taped backward pass and the constrained optimizer.
func TestTrainingStep(t *testing.T) {
	backend := autodiff.New(cpu.New())

	m := model.NewSequential[testBackend](1.0,
		layers.NewSpectralDense(2, 16, layers.DenseConfig{}, backend),
		nn.NewReLU[testBackend](),
		layers.NewFrobeniusDense(16, 1, layers.DenseConfig{}, backend),
	)
	require.InDelta(t, 1.0, float64(m.LipschitzBound()), 1e-5)

	x, err := tensor.FromSlice(
		[]float32{0.1, 0.2, -0.4, 0.3, 0.8, -0.5, -0.9, -0.7},
		tensor.Shape{4, 2}, backend)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{1, 1, -1, -1}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)

	loss := losses.NewHKRLoss[testBackend](10, 0.5, backend)
	inner := bornoptim.NewSGD(m.Parameters(), bornoptim.SGDConfig{LR: 0.01}, backend)
	optimizer := optim.NewConstrained[testBackend](inner, m.LipschitzLayers()...)

	before := make([]float32, len(m.Parameters()[0].Tensor().Data()))
	copy(before, m.Parameters()[0].Tensor().Data())

	backend.Tape().StartRecording()

	predictions := m.Forward(x)
	lossTensor := loss.Forward(predictions, y)

	outputGrad, err := tensor.NewRaw(lossTensor.Shape(), lossTensor.DType(), backend.Device())
	require.NoError(t, err)
	outputGrad.AsFloat32()[0] = 1.0

	grads := backend.Tape().Backward(outputGrad, backend)
	require.NotEmpty(t, grads)

	optimizer.Step(grads)
	backend.Tape().Clear()
	backend.Tape().StopRecording()

	// The step must have moved the first kernel.
	after := m.Parameters()[0].Tensor().Data()
	changed := false
	for i := range before {
		if before[i] != after[i] {
			changed = true
			break
		}
	}
	assert.True(t, changed, "optimizer step left the kernel unchanged")

	// The bound must survive training.
	estimate := model.EvaluateLipConst[testBackend](m, x, 1e-3)
	assert.LessOrEqual(t, float64(estimate), 1.1)
}

func TestFacadeConstructors(t *testing.T) {
	backend := cpu.New()

	m := model.NewSequential[*cpu.Backend](4,
		layers.NewSpectralDense(3, 3, layers.DenseConfig{}, backend),
		layers.NewSpectralDense(3, 1, layers.DenseConfig{}, backend),
	)

	require.Len(t, m.LipschitzLayers(), 2)
	assert.InDelta(t, 4.0, float64(m.LipschitzBound()), 1e-4)
}
