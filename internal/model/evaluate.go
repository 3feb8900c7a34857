package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// EvaluateLipConst empirically estimates the Lipschitz constant of a module
// by finite differences: each input sample is perturbed by a random vector
// of norm eps and the largest observed output/input distance ratio is
// returned.
//
// The estimate is a lower bound on the true constant; for a correctly
// constrained network it should stay below the network's LipschitzBound.
// Inputs must be 2D [batch, features].
func EvaluateLipConst[B tensor.Backend](
	module nn.Module[B],
	inputs *tensor.Tensor[float32, B],
	eps float32,
) float32 {
	shape := inputs.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("model: EvaluateLipConst expects 2D inputs [batch, features], got %v", shape))
	}
	if eps <= 0 {
		eps = 1e-3
	}

	batch, features := shape[0], shape[1]

	// Perturb every sample by an independent random direction of norm eps.
	perturbedData := make([]float32, batch*features)
	copy(perturbedData, inputs.Data())
	for b := 0; b < batch; b++ {
		row := perturbedData[b*features : (b+1)*features]
		delta := make([]float64, features)
		var norm float64
		for j := range delta {
			delta[j] = rand.NormFloat64()
			norm += delta[j] * delta[j]
		}
		norm = math.Sqrt(norm)
		for j := range row {
			row[j] += float32(delta[j] / norm * float64(eps))
		}
	}

	perturbed, err := tensor.FromSlice(perturbedData, shape, inputs.Backend())
	if err != nil {
		panic(err)
	}

	out := module.Forward(inputs)
	outPerturbed := module.Forward(perturbed)

	outShape := out.Shape()
	outFeatures := outShape.NumElements() / batch
	a := out.Data()
	b := outPerturbed.Data()

	var maxRatio float64
	for i := 0; i < batch; i++ {
		var dist float64
		for j := 0; j < outFeatures; j++ {
			d := float64(a[i*outFeatures+j] - b[i*outFeatures+j])
			dist += d * d
		}
		ratio := math.Sqrt(dist) / float64(eps)
		if ratio > maxRatio {
			maxRatio = ratio
		}
	}
	return float32(maxRatio)
}
