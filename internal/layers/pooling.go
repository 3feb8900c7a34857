package layers

import (
	"fmt"
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ScaledAveragePooling2D is an average pooling layer rescaled so its
// operator norm equals the layer's Lipschitz coefficient.
//
// Plain average pooling over a p_h×p_w window has operator norm
// 1/√(p_h·p_w); the output is therefore multiplied by √(p_h·p_w) (and the
// Lipschitz coefficient), which makes the pooling norm-tight instead of
// contracting.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, (height-p_h)/p_h+1, (width-p_w)/p_w+1]
//
// Windows do not overlap: the stride equals the pool size.
type ScaledAveragePooling2D[B tensor.Backend] struct {
	poolSize [2]int
	kCoefLip float32
	backend  B
}

// NewScaledAveragePooling2D creates a scaled average pooling layer with the
// given window size. A zero Lipschitz coefficient selects 1.
func NewScaledAveragePooling2D[B tensor.Backend](poolH, poolW int, kCoefLip float32, backend B) *ScaledAveragePooling2D[B] {
	if poolH <= 0 || poolW <= 0 {
		panic(fmt.Sprintf("scaledavgpool2d: invalid pool size h=%d, w=%d", poolH, poolW))
	}
	if kCoefLip < 0 {
		panic(fmt.Sprintf("scaledavgpool2d: invalid Lipschitz bound %f", kCoefLip))
	}
	return &ScaledAveragePooling2D[B]{
		poolSize: [2]int{poolH, poolW},
		kCoefLip: normalizeKCoef(kCoefLip),
		backend:  backend,
	}
}

// Forward performs the scaled average pooling.
func (p *ScaledAveragePooling2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	area := float64(p.poolSize[0] * p.poolSize[1])
	scale := float32(p.kCoefLip) * float32(math.Sqrt(area)) / float32(area)

	return poolWindows(input, p.poolSize, p.backend, func(window []float32) float32 {
		var sum float32
		for _, v := range window {
			sum += v
		}
		return sum * scale
	})
}

// Parameters returns all trainable parameters (empty for pooling).
func (p *ScaledAveragePooling2D[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{}
}

// KCoefLip returns the layer's Lipschitz bound.
func (p *ScaledAveragePooling2D[B]) KCoefLip() float32 {
	return p.kCoefLip
}

// SetKCoefLip updates the layer's Lipschitz bound.
func (p *ScaledAveragePooling2D[B]) SetKCoefLip(k float32) {
	if k <= 0 {
		panic(fmt.Sprintf("scaledavgpool2d: invalid Lipschitz bound %f", k))
	}
	p.kCoefLip = k
}

// Condense is a no-op: pooling has no trainable kernel.
func (p *ScaledAveragePooling2D[B]) Condense() {}

// String returns a string representation of the layer.
func (p *ScaledAveragePooling2D[B]) String() string {
	return fmt.Sprintf("ScaledAveragePooling2D(pool_size=(%d, %d), k_coef_lip=%g)",
		p.poolSize[0], p.poolSize[1], p.kCoefLip)
}

// StateDict returns an empty map (no parameters).
func (p *ScaledAveragePooling2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for pooling layers.
func (p *ScaledAveragePooling2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// ScaledL2NormPooling2D pools each window to its Euclidean norm:
//
//	out = √(Σ x² + ε)
//
// Norm pooling is 1-Lipschitz per window and, unlike average pooling, does
// not cancel signals of opposite sign. The small epsilon keeps the square
// root differentiable at zero.
type ScaledL2NormPooling2D[B tensor.Backend] struct {
	poolSize [2]int
	kCoefLip float32
	eps      float32
	backend  B
}

// NewScaledL2NormPooling2D creates an L2-norm pooling layer with the given
// window size. A zero Lipschitz coefficient selects 1.
func NewScaledL2NormPooling2D[B tensor.Backend](poolH, poolW int, kCoefLip float32, backend B) *ScaledL2NormPooling2D[B] {
	if poolH <= 0 || poolW <= 0 {
		panic(fmt.Sprintf("scaledl2pool2d: invalid pool size h=%d, w=%d", poolH, poolW))
	}
	if kCoefLip < 0 {
		panic(fmt.Sprintf("scaledl2pool2d: invalid Lipschitz bound %f", kCoefLip))
	}
	return &ScaledL2NormPooling2D[B]{
		poolSize: [2]int{poolH, poolW},
		kCoefLip: normalizeKCoef(kCoefLip),
		eps:      1e-6,
		backend:  backend,
	}
}

// Forward performs the norm pooling.
func (p *ScaledL2NormPooling2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	k := p.kCoefLip
	eps := p.eps
	return poolWindows(input, p.poolSize, p.backend, func(window []float32) float32 {
		var sum float64
		for _, v := range window {
			sum += float64(v) * float64(v)
		}
		return k * float32(math.Sqrt(sum+float64(eps)))
	})
}

// Parameters returns all trainable parameters (empty for pooling).
func (p *ScaledL2NormPooling2D[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{}
}

// KCoefLip returns the layer's Lipschitz bound.
func (p *ScaledL2NormPooling2D[B]) KCoefLip() float32 {
	return p.kCoefLip
}

// SetKCoefLip updates the layer's Lipschitz bound.
func (p *ScaledL2NormPooling2D[B]) SetKCoefLip(k float32) {
	if k <= 0 {
		panic(fmt.Sprintf("scaledl2pool2d: invalid Lipschitz bound %f", k))
	}
	p.kCoefLip = k
}

// Condense is a no-op: pooling has no trainable kernel.
func (p *ScaledL2NormPooling2D[B]) Condense() {}

// String returns a string representation of the layer.
func (p *ScaledL2NormPooling2D[B]) String() string {
	return fmt.Sprintf("ScaledL2NormPooling2D(pool_size=(%d, %d), k_coef_lip=%g)",
		p.poolSize[0], p.poolSize[1], p.kCoefLip)
}

// StateDict returns an empty map (no parameters).
func (p *ScaledL2NormPooling2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for pooling layers.
func (p *ScaledL2NormPooling2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// poolWindows applies reduce to each non-overlapping pool window of a
// [N, C, H, W] tensor. The stride equals the pool size.
func poolWindows[B tensor.Backend](
	input *tensor.Tensor[float32, B],
	poolSize [2]int,
	backend B,
	reduce func(window []float32) float32,
) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("pooling: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	n, ch, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	ph, pw := poolSize[0], poolSize[1]
	if h < ph || w < pw {
		panic(fmt.Sprintf("pooling: input %dx%d smaller than pool window %dx%d", h, w, ph, pw))
	}
	outH := h / ph
	outW := w / pw

	outRaw, err := tensor.NewRaw(tensor.Shape{n, ch, outH, outW}, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	in := input.Data()
	out := outRaw.AsFloat32()
	window := make([]float32, 0, ph*pw)

	for b := 0; b < n; b++ {
		for c := 0; c < ch; c++ {
			plane := in[(b*ch+c)*h*w : (b*ch+c+1)*h*w]
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					window = window[:0]
					for i := 0; i < ph; i++ {
						row := (oh*ph + i) * w
						window = append(window, plane[row+ow*pw:row+ow*pw+pw]...)
					}
					out[((b*ch+c)*outH+oh)*outW+ow] = reduce(window)
				}
			}
		}
	}

	return tensor.New[float32, B](outRaw, backend)
}
