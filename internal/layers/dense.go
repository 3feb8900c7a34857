package layers

import (
	"fmt"
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/initializers"
	"github.com/born-ml/born-lip/internal/normalizers"
)

// DenseConfig configures a SpectralDense layer. Zero values select the
// defaults: Lipschitz bound 1, 3 power iterations, 15 Björck iterations,
// bias enabled.
type DenseConfig struct {
	KCoefLip      float32 // Lipschitz bound of the layer (default: 1)
	NiterSpectral int     // power iterations per forward pass (default: 3)
	NiterBjorck   int     // Björck iterations per forward pass (default: 15)
	NoBias        bool    // disable the additive bias term
}

// SpectralDense is a fully connected layer whose effective weight matrix has
// spectral norm bounded by the layer's Lipschitz coefficient.
//
// The layer stores an unconstrained kernel with shape
// [out_features, in_features] (Born's Linear layout). On every forward pass
// the kernel is spectrally normalized (power iteration with a running
// singular vector estimate), orthogonalized with the Björck recurrence and
// scaled by the Lipschitz coefficient:
//
//	W̄ = k · bjorck(spectral(W))
//	y  = x · W̄ᵀ + b
//
// Since a bias shift does not affect the Lipschitz constant, the bias is
// left unconstrained.
//
// Example:
//
//	layer := layers.NewSpectralDense(64, 32, layers.DenseConfig{}, backend)
//	out := layer.Forward(input) // ‖out(x)−out(y)‖ ≤ ‖x−y‖
type SpectralDense[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	kCoefLip    float32
	niterSpec   int
	niterBjorck int

	kernel *nn.Parameter[B] // [out_features, in_features]
	bias   *nn.Parameter[B] // [out_features] or nil
	u      *tensor.Tensor[float32, B]

	backend B
}

// NewSpectralDense creates a SpectralDense layer.
//
// The kernel is initialized approximately orthogonal (Björck initializer) so
// the first forward passes start close to the constrained set; the bias is
// initialized to zeros.
func NewSpectralDense[B tensor.Backend](inFeatures, outFeatures int, cfg DenseConfig, backend B) *SpectralDense[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("spectraldense: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	if cfg.KCoefLip < 0 {
		panic(fmt.Sprintf("spectraldense: invalid Lipschitz bound %f", cfg.KCoefLip))
	}
	if cfg.NiterSpectral <= 0 {
		cfg.NiterSpectral = normalizers.DefaultSpectralIters
	}
	if cfg.NiterBjorck <= 0 {
		cfg.NiterBjorck = normalizers.DefaultBjorckIters
	}

	init := initializers.NewBjorckInitializer[B](0, cfg.NiterBjorck)
	kernel := nn.NewParameter("weight", init.Init(tensor.Shape{outFeatures, inFeatures}, backend))

	var bias *nn.Parameter[B]
	if !cfg.NoBias {
		bias = nn.NewParameter("bias", nn.Zeros(tensor.Shape{outFeatures}, backend))
	}

	return &SpectralDense[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		kCoefLip:    normalizeKCoef(cfg.KCoefLip),
		niterSpec:   cfg.NiterSpectral,
		niterBjorck: cfg.NiterBjorck,
		kernel:      kernel,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes y = x · W̄ᵀ + b using the conditioned kernel.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (d *SpectralDense[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("spectraldense: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != d.inFeatures {
		panic(fmt.Sprintf("spectraldense: expected input with %d features, got %d", d.inFeatures, inputShape[1]))
	}

	wBar := d.conditionedKernel(d.kCoefLip)

	output := input.MatMul(wBar.T())
	if d.bias != nil {
		output = output.Add(d.bias.Tensor().Reshape(1, d.outFeatures))
	}
	return output
}

// conditionedKernel projects the stored kernel and updates the running
// singular vector estimate.
func (d *SpectralDense[B]) conditionedKernel(coef float32) *tensor.Tensor[float32, B] {
	wBar, u, _ := normalizers.ProjectKernel(d.kernel.Tensor(), d.u, coef, d.niterSpec, d.niterBjorck)
	d.u = u.Detach()
	return wBar
}

// Condense hard-projects the stored kernel in place. After condensing, the
// kernel itself is approximately orthogonal and the forward-time
// conditioning becomes a near no-op.
func (d *SpectralDense[B]) Condense() {
	wBar := d.conditionedKernel(1)
	copy(d.kernel.Tensor().Raw().AsFloat32(), wBar.Raw().AsFloat32())
}

// VanillaExport returns a plain Born Linear layer with the conditioned
// weights baked in, for inference without the normalization cost.
func (d *SpectralDense[B]) VanillaExport() nn.Module[B] {
	wBar := d.conditionedKernel(d.kCoefLip)

	linear := nn.NewLinear(d.inFeatures, d.outFeatures, d.backend)
	copy(linear.Weight().Tensor().Raw().AsFloat32(), wBar.Raw().AsFloat32())
	if d.bias != nil {
		copy(linear.Bias().Tensor().Raw().AsFloat32(), d.bias.Tensor().Raw().AsFloat32())
	}
	return linear
}

// KCoefLip returns the layer's Lipschitz bound.
func (d *SpectralDense[B]) KCoefLip() float32 {
	return d.kCoefLip
}

// SetKCoefLip updates the layer's Lipschitz bound.
func (d *SpectralDense[B]) SetKCoefLip(k float32) {
	if k <= 0 {
		panic(fmt.Sprintf("spectraldense: invalid Lipschitz bound %f", k))
	}
	d.kCoefLip = k
}

// Parameters returns the trainable parameters of this layer.
func (d *SpectralDense[B]) Parameters() []*nn.Parameter[B] {
	if d.bias != nil {
		return []*nn.Parameter[B]{d.kernel, d.bias}
	}
	return []*nn.Parameter[B]{d.kernel}
}

// Weight returns the unconstrained kernel parameter.
func (d *SpectralDense[B]) Weight() *nn.Parameter[B] {
	return d.kernel
}

// Bias returns the bias parameter, or nil when disabled.
func (d *SpectralDense[B]) Bias() *nn.Parameter[B] {
	return d.bias
}

// InFeatures returns the number of input features.
func (d *SpectralDense[B]) InFeatures() int {
	return d.inFeatures
}

// OutFeatures returns the number of output features.
func (d *SpectralDense[B]) OutFeatures() int {
	return d.outFeatures
}

// String returns a string representation of the layer.
func (d *SpectralDense[B]) String() string {
	return fmt.Sprintf("SpectralDense(in_features=%d, out_features=%d, k_coef_lip=%g)",
		d.inFeatures, d.outFeatures, d.kCoefLip)
}

// StateDict returns a map of parameter names to raw tensors.
func (d *SpectralDense[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": d.kernel.Tensor().Raw(),
	}
	if d.bias != nil {
		stateDict["bias"] = d.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary. The running
// singular vector estimate is reset and rebuilt on the next forward pass.
func (d *SpectralDense[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	weightRaw, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	expected := tensor.Shape{d.outFeatures, d.inFeatures}
	if !weightRaw.Shape().Equal(expected) {
		return fmt.Errorf("weight shape mismatch: expected %v, got %v", expected, weightRaw.Shape())
	}
	copy(d.kernel.Tensor().Raw().AsFloat32(), weightRaw.AsFloat32())

	if d.bias != nil {
		biasRaw, ok := stateDict["bias"]
		if !ok {
			return fmt.Errorf("missing bias in state dict")
		}
		expectedBias := tensor.Shape{d.outFeatures}
		if !biasRaw.Shape().Equal(expectedBias) {
			return fmt.Errorf("bias shape mismatch: expected %v, got %v", expectedBias, biasRaw.Shape())
		}
		copy(d.bias.Tensor().Raw().AsFloat32(), biasRaw.AsFloat32())
	}

	d.u = nil
	return nil
}

// FrobeniusDense is a fully connected layer normalized by the Frobenius norm
// of its kernel instead of the spectral norm.
//
// For a single output unit both norms coincide and the bound is tight, which
// makes FrobeniusDense the preferred head for scalar-valued 1-Lipschitz
// networks (e.g. Wasserstein critics). For multiple output units the
// Frobenius norm upper-bounds the spectral norm, so the layer remains
// k-Lipschitz but the bound is looser.
type FrobeniusDense[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	kCoefLip    float32

	kernel *nn.Parameter[B] // [out_features, in_features]
	bias   *nn.Parameter[B] // [out_features] or nil

	backend B
}

// NewFrobeniusDense creates a FrobeniusDense layer. Only the KCoefLip and
// NoBias fields of the config are used.
func NewFrobeniusDense[B tensor.Backend](inFeatures, outFeatures int, cfg DenseConfig, backend B) *FrobeniusDense[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("frobeniusdense: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	if cfg.KCoefLip < 0 {
		panic(fmt.Sprintf("frobeniusdense: invalid Lipschitz bound %f", cfg.KCoefLip))
	}

	kernel := nn.NewParameter("weight", nn.Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend))

	var bias *nn.Parameter[B]
	if !cfg.NoBias {
		bias = nn.NewParameter("bias", nn.Zeros(tensor.Shape{outFeatures}, backend))
	}

	return &FrobeniusDense[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		kCoefLip:    normalizeKCoef(cfg.KCoefLip),
		kernel:      kernel,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes y = x · (k·W/‖W‖_F)ᵀ + b.
func (f *FrobeniusDense[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("frobeniusdense: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != f.inFeatures {
		panic(fmt.Sprintf("frobeniusdense: expected input with %d features, got %d", f.inFeatures, inputShape[1]))
	}

	wBar := f.kernel.Tensor().MulScalar(f.kCoefLip / f.frobeniusNorm())

	output := input.MatMul(wBar.T())
	if f.bias != nil {
		output = output.Add(f.bias.Tensor().Reshape(1, f.outFeatures))
	}
	return output
}

func (f *FrobeniusDense[B]) frobeniusNorm() float32 {
	var sum float64
	for _, v := range f.kernel.Tensor().Data() {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum)) + 1e-12
}

// Condense rescales the stored kernel in place to unit Frobenius norm.
func (f *FrobeniusDense[B]) Condense() {
	scale := 1 / f.frobeniusNorm()
	data := f.kernel.Tensor().Raw().AsFloat32()
	for i := range data {
		data[i] *= scale
	}
}

// VanillaExport returns a plain Born Linear layer with the normalized
// weights baked in.
func (f *FrobeniusDense[B]) VanillaExport() nn.Module[B] {
	wBar := f.kernel.Tensor().MulScalar(f.kCoefLip / f.frobeniusNorm())

	linear := nn.NewLinear(f.inFeatures, f.outFeatures, f.backend)
	copy(linear.Weight().Tensor().Raw().AsFloat32(), wBar.Raw().AsFloat32())
	if f.bias != nil {
		copy(linear.Bias().Tensor().Raw().AsFloat32(), f.bias.Tensor().Raw().AsFloat32())
	}
	return linear
}

// KCoefLip returns the layer's Lipschitz bound.
func (f *FrobeniusDense[B]) KCoefLip() float32 {
	return f.kCoefLip
}

// SetKCoefLip updates the layer's Lipschitz bound.
func (f *FrobeniusDense[B]) SetKCoefLip(k float32) {
	if k <= 0 {
		panic(fmt.Sprintf("frobeniusdense: invalid Lipschitz bound %f", k))
	}
	f.kCoefLip = k
}

// Parameters returns the trainable parameters of this layer.
func (f *FrobeniusDense[B]) Parameters() []*nn.Parameter[B] {
	if f.bias != nil {
		return []*nn.Parameter[B]{f.kernel, f.bias}
	}
	return []*nn.Parameter[B]{f.kernel}
}

// Weight returns the unconstrained kernel parameter.
func (f *FrobeniusDense[B]) Weight() *nn.Parameter[B] {
	return f.kernel
}

// String returns a string representation of the layer.
func (f *FrobeniusDense[B]) String() string {
	return fmt.Sprintf("FrobeniusDense(in_features=%d, out_features=%d, k_coef_lip=%g)",
		f.inFeatures, f.outFeatures, f.kCoefLip)
}

// StateDict returns a map of parameter names to raw tensors.
func (f *FrobeniusDense[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": f.kernel.Tensor().Raw(),
	}
	if f.bias != nil {
		stateDict["bias"] = f.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (f *FrobeniusDense[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	weightRaw, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	expected := tensor.Shape{f.outFeatures, f.inFeatures}
	if !weightRaw.Shape().Equal(expected) {
		return fmt.Errorf("weight shape mismatch: expected %v, got %v", expected, weightRaw.Shape())
	}
	copy(f.kernel.Tensor().Raw().AsFloat32(), weightRaw.AsFloat32())

	if f.bias != nil {
		biasRaw, ok := stateDict["bias"]
		if !ok {
			return fmt.Errorf("missing bias in state dict")
		}
		copy(f.bias.Tensor().Raw().AsFloat32(), biasRaw.AsFloat32())
	}
	return nil
}
