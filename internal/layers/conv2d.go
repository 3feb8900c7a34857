package layers

import (
	"fmt"
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/initializers"
	"github.com/born-ml/born-lip/internal/normalizers"
)

// Conv2DConfig configures a SpectralConv2D layer. Zero values select the
// defaults: Lipschitz bound 1, 3 power iterations, 15 Björck iterations.
type Conv2DConfig struct {
	KCoefLip      float32 // Lipschitz bound of the layer (default: 1)
	NiterSpectral int     // power iterations per forward pass (default: 3)
	NiterBjorck   int     // Björck iterations per forward pass (default: 15)
}

// SpectralConv2D is a 2D convolutional layer whose transform has a bounded
// Lipschitz constant.
//
// The kernel [out_channels, in_channels, kernel_h, kernel_w] (Born's Conv2D
// layout) is conditioned on its [out_channels, in_channels·kernel_h·kernel_w]
// flattening: spectral normalization, Björck orthogonalization, then scaling
// by the Lipschitz coefficient times a correction factor that accounts for
// how often kernel windows overlap a given input pixel (which depends on the
// kernel size, the stride and the spatial input size).
//
// Input shape:  [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_h, out_w]
type SpectralConv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int
	useBias     bool
	kCoefLip    float32
	niterSpec   int
	niterBjorck int

	kernel *nn.Parameter[B] // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *nn.Parameter[B] // [out_channels] or nil
	u      *tensor.Tensor[float32, B]

	// Correction factor from the last forward pass; depends on the spatial
	// input size for stride 1.
	lipFactor float32

	backend B
}

// NewSpectralConv2D creates a SpectralConv2D layer with a Björck-orthogonal
// kernel initialization.
func NewSpectralConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	cfg Conv2DConfig,
	backend B,
) *SpectralConv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("spectralconv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("spectralconv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("spectralconv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("spectralconv2d: invalid padding %d", padding))
	}
	if cfg.KCoefLip < 0 {
		panic(fmt.Sprintf("spectralconv2d: invalid Lipschitz bound %f", cfg.KCoefLip))
	}
	if cfg.NiterSpectral <= 0 {
		cfg.NiterSpectral = normalizers.DefaultSpectralIters
	}
	if cfg.NiterBjorck <= 0 {
		cfg.NiterBjorck = normalizers.DefaultBjorckIters
	}

	// Initialize the 2D view orthogonally, then fold back to 4D.
	fanIn := inChannels * kernelH * kernelW
	init := initializers.NewBjorckInitializer[B](0, cfg.NiterBjorck)
	kernel2d := init.Init(tensor.Shape{outChannels, fanIn}, backend)
	kernel := nn.NewParameter("weight", kernel2d.Reshape(outChannels, inChannels, kernelH, kernelW))

	var bias *nn.Parameter[B]
	if useBias {
		bias = nn.NewParameter("bias", nn.Zeros(tensor.Shape{outChannels}, backend))
	}

	return &SpectralConv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		useBias:     useBias,
		kCoefLip:    normalizeKCoef(cfg.KCoefLip),
		niterSpec:   cfg.NiterSpectral,
		niterBjorck: cfg.NiterBjorck,
		kernel:      kernel,
		bias:        bias,
		backend:     backend,
	}
}

// convLipFactor computes the correction applied to the normalized kernel so
// the convolution (not just the kernel matrix) is 1-Lipschitz. For stride 1
// the factor accounts for partial window overlap at the borders; for larger
// strides the windows overlap less and 1/√(kh·kw) is used.
func convLipFactor(kh, kw, stride, h, w int) float32 {
	if stride > 1 {
		return float32(1 / math.Sqrt(float64(kh*kw)))
	}
	kh2 := float64(kh-1) / 2
	kw2 := float64(kw-1) / 2
	fh := float64(kh)*float64(h) - kh2*(kh2+1)
	fw := float64(kw)*float64(w) - kw2*(kw2+1)
	return float32(math.Sqrt(float64(h) * float64(w) / (fh * fw)))
}

// Forward performs the convolution with the conditioned kernel.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w]
func (c *SpectralConv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("spectralconv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("spectralconv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	c.lipFactor = convLipFactor(c.kernelSize[0], c.kernelSize[1], c.stride, inputShape[2], inputShape[3])
	wBar := c.conditionedKernel(c.kCoefLip * c.lipFactor)

	outputRaw := c.backend.Conv2D(input.Raw(), wBar.Raw(), c.stride, c.padding)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

// conditionedKernel projects the kernel's 2D view and folds it back to 4D.
func (c *SpectralConv2D[B]) conditionedKernel(coef float32) *tensor.Tensor[float32, B] {
	fanIn := c.inChannels * c.kernelSize[0] * c.kernelSize[1]
	w2d := c.kernel.Tensor().Reshape(c.outChannels, fanIn)

	wBar, u, _ := normalizers.ProjectKernel(w2d, c.u, coef, c.niterSpec, c.niterBjorck)
	c.u = u.Detach()

	return wBar.Reshape(c.outChannels, c.inChannels, c.kernelSize[0], c.kernelSize[1])
}

// Condense hard-projects the stored kernel in place (orthogonalization only,
// without the Lipschitz scaling, which is reapplied on each forward pass).
func (c *SpectralConv2D[B]) Condense() {
	wBar := c.conditionedKernel(1)
	copy(c.kernel.Tensor().Raw().AsFloat32(), wBar.Raw().AsFloat32())
}

// VanillaExport returns a plain Born Conv2D layer with the conditioned
// kernel baked in. The correction factor from the last forward pass is used;
// before any forward pass the conservative large-stride factor applies.
func (c *SpectralConv2D[B]) VanillaExport() nn.Module[B] {
	factor := c.lipFactor
	if factor == 0 {
		factor = float32(1 / math.Sqrt(float64(c.kernelSize[0]*c.kernelSize[1])))
	}
	wBar := c.conditionedKernel(c.kCoefLip * factor)

	conv := nn.NewConv2D(c.inChannels, c.outChannels, c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding, c.useBias, c.backend)

	// Born's Conv2D exposes no weight accessor; Parameters() lists the
	// kernel first, then the bias.
	params := conv.Parameters()
	copy(params[0].Tensor().Raw().AsFloat32(), wBar.Raw().AsFloat32())
	if c.useBias {
		copy(params[1].Tensor().Raw().AsFloat32(), c.bias.Tensor().Raw().AsFloat32())
	}
	return conv
}

// KCoefLip returns the layer's Lipschitz bound.
func (c *SpectralConv2D[B]) KCoefLip() float32 {
	return c.kCoefLip
}

// SetKCoefLip updates the layer's Lipschitz bound.
func (c *SpectralConv2D[B]) SetKCoefLip(k float32) {
	if k <= 0 {
		panic(fmt.Sprintf("spectralconv2d: invalid Lipschitz bound %f", k))
	}
	c.kCoefLip = k
}

// Parameters returns the trainable parameters of this layer.
func (c *SpectralConv2D[B]) Parameters() []*nn.Parameter[B] {
	if c.useBias {
		return []*nn.Parameter[B]{c.kernel, c.bias}
	}
	return []*nn.Parameter[B]{c.kernel}
}

// Weight returns the unconstrained kernel parameter.
func (c *SpectralConv2D[B]) Weight() *nn.Parameter[B] {
	return c.kernel
}

// OutChannels returns the number of output channels.
func (c *SpectralConv2D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *SpectralConv2D[B]) InChannels() int {
	return c.inChannels
}

// String returns a string representation of the layer.
func (c *SpectralConv2D[B]) String() string {
	return fmt.Sprintf("SpectralConv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v, k_coef_lip=%g)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding, c.useBias, c.kCoefLip)
}

// StateDict returns a map of parameter names to raw tensors.
func (c *SpectralConv2D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": c.kernel.Tensor().Raw(),
	}
	if c.useBias {
		stateDict["bias"] = c.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary. The running
// singular vector estimate is reset and rebuilt on the next forward pass.
func (c *SpectralConv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	weightRaw, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	expected := tensor.Shape{c.outChannels, c.inChannels, c.kernelSize[0], c.kernelSize[1]}
	if !weightRaw.Shape().Equal(expected) {
		return fmt.Errorf("weight shape mismatch: expected %v, got %v", expected, weightRaw.Shape())
	}
	copy(c.kernel.Tensor().Raw().AsFloat32(), weightRaw.AsFloat32())

	if c.useBias {
		biasRaw, ok := stateDict["bias"]
		if !ok {
			return fmt.Errorf("missing bias in state dict")
		}
		copy(c.bias.Tensor().Raw().AsFloat32(), biasRaw.AsFloat32())
	}

	c.u = nil
	return nil
}
