// Package layers implements Lipschitz-constrained drop-in replacements for
// the standard Born layers.
//
// Each layer owns an unconstrained kernel parameter and conditions it during
// the forward pass (spectral normalization followed by Björck
// orthogonalization) so the effective transform has operator norm bounded by
// the layer's Lipschitz coefficient. The stored kernel can additionally be
// hard-projected in place with Condense, typically after each optimizer step.
package layers

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// LipschitzLayer is the capability interface shared by all layers in this
// package: a regular Born module that additionally guarantees a bound on the
// Lipschitz constant of its transform.
type LipschitzLayer[B tensor.Backend] interface {
	nn.Module[B]

	// KCoefLip returns the layer's Lipschitz bound.
	KCoefLip() float32

	// SetKCoefLip updates the layer's Lipschitz bound. Model containers use
	// this to distribute a global budget across layers.
	SetKCoefLip(k float32)

	// Condense projects the stored kernel in place so it satisfies the
	// layer's bound exactly, without relying on forward-time conditioning.
	// Layers without trainable kernels implement it as a no-op.
	Condense()
}

// VanillaExporter is implemented by layers that can be converted to a plain
// Born module with the conditioned weights baked in, removing the
// normalization cost at inference time.
type VanillaExporter[B tensor.Backend] interface {
	// VanillaExport returns an equivalent standard Born module.
	VanillaExport() nn.Module[B]
}

// normalizeKCoef applies the zero-value default for Lipschitz coefficients.
func normalizeKCoef(k float32) float32 {
	if k == 0 {
		return 1
	}
	return k
}
