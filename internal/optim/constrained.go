// Package optim provides an optimizer wrapper that applies Lipschitz
// projections after each optimization step.
package optim

import (
	bornoptim "github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/layers"
)

// Constrained wraps a Born optimizer and hard-projects the registered
// Lipschitz layers after every step, so the stored kernels never drift far
// from the constrained set.
//
// The gradient step itself is unchanged; only the post-step hook is added.
// Constrained implements Born's optim.Optimizer interface and is a drop-in
// replacement in any training loop:
//
//	inner := bornoptim.NewSGD(m.Parameters(), bornoptim.SGDConfig{LR: 0.01}, backend)
//	optimizer := optim.NewConstrained[B](inner, m.LipschitzLayers()...)
//	...
//	optimizer.Step(grads) // SGD update, then projection
type Constrained[B tensor.Backend] struct {
	inner  bornoptim.Optimizer
	layers []layers.LipschitzLayer[B]
}

// NewConstrained wraps inner so the given layers are condensed after each
// step.
func NewConstrained[B tensor.Backend](inner bornoptim.Optimizer, lipLayers ...layers.LipschitzLayer[B]) *Constrained[B] {
	return &Constrained[B]{
		inner:  inner,
		layers: lipLayers,
	}
}

// Step applies the inner optimizer's update, then projects every registered
// layer back onto its constrained set.
func (c *Constrained[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	c.inner.Step(grads)
	for _, layer := range c.layers {
		layer.Condense()
	}
}

// ZeroGrad clears gradients on the inner optimizer.
func (c *Constrained[B]) ZeroGrad() {
	c.inner.ZeroGrad()
}

// GetLR returns the inner optimizer's learning rate.
func (c *Constrained[B]) GetLR() float32 {
	return c.inner.GetLR()
}

// Inner returns the wrapped optimizer.
func (c *Constrained[B]) Inner() bornoptim.Optimizer {
	return c.inner
}
