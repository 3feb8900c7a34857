// Package losses implements loss functions for training Lipschitz-bounded
// binary classifiers and Wasserstein critics.
//
// All losses expect targets in {-1, +1} and predictions of the same shape
// (typically [batch_size, 1]). They are built from Born tensor operations so
// gradients flow through the autodiff tape like any other module.
package losses

import (
	"fmt"
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// KRLoss estimates the Kantorovich-Rubinstein dual of the Wasserstein-1
// distance between the two classes:
//
//	KR = mean(pred | target=+1) − mean(pred | target=−1)
//
// With a 1-Lipschitz model, KR lower-bounds the Wasserstein distance, so the
// estimate should be maximized. Use NegKRLoss with a minimizing optimizer.
type KRLoss[B tensor.Backend] struct {
	backend B
}

// NewKRLoss creates a KR loss.
func NewKRLoss[B tensor.Backend](backend B) *KRLoss[B] {
	return &KRLoss[B]{backend: backend}
}

// Forward computes the KR estimate as a scalar tensor.
func (l *KRLoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return krTerm(predictions, targets, l.backend)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (l *KRLoss[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// NegKRLoss is the negated KR estimate, suitable for gradient descent:
// minimizing it maximizes the Wasserstein dual.
type NegKRLoss[B tensor.Backend] struct {
	backend B
}

// NewNegKRLoss creates a negated KR loss.
func NewNegKRLoss[B tensor.Backend](backend B) *NegKRLoss[B] {
	return &NegKRLoss[B]{backend: backend}
}

// Forward computes −KR as a scalar tensor.
func (l *NegKRLoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return krTerm(predictions, targets, l.backend).MulScalar(-1)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (l *NegKRLoss[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// HingeMarginLoss is the hinge loss with a configurable margin:
//
//	mean(max(0, margin − target·pred))
//
// Samples predicted on the correct side with at least the margin contribute
// nothing.
type HingeMarginLoss[B tensor.Backend] struct {
	margin  float32
	backend B
}

// NewHingeMarginLoss creates a hinge loss. A zero margin selects the default
// of 1.
func NewHingeMarginLoss[B tensor.Backend](margin float32, backend B) *HingeMarginLoss[B] {
	if margin < 0 {
		panic(fmt.Sprintf("losses: invalid hinge margin %f", margin))
	}
	if margin == 0 {
		margin = 1
	}
	return &HingeMarginLoss[B]{margin: margin, backend: backend}
}

// Forward computes the mean hinge loss as a scalar tensor.
func (l *HingeMarginLoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return hingeTerm(predictions, targets, l.margin)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (l *HingeMarginLoss[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// Margin returns the configured margin.
func (l *HingeMarginLoss[B]) Margin() float32 {
	return l.margin
}

// HKRLoss is the hinge-regularized KR loss:
//
//	alpha · hinge(margin) − KR
//
// The KR term pushes the two classes apart in the Wasserstein sense while
// the hinge term enforces classification with a margin. Larger alpha favors
// accuracy, smaller alpha favors a better Wasserstein estimate. An infinite
// alpha degenerates to the pure hinge loss.
type HKRLoss[B tensor.Backend] struct {
	alpha   float32
	margin  float32
	backend B
}

// NewHKRLoss creates an HKR loss. A zero margin selects the default of 1.
func NewHKRLoss[B tensor.Backend](alpha, margin float32, backend B) *HKRLoss[B] {
	if alpha < 0 {
		panic(fmt.Sprintf("losses: invalid HKR alpha %f", alpha))
	}
	if margin < 0 {
		panic(fmt.Sprintf("losses: invalid hinge margin %f", margin))
	}
	if margin == 0 {
		margin = 1
	}
	return &HKRLoss[B]{alpha: alpha, margin: margin, backend: backend}
}

// Forward computes alpha·hinge − KR as a scalar tensor.
func (l *HKRLoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	hinge := hingeTerm(predictions, targets, l.margin)
	if math.IsInf(float64(l.alpha), 1) {
		return hinge
	}
	kr := krTerm(predictions, targets, l.backend)
	return hinge.MulScalar(l.alpha).Sub(kr)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (l *HKRLoss[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// krTerm computes mean(pred | +1) − mean(pred | −1) as sum(pred · w) with a
// constant weight tensor, so the result stays on the autodiff tape.
func krTerm[B tensor.Backend](predictions, targets *tensor.Tensor[float32, B], backend B) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("losses: predictions and targets must have the same shape")
	}

	targetData := targets.Data()
	var nPos, nNeg int
	for _, t := range targetData {
		if t > 0 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		panic("losses: KR term requires both classes in the batch")
	}

	weightData := make([]float32, len(targetData))
	for i, t := range targetData {
		if t > 0 {
			weightData[i] = 1 / float32(nPos)
		} else {
			weightData[i] = -1 / float32(nNeg)
		}
	}
	weights, err := tensor.FromSlice(weightData, targets.Shape(), backend)
	if err != nil {
		panic(err)
	}

	return predictions.Mul(weights).Sum()
}

// hingeTerm computes mean(relu(margin − target·pred)).
func hingeTerm[B tensor.Backend](predictions, targets *tensor.Tensor[float32, B], margin float32) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("losses: predictions and targets must have the same shape")
	}

	n := predictions.Shape().NumElements()
	slack := targets.Mul(predictions).MulScalar(-1).AddScalar(margin)
	return nn.ReLUFunc(slack).Sum().MulScalar(1 / float32(n))
}
