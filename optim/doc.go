// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides an optimizer wrapper that keeps Lipschitz-constrained
// layers inside their feasible set during training.
//
// # Overview
//
// This package contains:
//   - Constrained: wraps any Born optimizer and hard-projects the registered
//     Lipschitz layers after every step
//
// The gradient update itself is untouched; only a post-step projection hook
// is added, so Constrained composes with SGD, Adam, or any custom optimizer
// implementing Born's optim.Optimizer interface.
//
// # Basic Usage
//
//	import (
//	    bornoptim "github.com/born-ml/born/optim"
//
//	    "github.com/born-ml/born-lip/model"
//	    "github.com/born-ml/born-lip/optim"
//	)
//
//	m := model.NewSequential[B](1.0, ...)
//
//	inner := bornoptim.NewSGD(m.Parameters(), bornoptim.SGDConfig{LR: 0.01}, backend)
//	optimizer := optim.NewConstrained[B](inner, m.LipschitzLayers()...)
//
//	for epoch := range epochs {
//	    grads := trainStep(m, batch, backend)
//	    optimizer.Step(grads) // gradient update, then projection
//	    optimizer.ZeroGrad()
//	}
//
// Projecting after every step keeps the stored kernels close to the
// constrained set, so the forward-time conditioning stays cheap and the
// exported weights satisfy the bound without a separate Condense pass.
package optim
