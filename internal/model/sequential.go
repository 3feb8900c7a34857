// Package model provides containers that aggregate per-layer Lipschitz
// bounds into a global bound for the whole network.
package model

import (
	"fmt"
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/layers"
)

// stateDicter matches modules that support parameter serialization.
type stateDicter interface {
	StateDict() map[string]*tensor.RawTensor
}

// stateLoader matches modules that support parameter loading.
type stateLoader interface {
	LoadStateDict(map[string]*tensor.RawTensor) error
}

// Sequential chains modules like Born's Sequential while tracking the
// Lipschitz bound of the composition.
//
// The container distributes its global Lipschitz budget k over the n
// Lipschitz-aware layers it contains: each gets a per-layer bound of k^(1/n),
// so the product of per-layer bounds equals the global bound. Modules that do
// not implement layers.LipschitzLayer (activations, poolings from other
// packages) are assumed to be 1-Lipschitz; composing in a module with a
// larger constant voids the guarantee.
//
// Example:
//
//	m := model.NewSequential[B](1.0,
//	    layers.NewSpectralDense(2, 64, layers.DenseConfig{}, backend),
//	    activations.NewGroupSort2[B](),
//	    layers.NewSpectralDense(64, 1, layers.DenseConfig{}, backend),
//	)
//	m.LipschitzBound() // 1.0
type Sequential[B tensor.Backend] struct {
	modules  []nn.Module[B]
	kCoefLip float32
}

// NewSequential creates a Sequential container with the given global
// Lipschitz budget. A zero budget selects 1.
func NewSequential[B tensor.Backend](kCoefLip float32, modules ...nn.Module[B]) *Sequential[B] {
	if kCoefLip < 0 {
		panic(fmt.Sprintf("model: invalid Lipschitz bound %f", kCoefLip))
	}
	if kCoefLip == 0 {
		kCoefLip = 1
	}
	s := &Sequential[B]{
		modules:  modules,
		kCoefLip: kCoefLip,
	}
	s.distribute()
	return s
}

// distribute spreads the global budget evenly (in the multiplicative sense)
// over the Lipschitz layers.
func (s *Sequential[B]) distribute() {
	lip := s.LipschitzLayers()
	if len(lip) == 0 {
		return
	}
	perLayer := float32(math.Pow(float64(s.kCoefLip), 1/float64(len(lip))))
	for _, layer := range lip {
		layer.SetKCoefLip(perLayer)
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module and redistributes the Lipschitz budget.
func (s *Sequential[B]) Add(module nn.Module[B]) {
	s.modules = append(s.modules, module)
	s.distribute()
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) nn.Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("model: Sequential.Module index out of bounds")
	}
	return s.modules[index]
}

// LipschitzLayers returns the contained Lipschitz-aware layers in order.
func (s *Sequential[B]) LipschitzLayers() []layers.LipschitzLayer[B] {
	var lip []layers.LipschitzLayer[B]
	for _, module := range s.modules {
		if layer, ok := module.(layers.LipschitzLayer[B]); ok {
			lip = append(lip, layer)
		}
	}
	return lip
}

// LipschitzBound returns the product of the per-layer bounds, an upper bound
// on the Lipschitz constant of the whole composition (assuming non-aware
// modules are 1-Lipschitz).
func (s *Sequential[B]) LipschitzBound() float32 {
	bound := float32(1)
	for _, layer := range s.LipschitzLayers() {
		bound *= layer.KCoefLip()
	}
	return bound
}

// Condense hard-projects every Lipschitz layer's kernel in place. Typically
// called after training, or periodically between optimizer steps.
func (s *Sequential[B]) Condense() {
	for _, layer := range s.LipschitzLayers() {
		layer.Condense()
	}
}

// VanillaExport returns a plain Born Sequential with all conditioned weights
// baked in. Modules without an export conversion are passed through as-is.
func (s *Sequential[B]) VanillaExport() *nn.Sequential[B] {
	exported := make([]nn.Module[B], 0, len(s.modules))
	for _, module := range s.modules {
		if exporter, ok := module.(layers.VanillaExporter[B]); ok {
			exported = append(exported, exporter.VanillaExport())
			continue
		}
		exported = append(exported, module)
	}
	return nn.NewSequential(exported...)
}

// StateDict returns a map of parameter names to raw tensors, prefixed with
// the module index to avoid name collisions.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		dicter, ok := module.(stateDicter)
		if !ok {
			continue
		}
		for name, raw := range dicter.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary produced by
// StateDict.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		loader, ok := module.(stateLoader)
		if !ok {
			continue
		}

		moduleStateDict := make(map[string]*tensor.RawTensor)
		prefix := fmt.Sprintf("%d.", i)
		for key, raw := range stateDict {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				moduleStateDict[key[len(prefix):]] = raw
			}
		}

		if len(moduleStateDict) > 0 {
			if err := loader.LoadStateDict(moduleStateDict); err != nil {
				return fmt.Errorf("failed to load module %d: %w", i, err)
			}
		}
	}
	return nil
}
