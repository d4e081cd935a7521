package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/sqnxt/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input, creating a
// sequential pipeline of transformations.
//
// Example:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewAvgPool2D(7, 7, 0, false, backend),
//	    nn.NewFlatten[Backend](),
//	    nn.NewLinear(128, 1000, backend),
//	)
//
//	output := model.Forward(input)
//
// This is equivalent to:
//
//	h1 := pool.Forward(input)
//	h2 := flatten.Forward(h1)
//	output := linear.Forward(h2)
type Sequential[B tensor.Backend] struct {
	modules  []Module[B]
	training bool
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
//
// The output of each module becomes the input to the next module.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input

	for _, module := range s.modules {
		output = module.Forward(output)
	}

	return output
}

// Parameters returns all learnable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]

	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}

	return params
}

// Add appends a module to the sequence.
//
// This allows building models incrementally:
//
//	features := nn.NewSequential[Backend]()
//	for _, block := range blocks {
//	    features.Add(block)
//	}
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic(fmt.Sprintf("Sequential.Module: index %d out of bounds [0, %d)", index, len(s.modules)))
	}
	return s.modules[index]
}

// Modules returns the contained modules in order.
func (s *Sequential[B]) Modules() []Module[B] {
	return s.modules
}

// StateDict returns a map of tensor names to raw tensors.
//
// Names are prefixed with their module index (e.g., "0.weight", "1.running_mean")
// to avoid name collisions.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	for i, module := range s.modules {
		MergeStateDict(stateDict, module.StateDict(), strconv.Itoa(i))
	}

	return stateDict
}

// SetTraining switches every contained module that supports it.
func (s *Sequential[B]) SetTraining(training bool) {
	s.training = training
	for _, module := range s.modules {
		SetTraining(module, training)
	}
}

// Training reports the mode last set with SetTraining.
func (s *Sequential[B]) Training() bool {
	return s.training
}
