package nn

import (
	"math"
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/sqnxt/internal/tensor"
)

// Weight initializers draw from one shared source. rand.Source is not safe
// for concurrent use, so every draw holds initMu.
var (
	initMu  sync.Mutex
	initSrc = rand.NewSource(uint64(time.Now().UnixNano()))
)

// Seed resets the source used by the weight initializers.
//
// Layers constructed after Seed(s) receive the same weights as layers
// constructed in the same order after any other call to Seed(s), provided
// no other goroutine constructs layers in between.
func Seed(seed uint64) {
	initMu.Lock()
	defer initMu.Unlock()
	initSrc.Seed(seed)
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
//
// Parameters:
//   - fanIn: Number of input units
//   - fanOut: Number of output units
//   - shape: Shape of the weight tensor
//   - backend: Backend to use for tensor creation
//
// Returns a tensor initialized with Xavier distribution.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return sample(shape, distuv.Uniform{Min: -bound, Max: bound, Src: initSrc}, backend)
}

// Normal initializes a tensor with draws from N(0, std^2).
func Normal[B tensor.Backend](std float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return sample(shape, distuv.Normal{Mu: 0, Sigma: std, Src: initSrc}, backend)
}

func sample[B tensor.Backend](shape tensor.Shape, dist distuv.Rander, backend B) *tensor.Tensor[float32, B] {
	initMu.Lock()
	defer initMu.Unlock()
	return tensor.Sample[float32](shape, dist, backend)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
