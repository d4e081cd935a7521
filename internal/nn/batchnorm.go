package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/sqnxt/internal/tensor"
)

// Default BatchNorm2D hyperparameters.
const (
	DefaultBatchNormEpsilon  = 1e-5
	DefaultBatchNormMomentum = 0.9
)

// BatchNorm2D normalizes every channel of an [N, C, H, W] tensor.
//
// Formula: Y = gamma * (X - mean) / sqrt(var + eps) + beta
//
// Where:
//   - gamma is the learnable scale parameter [C], initialized to ones
//   - beta is the learnable shift parameter [C], initialized to zeros
//   - mean and var are the running statistics in inference mode, or the
//     statistics of the current batch in training mode
//
// In training mode every forward pass also updates the running statistics:
//
//	running = momentum*running + (1-momentum)*batch
//
// Running statistics are buffers: they appear in StateDict as
// "running_mean" and "running_var" but not in Parameters.
//
// Example:
//
//	bn := nn.NewBatchNorm2D(64, backend)
//	output := bn.Forward(features) // [N, 64, H, W] -> [N, 64, H, W]
type BatchNorm2D[B tensor.Backend] struct {
	Gamma    *Parameter[B] // learnable scale [C]
	Beta     *Parameter[B] // learnable shift [C]
	Epsilon  float64       // numerical stability constant
	Momentum float64       // running statistics decay

	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]

	channels int
	training bool
	backend  B
}

// NewBatchNorm2D creates a BatchNorm2D layer in inference mode with
// epsilon 1e-5 and momentum 0.9.
//
// Running mean starts at zeros and running variance at ones, so a fresh
// layer in inference mode computes x / sqrt(1 + eps).
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	if channels <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid channels %d", channels))
	}

	shape := tensor.Shape{channels}
	return &BatchNorm2D[B]{
		Gamma:       NewParameter("gamma", Ones(shape, backend)),
		Beta:        NewParameter("beta", Zeros(shape, backend)),
		Epsilon:     DefaultBatchNormEpsilon,
		Momentum:    DefaultBatchNormMomentum,
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		channels:    channels,
		backend:     backend,
	}
}

// Forward normalizes the input channel by channel.
//
// Input and output shape: [batch, channels, height, width].
//
// The normalization is folded into a single per-channel affine map:
//
//	scale = gamma / sqrt(var + eps)
//	shift = beta - mean*scale
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", inputShape[1], bn.channels))
	}

	mean, variance := bn.runningMean.Data(), bn.runningVar.Data()
	if bn.training {
		batchMean, batchVar := bn.backend.ChannelMoments(input.Raw())
		mean, variance = batchMean.AsFloat32(), batchVar.AsFloat32()
		bn.updateRunningStats(mean, variance)
	}

	scale := tensor.Zeros[float32](tensor.Shape{bn.channels}, bn.backend)
	shift := tensor.Zeros[float32](tensor.Shape{bn.channels}, bn.backend)
	gamma, beta := bn.Gamma.Tensor().Data(), bn.Beta.Tensor().Data()
	scaleData, shiftData := scale.Data(), shift.Data()
	for c := 0; c < bn.channels; c++ {
		s := float64(gamma[c]) / math.Sqrt(float64(variance[c])+bn.Epsilon)
		scaleData[c] = float32(s)
		shiftData[c] = float32(float64(beta[c]) - float64(mean[c])*s)
	}

	outputRaw := bn.backend.ChannelAffine(input.Raw(), scale.Raw(), shift.Raw())
	return tensor.New[float32, B](outputRaw, bn.backend)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance []float32) {
	m := float32(bn.Momentum)
	runningMean, runningVar := bn.runningMean.Data(), bn.runningVar.Data()
	for c := range runningMean {
		runningMean[c] = m*runningMean[c] + (1-m)*mean[c]
		runningVar[c] = m*runningVar[c] + (1-m)*variance[c]
	}
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.Gamma, bn.Beta}
}

// StateDict returns the learnable parameters and the running statistics.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma":        bn.Gamma.Tensor().Raw(),
		"beta":         bn.Beta.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// SetTraining switches between batch statistics (true) and running statistics (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer uses batch statistics.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// Channels returns the number of normalized channels.
func (bn *BatchNorm2D[B]) Channels() int {
	return bn.channels
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(channels=%d, eps=%g, momentum=%g)", bn.channels, bn.Epsilon, bn.Momentum)
}
