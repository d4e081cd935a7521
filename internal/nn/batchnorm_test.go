package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/sqnxt/internal/backend/cpu"
	"github.com/born-ml/sqnxt/internal/tensor"
)

func TestBatchNorm2D_Creation(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(4, backend)

	assert.Equal(t, 4, bn.Channels())
	assert.False(t, bn.Training())
	assert.Len(t, bn.Parameters(), 2)
	assert.Equal(t, 8, CountParameters[testBackend](bn))

	sd := bn.StateDict()
	for _, key := range []string{"gamma", "beta", "running_mean", "running_var"} {
		assert.Contains(t, sd, key)
	}
	assert.Equal(t, []float32{0, 0, 0, 0}, bn.RunningMean().Data())
	assert.Equal(t, []float32{1, 1, 1, 1}, bn.RunningVar().Data())
}

func TestBatchNorm2D_Inference(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(2, backend)

	copy(bn.Gamma.Tensor().Data(), []float32{2, 1})
	copy(bn.Beta.Tensor().Data(), []float32{1, 0})
	copy(bn.RunningMean().Data(), []float32{1, -1})
	copy(bn.RunningVar().Data(), []float32{4, 1})

	input := fromSlice(t, backend, tensor.Shape{1, 2, 1, 2}, 1, 3, -1, 0)
	output := bn.Forward(input).Data()

	sd0 := math.Sqrt(4 + DefaultBatchNormEpsilon)
	sd1 := math.Sqrt(1 + DefaultBatchNormEpsilon)
	expected := []float64{
		2*(1-1)/sd0 + 1,
		2*(3-1)/sd0 + 1,
		(-1 + 1) / sd1,
		(0 + 1) / sd1,
	}
	for i, want := range expected {
		assert.InDelta(t, want, output[i], 1e-5, "index %d", i)
	}

	// Inference leaves the running statistics alone.
	assert.Equal(t, []float32{1, -1}, bn.RunningMean().Data())
}

func TestBatchNorm2D_Training(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(1, backend)
	bn.SetTraining(true)

	// Batch mean 2.5, biased variance 1.25.
	input := fromSlice(t, backend, tensor.Shape{2, 1, 1, 2}, 1, 2, 3, 4)
	output := bn.Forward(input).Data()

	sd := math.Sqrt(1.25 + DefaultBatchNormEpsilon)
	for i, x := range []float64{1, 2, 3, 4} {
		assert.InDelta(t, (x-2.5)/sd, output[i], 1e-5)
	}

	assert.InDelta(t, 0.1*2.5, bn.RunningMean().Data()[0], 1e-6)
	assert.InDelta(t, 0.9+0.1*1.25, bn.RunningVar().Data()[0], 1e-6)
}

func TestBatchNorm2D_InvalidInput(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(3, backend)

	assert.Panics(t, func() {
		bn.Forward(tensor.Zeros[float32](tensor.Shape{1, 2, 2, 2}, backend))
	})
	assert.Panics(t, func() {
		NewBatchNorm2D(0, backend)
	})
}
