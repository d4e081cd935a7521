package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/sqnxt/internal/backend/cpu"
	"github.com/born-ml/sqnxt/internal/tensor"
)

func TestMaxPool2D_CeilMode(t *testing.T) {
	backend := cpu.New()
	pool := NewMaxPool2D(3, 2, 0, true, backend)

	output := pool.Forward(tensor.Randn[float32](tensor.Shape{1, 2, 110, 110}, backend))
	assert.Equal(t, tensor.Shape{1, 2, 55, 55}, output.Shape())
	assert.Equal(t, [2]int{55, 55}, pool.ComputeOutputSize(110, 110))
	assert.True(t, pool.CeilMode())
	assert.Empty(t, pool.Parameters())
	assert.Empty(t, pool.StateDict())
}

func TestMaxPool2D_Values(t *testing.T) {
	backend := cpu.New()
	pool := NewMaxPool2D(2, 2, 0, false, backend)

	input := fromSlice(t, backend, tensor.Shape{1, 1, 4, 4},
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16)

	assert.Equal(t, []float32{6, 8, 14, 16}, pool.Forward(input).Data())
}

func TestAvgPool2D_Global(t *testing.T) {
	backend := cpu.New()
	pool := NewAvgPool2D(7, 7, 0, false, backend)

	input := tensor.Full[float32](tensor.Shape{2, 3, 7, 7}, 2.5, backend)
	output := pool.Forward(input)

	assert.Equal(t, tensor.Shape{2, 3, 1, 1}, output.Shape())
	for _, v := range output.Data() {
		assert.InDelta(t, 2.5, v, 1e-6)
	}
}

func TestPool_InvalidConfig(t *testing.T) {
	backend := cpu.New()

	assert.Panics(t, func() { NewMaxPool2D(0, 1, 0, false, backend) })
	assert.Panics(t, func() { NewAvgPool2D(2, 0, 0, false, backend) })
	assert.Panics(t, func() { NewMaxPool2D(3, 2, 2, false, backend) })
}

func TestReLU(t *testing.T) {
	backend := cpu.New()
	relu := NewReLU[testBackend]()

	input := fromSlice(t, backend, tensor.Shape{4}, -1, 0, 0.5, 2)
	assert.Equal(t, []float32{0, 0, 0.5, 2}, relu.Forward(input).Data())
	assert.Empty(t, relu.Parameters())
}

func TestFlatten(t *testing.T) {
	backend := cpu.New()
	flatten := NewFlatten[testBackend]()

	output := flatten.Forward(tensor.Zeros[float32](tensor.Shape{2, 128, 1, 1}, backend))
	assert.Equal(t, tensor.Shape{2, 128}, output.Shape())

	assert.Panics(t, func() {
		flatten.Forward(tensor.Zeros[float32](tensor.Shape{4}, backend))
	})
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(3, 2, backend)

	copy(layer.Weight().Tensor().Data(), []float32{1, 0, -1, 2, 1, 0})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -0.5})

	input := fromSlice(t, backend, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	output := layer.Forward(input)

	assert.Equal(t, tensor.Shape{2, 2}, output.Shape())
	// row 0: [1-3, 2+2] + bias, row 1: [4-6, 8+5] + bias
	assert.Equal(t, []float32{-1.5, 3.5, -1.5, 12.5}, output.Data())
	assert.Equal(t, 8, CountParameters[testBackend](layer))
}

func TestLinear_InvalidInput(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(3, 2, backend)

	assert.Panics(t, func() {
		layer.Forward(tensor.Zeros[float32](tensor.Shape{2, 4}, backend))
	})
}

func TestSequential(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(4, backend)
	inner := NewSequential[testBackend](bn, NewReLU[testBackend]())
	model := NewSequential[testBackend](
		NewConv2D(2, 4, [2]int{1, 1}, 1, [2]int{0, 0}, false, backend),
		inner,
	)

	assert.Equal(t, 2, model.Len())
	assert.Same(t, inner, model.Module(1))
	assert.Panics(t, func() { model.Module(2) })

	sd := model.StateDict()
	assert.Len(t, sd, 5)
	assert.Contains(t, sd, "0.weight")
	assert.Contains(t, sd, "1.0.running_var")

	SetTraining[testBackend](model, true)
	assert.True(t, bn.Training())
	assert.True(t, model.Training())
	SetTraining[testBackend](model, false)
	assert.False(t, bn.Training())

	output := model.Forward(tensor.Randn[float32](tensor.Shape{1, 2, 3, 3}, backend))
	assert.Equal(t, tensor.Shape{1, 4, 3, 3}, output.Shape())
	for _, v := range output.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}
