package squeezenext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sqnxt/internal/backend/cpu"
	"github.com/born-ml/sqnxt/internal/nn"
	"github.com/born-ml/sqnxt/internal/tensor"
)

func TestBlockConfig_Reduction(t *testing.T) {
	tests := []struct {
		name        string
		config      BlockConfig
		denominator int
		projection  bool
	}{
		{"strided widening", BlockConfig{In: 64, Out: 128, Stride: 2}, 1, true},
		{"strided narrowing", BlockConfig{In: 256, Out: 128, Stride: 2}, 1, true},
		{"strided equal", BlockConfig{In: 64, Out: 64, Stride: 2}, 1, true},
		{"narrowing", BlockConfig{In: 128, Out: 32, Stride: 1}, 4, true},
		{"equal", BlockConfig{In: 64, Out: 64, Stride: 1}, 2, false},
		{"widening", BlockConfig{In: 32, Out: 64, Stride: 1}, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.denominator, tt.config.ReductionDenominator())
			assert.Equal(t, tt.projection, tt.config.UsesProjectionShortcut())

			_, ok := tt.config.Shortcut()
			assert.Equal(t, tt.projection, ok)
		})
	}
}

func TestBlockConfig_Units(t *testing.T) {
	units := BlockConfig{In: 64, Out: 32, Stride: 1}.Units()

	// d = 4: 64 -> 16 -> 8 -> 8 -> 8 -> 32
	expected := [5]ConvUnitConfig{
		{In: 64, Out: 16, Kernel: [2]int{1, 1}, Stride: 1},
		{In: 16, Out: 8, Kernel: [2]int{1, 1}, Stride: 1},
		{In: 8, Out: 8, Kernel: [2]int{1, 3}, Stride: 1, Padding: [2]int{0, 1}},
		{In: 8, Out: 8, Kernel: [2]int{3, 1}, Stride: 1, Padding: [2]int{1, 0}},
		{In: 8, Out: 32, Kernel: [2]int{1, 1}, Stride: 1},
	}
	assert.Equal(t, expected, units)

	strided := BlockConfig{In: 64, Out: 128, Stride: 2}
	units = strided.Units()
	assert.Equal(t, 2, units[0].Stride, "first unit carries the block stride")
	assert.Equal(t, 64, units[0].Out)
	assert.Equal(t, 32, units[1].Out)
	for _, u := range units[1:] {
		assert.Equal(t, 1, u.Stride)
	}

	shortcut, ok := strided.Shortcut()
	require.True(t, ok)
	assert.Equal(t, pointwise(64, 128, 2), shortcut)
}

func TestBlockConfig_ChannelsChain(t *testing.T) {
	for _, config := range []BlockConfig{
		{In: 64, Out: 32, Stride: 1},
		{In: 32, Out: 32, Stride: 1},
		{In: 32, Out: 64, Stride: 2},
		{In: 96, Out: 48, Stride: 1},
	} {
		units := config.Units()
		assert.Equal(t, config.In, units[0].In)
		for i := 1; i < len(units); i++ {
			assert.Equal(t, units[i-1].Out, units[i].In, "%s unit %d", config, i+1)
		}
		assert.Equal(t, config.Out, units[4].Out)
	}
}

func TestBlockConfig_Validate(t *testing.T) {
	assert.NoError(t, BlockConfig{In: 64, Out: 64, Stride: 1}.Validate())

	err := BlockConfig{In: 3, Out: 8, Stride: 1}.Validate()
	assert.ErrorIs(t, err, ErrConfig, "3/4 collapses to zero channels")

	err = BlockConfig{In: 64, Out: 64, Stride: 3}.Validate()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestResidualBlock_Identity(t *testing.T) {
	backend := cpu.New()
	config := BlockConfig{In: 8, Out: 8, Stride: 1}
	block := NewResidualBlock(config, backend)

	_, isReLU := block.Shortcut().(*nn.ReLU[*cpu.CPUBackend])
	assert.True(t, isReLU)
	assert.Len(t, block.Units(), 5)
	assert.Len(t, block.Parameters(), 15)
	assert.Equal(t, config.NumParameters(), nn.CountParameters[*cpu.CPUBackend](block))

	x := tensor.Randn[float32](tensor.Shape{2, 8, 5, 5}, backend)
	y := block.Forward(x)
	assert.Equal(t, tensor.Shape{2, 8, 5, 5}, y.Shape())
	for _, v := range y.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func TestResidualBlock_IdentityShortcutValue(t *testing.T) {
	backend := cpu.New()
	block := NewResidualBlock(BlockConfig{In: 4, Out: 4, Stride: 1}, backend)

	// Zero kernels make every body unit output zero after BN and ReLU,
	// leaving y = ReLU(0 + ReLU(x)) = ReLU(x).
	for _, p := range block.Parameters() {
		if p.Name() == "weight" {
			clear(p.Tensor().Data())
		}
	}

	x := tensor.Randn[float32](tensor.Shape{1, 4, 3, 3}, backend)
	y := block.Forward(x)
	want := x.ReLU().Data()
	for i, v := range y.Data() {
		assert.InDelta(t, want[i], v, 1e-6)
	}
}

func TestResidualBlock_Projection(t *testing.T) {
	backend := cpu.New()

	block := NewResidualBlock(BlockConfig{In: 8, Out: 16, Stride: 2}, backend)
	_, isUnit := block.Shortcut().(*ConvUnit[*cpu.CPUBackend])
	assert.True(t, isUnit)
	assert.Len(t, block.Parameters(), 18)

	y := block.Forward(tensor.Randn[float32](tensor.Shape{1, 8, 7, 7}, backend))
	assert.Equal(t, tensor.Shape{1, 16, 4, 4}, y.Shape())

	sd := block.StateDict()
	assert.Contains(t, sd, "body.0.conv.weight")
	assert.Contains(t, sd, "body.4.bn.running_var")
	assert.Contains(t, sd, "shortcut.conv.weight")
	assert.Equal(t, tensor.Shape{16, 8, 1, 1}, sd["shortcut.conv.weight"].Shape())
}

func TestResidualBlock_SetTraining(t *testing.T) {
	backend := cpu.New()
	block := NewResidualBlock(BlockConfig{In: 8, Out: 4, Stride: 1}, backend)

	block.SetTraining(true)
	assert.True(t, block.Training())
	for _, unit := range block.Units() {
		assert.True(t, unit.Training())
	}
	assert.True(t, block.Shortcut().(*ConvUnit[*cpu.CPUBackend]).Training())
}

func TestConvUnit(t *testing.T) {
	backend := cpu.New()
	config := ConvUnitConfig{In: 3, Out: 4, Kernel: [2]int{1, 3}, Stride: 1, Padding: [2]int{0, 1}}
	unit := NewConvUnit(config, backend)

	assert.Equal(t, config, unit.Config())
	assert.Equal(t, 3*4*3+2*4, config.NumParameters())
	assert.Equal(t, config.NumParameters(), nn.CountParameters[*cpu.CPUBackend](unit))
	assert.Len(t, unit.StateDict(), 5)

	y := unit.Forward(tensor.Randn[float32](tensor.Shape{2, 3, 6, 6}, backend))
	assert.Equal(t, tensor.Shape{2, 4, 6, 6}, y.Shape())
	for _, v := range y.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}

	h, w := config.OutputSize(6, 6)
	assert.Equal(t, 6, h)
	assert.Equal(t, 6, w)

	assert.ErrorIs(t, ConvUnitConfig{In: 0, Out: 4, Kernel: [2]int{1, 1}, Stride: 1}.Validate(), ErrConfig)
}
