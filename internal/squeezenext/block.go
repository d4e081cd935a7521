package squeezenext

import (
	"fmt"
	"strings"

	"github.com/born-ml/sqnxt/internal/nn"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// BlockConfig describes one residual block.
type BlockConfig struct {
	In     int
	Out    int
	Stride int
}

// ReductionDenominator returns the factor d by which the first unit shrinks
// the input width: 1 for strided blocks, 4 when the block narrows the
// channel count, 2 otherwise. Stride takes precedence.
func (c BlockConfig) ReductionDenominator() int {
	switch {
	case c.Stride == 2:
		return 1
	case c.In > c.Out:
		return 4
	default:
		return 2
	}
}

// UsesProjectionShortcut reports whether the shortcut is a 1x1 ConvUnit
// rather than a plain ReLU of the input.
func (c BlockConfig) UsesProjectionShortcut() bool {
	return c.Stride == 2 || c.In > c.Out
}

// Units returns the five chained unit configs:
//
//	in -> in/d          1x1, block stride
//	in/d -> in/2d       1x1
//	in/2d -> in/2d      1x3, padding (0, 1)
//	in/2d -> in/2d      3x1, padding (1, 0)
//	in/2d -> out        1x1
func (c BlockConfig) Units() [5]ConvUnitConfig {
	d := c.ReductionDenominator()
	reduced, half := c.In/d, c.In/(2*d)

	return [5]ConvUnitConfig{
		pointwise(c.In, reduced, c.Stride),
		pointwise(reduced, half, 1),
		{In: half, Out: half, Kernel: [2]int{1, 3}, Stride: 1, Padding: [2]int{0, 1}},
		{In: half, Out: half, Kernel: [2]int{3, 1}, Stride: 1, Padding: [2]int{1, 0}},
		pointwise(half, c.Out, 1),
	}
}

// Shortcut returns the projection unit config; ok is false for an identity shortcut.
func (c BlockConfig) Shortcut() (config ConvUnitConfig, ok bool) {
	if !c.UsesProjectionShortcut() {
		return ConvUnitConfig{}, false
	}
	return pointwise(c.In, c.Out, c.Stride), true
}

// Validate reports a block whose derived widths are not all positive.
func (c BlockConfig) Validate() error {
	if c.Stride != 1 && c.Stride != 2 {
		return fmt.Errorf("%w: block stride %d must be 1 or 2", ErrConfig, c.Stride)
	}
	for i, unit := range c.Units() {
		if err := unit.Validate(); err != nil {
			return fmt.Errorf("block %d->%d unit %d: %w", c.In, c.Out, i+1, err)
		}
	}
	return nil
}

// NumParameters returns the learnable scalar count of the block.
func (c BlockConfig) NumParameters() int {
	total := 0
	for _, unit := range c.Units() {
		total += unit.NumParameters()
	}
	if shortcut, ok := c.Shortcut(); ok {
		total += shortcut.NumParameters()
	}
	return total
}

// String returns a compact description such as "64->128/2 d=1 proj".
func (c BlockConfig) String() string {
	kind := "id"
	if c.UsesProjectionShortcut() {
		kind = "proj"
	}
	return fmt.Sprintf("%d->%d/%d d=%d %s", c.In, c.Out, c.Stride, c.ReductionDenominator(), kind)
}

// ResidualBlock is the SqueezeNext bottleneck block:
//
//	y = ReLU(body(x) + shortcut(x))
//
// where body is five ConvUnits and shortcut is either a projecting
// ConvUnit or ReLU(x).
type ResidualBlock[B tensor.Backend] struct {
	config   BlockConfig
	body     *nn.Sequential[B]
	shortcut nn.Module[B]
}

// NewResidualBlock builds a block from a config that passed Validate.
func NewResidualBlock[B tensor.Backend](config BlockConfig, backend B) *ResidualBlock[B] {
	body := nn.NewSequential[B]()
	for _, unit := range config.Units() {
		body.Add(NewConvUnit(unit, backend))
	}

	var shortcut nn.Module[B] = nn.NewReLU[B]()
	if projection, ok := config.Shortcut(); ok {
		shortcut = NewConvUnit(projection, backend)
	}

	return &ResidualBlock[B]{
		config:   config,
		body:     body,
		shortcut: shortcut,
	}
}

// Forward computes ReLU(body(x) + shortcut(x)).
func (b *ResidualBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.body.Forward(x).Add(b.shortcut.Forward(x)).ReLU()
}

// Parameters returns the body parameters followed by the shortcut parameters.
func (b *ResidualBlock[B]) Parameters() []*nn.Parameter[B] {
	return append(b.body.Parameters(), b.shortcut.Parameters()...)
}

// StateDict returns tensors under "body.<i>." and "shortcut." prefixes.
func (b *ResidualBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	nn.MergeStateDict(stateDict, b.body.StateDict(), "body")
	nn.MergeStateDict(stateDict, b.shortcut.StateDict(), "shortcut")
	return stateDict
}

// SetTraining switches every batch norm in the block.
func (b *ResidualBlock[B]) SetTraining(training bool) {
	b.body.SetTraining(training)
	nn.SetTraining(b.shortcut, training)
}

// Training reports whether the block normalizes with batch statistics.
func (b *ResidualBlock[B]) Training() bool {
	return b.body.Training()
}

// Config returns the block configuration.
func (b *ResidualBlock[B]) Config() BlockConfig {
	return b.config
}

// Units returns the five chained units.
func (b *ResidualBlock[B]) Units() []*ConvUnit[B] {
	units := make([]*ConvUnit[B], 0, b.body.Len())
	for _, m := range b.body.Modules() {
		units = append(units, m.(*ConvUnit[B]))
	}
	return units
}

// Shortcut returns the shortcut path module.
func (b *ResidualBlock[B]) Shortcut() nn.Module[B] {
	return b.shortcut
}

// String returns a multi-line representation of the block.
func (b *ResidualBlock[B]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ResidualBlock(%s)", b.config)
	for _, unit := range b.Units() {
		fmt.Fprintf(&sb, "\n  %s", unit)
	}
	fmt.Fprintf(&sb, "\n  shortcut: %v", b.shortcut)
	return sb.String()
}
