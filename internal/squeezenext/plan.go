package squeezenext

import (
	"fmt"
	"math"

	"github.com/born-ml/sqnxt/internal/tensor"
)

// Fixed architecture constants.
const (
	// NumStages is the number of residual stages.
	NumStages = 4

	// DefaultClasses is the classifier width used when none is given.
	DefaultClasses = 1000

	// DefaultInputSize is the reference input resolution.
	DefaultInputSize = 224

	// InputChannels is the channel count of the expected RGB input.
	InputChannels = 3

	stemChannels  = 64
	finalChannels = 128
	headPoolSize  = 7
)

var (
	stageChannels = [NumStages]int{32, 64, 128, 256}
	stageStrides  = [NumStages]int{1, 2, 2, 2}
)

// StageChannels returns the unscaled base channel count of every stage.
func StageChannels() [NumStages]int { return stageChannels }

// StageStrides returns the stride carried by the first block of every stage.
func StageStrides() [NumStages]int { return stageStrides }

// Config selects the width, depth and classifier size of a network.
type Config struct {
	// Width multiplies every channel count; widths are rounded to the nearest integer.
	Width float64
	// Blocks is the number of residual blocks in each of the four stages.
	Blocks []int
	// Classes is the number of output logits.
	Classes int
}

// Validate checks the config without deriving the plan.
func (c Config) Validate() error {
	if math.IsNaN(c.Width) || math.IsInf(c.Width, 0) || c.Width <= 0 {
		return fmt.Errorf("%w: width multiplier %v must be a positive number", ErrConfig, c.Width)
	}
	if len(c.Blocks) != NumStages {
		return fmt.Errorf("%w: expected %d stage block counts, got %d", ErrConfig, NumStages, len(c.Blocks))
	}
	for i, n := range c.Blocks {
		if n < 1 {
			return fmt.Errorf("%w: stage %d block count %d must be at least 1", ErrConfig, i+1, n)
		}
	}
	if c.Classes < 1 {
		return fmt.Errorf("%w: class count %d must be at least 1", ErrConfig, c.Classes)
	}
	return nil
}

// Plan is the fully derived layer layout of a network.
type Plan struct {
	Width   float64
	Stem    ConvUnitConfig
	Pool    tensor.Pool2D
	Stages  [NumStages][]BlockConfig
	Final   ConvUnitConfig
	Head    tensor.Pool2D
	Classes int
}

// Plan derives the layer layout, validating every unit width.
func (c Config) Plan() (Plan, error) {
	if err := c.Validate(); err != nil {
		return Plan{}, err
	}

	p := Plan{
		Width: c.Width,
		Stem: ConvUnitConfig{
			In:      InputChannels,
			Out:     scaled(c.Width, stemChannels),
			Kernel:  [2]int{7, 7},
			Stride:  2,
			Padding: [2]int{1, 1},
		},
		Pool:    tensor.Pool2D{KernelSize: 3, Stride: 2, CeilMode: true},
		Head:    tensor.Pool2D{KernelSize: headPoolSize, Stride: headPoolSize},
		Classes: c.Classes,
	}
	if err := p.Stem.Validate(); err != nil {
		return Plan{}, fmt.Errorf("stem: %w", err)
	}

	running := stemChannels
	for i := range p.Stages {
		p.Stages[i], running = planStage(running, c.Width, i, c.Blocks[i])
		for j, block := range p.Stages[i] {
			if err := block.Validate(); err != nil {
				return Plan{}, fmt.Errorf("stage %d block %d: %w", i+1, j+1, err)
			}
		}
	}

	p.Final = pointwise(scaled(c.Width, running), scaled(c.Width, finalChannels), 1)
	if err := p.Final.Validate(); err != nil {
		return Plan{}, fmt.Errorf("final unit: %w", err)
	}

	return p, nil
}

// planStage lays out one stage. running is the unscaled channel base of the
// previous stage; the first block widens from its scaled value and carries
// the stage stride. The returned base is the unscaled stage base, which the
// next stage scales again.
func planStage(running int, width float64, stage, count int) ([]BlockConfig, int) {
	out := scaled(width, stageChannels[stage])
	blocks := make([]BlockConfig, count)

	blocks[0] = BlockConfig{In: scaled(width, running), Out: out, Stride: stageStrides[stage]}
	for j := 1; j < count; j++ {
		blocks[j] = BlockConfig{In: out, Out: out, Stride: 1}
	}

	return blocks, stageChannels[stage]
}

// scaled returns round(width * channels).
func scaled(width float64, channels int) int {
	return int(math.Round(width * float64(channels)))
}

// Features returns the width of the flattened head input.
func (p Plan) Features() int {
	return p.Final.Out
}

// NumBlocks returns the total number of residual blocks.
func (p Plan) NumBlocks() int {
	total := 0
	for _, stage := range p.Stages {
		total += len(stage)
	}
	return total
}

// NumParameters returns the learnable scalar count of the network,
// including the classifier weight and bias.
func (p Plan) NumParameters() int {
	total := p.Stem.NumParameters() + p.Final.NumParameters()
	for _, stage := range p.Stages {
		for _, block := range stage {
			total += block.NumParameters()
		}
	}
	return total + p.Features()*p.Classes + p.Classes
}

// FeatureSize returns the spatial size of the feature map fed to the head
// for an input of size (h, w). Non-positive results mean the input is too small.
func (p Plan) FeatureSize(h, w int) (int, int) {
	h, w = p.Stem.OutputSize(h, w)
	h, w = p.Pool.OutputSize(h), p.Pool.OutputSize(w)
	for _, stage := range p.Stages {
		h, w = stage[0].Units()[0].OutputSize(h, w)
	}
	return h, w
}

// CheckInput validates an input shape [N, 3, H, W] against the plan.
// The head flattens its pooled map directly into the classifier, so the
// pooled map must be exactly 1x1: for the default 7x7 head pool the
// feature map must be 7 to 13 pixels on each side.
func (p Plan) CheckInput(shape tensor.Shape) error {
	if len(shape) != 4 {
		return fmt.Errorf("%w: input must be 4D [N,%d,H,W], got %v", ErrConfig, InputChannels, shape)
	}
	if shape[0] < 1 {
		return fmt.Errorf("%w: batch size %d must be at least 1", ErrConfig, shape[0])
	}
	if shape[1] != InputChannels {
		return fmt.Errorf("%w: input must have %d channels, got %d", ErrConfig, InputChannels, shape[1])
	}

	h, w := p.FeatureSize(shape[2], shape[3])
	if h < p.Head.KernelSize || w < p.Head.KernelSize {
		return fmt.Errorf("%w: input %dx%d is too small: feature map %dx%d is below the %dx%d head pool",
			ErrConfig, shape[2], shape[3], h, w, p.Head.KernelSize, p.Head.KernelSize)
	}
	if p.Head.OutputSize(h) != 1 || p.Head.OutputSize(w) != 1 {
		return fmt.Errorf("%w: input %dx%d is too large: feature map %dx%d does not pool to 1x1",
			ErrConfig, shape[2], shape[3], h, w)
	}
	return nil
}
