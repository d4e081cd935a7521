package squeezenext

import (
	"fmt"
	"strings"

	"github.com/born-ml/sqnxt/internal/nn"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// Network is a SqueezeNext image classifier.
//
// Architecture (width multiplier w, input [N, 3, 224, 224]):
//
//	Stem:    ConvUnit 3 -> 64w, 7x7, stride 2, padding 1  -> [N, 64w, 110, 110]
//	         MaxPool 3x3, stride 2, ceil mode              -> [N, 64w, 55, 55]
//	Stage 1: blocks -> 32w,  stride 1                      -> [N, 32w, 55, 55]
//	Stage 2: blocks -> 64w,  stride 2                      -> [N, 64w, 28, 28]
//	Stage 3: blocks -> 128w, stride 2                      -> [N, 128w, 14, 14]
//	Stage 4: blocks -> 256w, stride 2                      -> [N, 256w, 7, 7]
//	Final:   ConvUnit 256w -> 128w, 1x1                    -> [N, 128w, 7, 7]
//	Head:    AvgPool 7x7, Flatten, Linear 128w -> classes  -> [N, classes]
//
// The returned logits are unnormalized.
type Network[B tensor.Backend] struct {
	plan     Plan
	features *nn.Sequential[B] // stem, pool, stages, final unit
	output   *nn.Sequential[B] // avg pool, flatten, linear
	backend  B
}

// NewNetwork builds a network for config with freshly initialized weights.
func NewNetwork[B tensor.Backend](config Config, backend B) (*Network[B], error) {
	plan, err := config.Plan()
	if err != nil {
		return nil, err
	}
	return buildNetwork(plan, backend), nil
}

func buildNetwork[B tensor.Backend](plan Plan, backend B) *Network[B] {
	features := nn.NewSequential[B](
		NewConvUnit(plan.Stem, backend),
		nn.NewMaxPool2D(plan.Pool.KernelSize, plan.Pool.Stride, plan.Pool.Padding, plan.Pool.CeilMode, backend),
	)
	for _, stage := range plan.Stages {
		blocks := nn.NewSequential[B]()
		for _, block := range stage {
			blocks.Add(NewResidualBlock(block, backend))
		}
		features.Add(blocks)
	}
	features.Add(NewConvUnit(plan.Final, backend))

	output := nn.NewSequential[B](
		nn.NewAvgPool2D(plan.Head.KernelSize, plan.Head.Stride, plan.Head.Padding, plan.Head.CeilMode, backend),
		nn.NewFlatten[B](),
		nn.NewLinear(plan.Features(), plan.Classes, backend),
	)

	return &Network[B]{
		plan:     plan,
		features: features,
		output:   output,
		backend:  backend,
	}
}

// Forward maps a [batch, 3, H, W] image tensor to [batch, classes] logits.
//
// Shape violations panic inside the layers; call CheckInput first to get
// an error instead.
func (n *Network[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return n.output.Forward(n.features.Forward(input))
}

// Features runs the network up to the final ConvUnit and returns the feature map.
func (n *Network[B]) Features(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return n.features.Forward(input)
}

// CheckInput reports whether Forward accepts an input of the given shape.
func (n *Network[B]) CheckInput(shape tensor.Shape) error {
	return n.plan.CheckInput(shape)
}

// Parameters returns every learnable parameter, features first.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	return append(n.features.Parameters(), n.output.Parameters()...)
}

// NumParameters returns the total learnable scalar count.
func (n *Network[B]) NumParameters() int {
	return nn.CountParameters[B](n)
}

// StateDict returns every persistent tensor under "features." and "output."
// prefixes, e.g. "features.2.0.body.0.conv.weight" or "output.2.bias".
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	nn.MergeStateDict(stateDict, n.features.StateDict(), "features")
	nn.MergeStateDict(stateDict, n.output.StateDict(), "output")
	return stateDict
}

// SetTraining switches every batch norm between batch statistics (true)
// and running statistics (false). Networks start in inference mode.
func (n *Network[B]) SetTraining(training bool) {
	n.features.SetTraining(training)
}

// Training reports whether the network normalizes with batch statistics.
func (n *Network[B]) Training() bool {
	return n.features.Training()
}

// Plan returns the derived layer layout.
func (n *Network[B]) Plan() Plan {
	return n.plan
}

// Classes returns the number of output logits.
func (n *Network[B]) Classes() int {
	return n.plan.Classes
}

// Stage returns the residual blocks of stage i (0-based).
func (n *Network[B]) Stage(i int) []*ResidualBlock[B] {
	if i < 0 || i >= NumStages {
		panic(fmt.Sprintf("squeezenext: stage %d out of range [0, %d)", i, NumStages))
	}
	stage := n.features.Module(2 + i).(*nn.Sequential[B])
	blocks := make([]*ResidualBlock[B], 0, stage.Len())
	for _, m := range stage.Modules() {
		blocks = append(blocks, m.(*ResidualBlock[B]))
	}
	return blocks
}

// Backend returns the backend the network computes on.
func (n *Network[B]) Backend() B {
	return n.backend
}

// String returns a one-line-per-layer summary of the network.
func (n *Network[B]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SqueezeNext(width=%g, classes=%d, blocks=%d)\n", n.plan.Width, n.plan.Classes, n.plan.NumBlocks())
	fmt.Fprintf(&sb, "  stem:   %s\n", n.features.Module(0))
	fmt.Fprintf(&sb, "  pool:   %s\n", n.features.Module(1))
	for i := range NumStages {
		for j, block := range n.Stage(i) {
			fmt.Fprintf(&sb, "  stage%d.%d: %s\n", i+1, j+1, block.Config())
		}
	}
	fmt.Fprintf(&sb, "  final:  %s\n", n.features.Module(2+NumStages))
	for _, m := range n.output.Modules() {
		fmt.Fprintf(&sb, "  head:   %s\n", m)
	}
	return strings.TrimRight(sb.String(), "\n")
}
