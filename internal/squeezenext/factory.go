package squeezenext

import (
	"fmt"
	"slices"
	"sync"

	"github.com/born-ml/sqnxt/internal/nn"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// Architecture tags.
const (
	Arch23   = "23"
	Arch23v5 = "23v5"
)

// BlockCounts returns the per-stage block counts of an architecture tag.
func BlockCounts(arch string) ([]int, error) {
	switch arch {
	case Arch23:
		return []int{6, 6, 8, 1}, nil
	case Arch23v5:
		return []int{2, 4, 14, 1}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArch, arch)
	}
}

type options struct {
	classes    int
	pretrained bool
	seed       uint64
	seeded     bool
}

// Option customizes New.
type Option func(*options)

// WithClasses sets the number of output logits (default 1000).
func WithClasses(classes int) Option {
	return func(o *options) { o.classes = classes }
}

// WithPretrained requests pretrained weights. None are available, so any
// factory given WithPretrained(true) fails with ErrPretrainedUnavailable.
func WithPretrained(pretrained bool) Option {
	return func(o *options) { o.pretrained = pretrained }
}

// WithSeed makes weight initialization reproducible: two networks built
// with the same seed and config have identical weights.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// seedMu serializes seeded construction so a seeded build draws an
// uninterrupted stream from the shared initializer source.
var seedMu sync.Mutex

// New builds a SqueezeNext network for an architecture tag and width scale.
//
// Errors wrap ErrConfig: ErrUnsupportedArch for an unknown tag,
// ErrPretrainedUnavailable when pretrained weights are requested, and a
// descriptive error for invalid scales or class counts. No network is
// built when an error is returned.
func New[B tensor.Backend](arch string, scale float64, backend B, opts ...Option) (*Network[B], error) {
	o := options{classes: DefaultClasses}
	for _, opt := range opts {
		opt(&o)
	}

	blocks, err := BlockCounts(arch)
	if err != nil {
		return nil, err
	}
	if o.pretrained {
		return nil, fmt.Errorf("%w: sqnxt%s width %g", ErrPretrainedUnavailable, arch, scale)
	}

	plan, err := Config{Width: scale, Blocks: blocks, Classes: o.classes}.Plan()
	if err != nil {
		return nil, err
	}

	if !o.seeded {
		return buildNetwork(plan, backend), nil
	}

	seedMu.Lock()
	defer seedMu.Unlock()
	nn.Seed(o.seed)
	return buildNetwork(plan, backend), nil
}

// ModelSpec names one of the predefined SqueezeNext variants.
type ModelSpec struct {
	Name  string
	Arch  string
	Scale float64
}

var models = []ModelSpec{
	{Name: "sqnxt23_1_0", Arch: Arch23, Scale: 1.0},
	{Name: "sqnxt23_1_5", Arch: Arch23, Scale: 1.5},
	{Name: "sqnxt23_2_0", Arch: Arch23, Scale: 2.0},
	{Name: "sqnxt23v5_1_0", Arch: Arch23v5, Scale: 1.0},
	{Name: "sqnxt23v5_1_5", Arch: Arch23v5, Scale: 1.5},
	{Name: "sqnxt23v5_2_0", Arch: Arch23v5, Scale: 2.0},
}

// Models returns the predefined variants in a stable order.
func Models() []ModelSpec {
	return slices.Clone(models)
}

// Lookup returns the predefined variant with the given name.
func Lookup(name string) (ModelSpec, error) {
	i := slices.IndexFunc(models, func(m ModelSpec) bool { return m.Name == name })
	if i < 0 {
		return ModelSpec{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return models[i], nil
}

// NewByName builds a predefined variant such as "sqnxt23v5_1_5".
func NewByName[B tensor.Backend](name string, backend B, opts ...Option) (*Network[B], error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(spec.Arch, spec.Scale, backend, opts...)
}

// Sqnxt23W10 builds sqnxt23_1_0: blocks [6, 6, 8, 1], width 1.0.
func Sqnxt23W10[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return New(Arch23, 1.0, backend, opts...)
}

// Sqnxt23W15 builds sqnxt23_1_5: blocks [6, 6, 8, 1], width 1.5.
func Sqnxt23W15[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return New(Arch23, 1.5, backend, opts...)
}

// Sqnxt23W20 builds sqnxt23_2_0: blocks [6, 6, 8, 1], width 2.0.
func Sqnxt23W20[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return New(Arch23, 2.0, backend, opts...)
}

// Sqnxt23v5W10 builds sqnxt23v5_1_0: blocks [2, 4, 14, 1], width 1.0.
func Sqnxt23v5W10[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return New(Arch23v5, 1.0, backend, opts...)
}

// Sqnxt23v5W15 builds sqnxt23v5_1_5: blocks [2, 4, 14, 1], width 1.5.
func Sqnxt23v5W15[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return New(Arch23v5, 1.5, backend, opts...)
}

// Sqnxt23v5W20 builds sqnxt23v5_2_0: blocks [2, 4, 14, 1], width 2.0.
func Sqnxt23v5W20[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return New(Arch23v5, 2.0, backend, opts...)
}
