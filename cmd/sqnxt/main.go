// Package main provides the sqnxt CLI: build SqueezeNext models, inspect
// them and time forward passes on the CPU backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/sqnxt/internal/backend/cpu"
	"github.com/born-ml/sqnxt/internal/config"
	"github.com/born-ml/sqnxt/internal/parallel"
	"github.com/born-ml/sqnxt/internal/squeezenext"
	"github.com/born-ml/sqnxt/internal/tensor"
)

const version = "v0.1.0-dev"

var errUsage = errors.New("usage")

func main() {
	log.SetFlags(0)
	log.SetPrefix("sqnxt: ")

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errUsage
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(out, "sqnxt %s (%s)\n", version, runtime.Version())
		return nil
	case "list":
		return listModels(out)
	case "cpu":
		return cpuInfo(out)
	case "summary":
		return summary(args[1:], out)
	case "forward":
		return forward(args[1:], out)
	case "help", "-h", "-help", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "SqueezeNext image classifiers on a pure Go CPU backend")
	fmt.Fprintf(out, "Version: %s\n\n", version)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  list       List predefined models and their weight counts")
	fmt.Fprintln(out, "  summary    Print the layer layout of a model")
	fmt.Fprintln(out, "  forward    Run timed forward passes on random input")
	fmt.Fprintln(out, "  cpu        Show detected CPU features and worker count")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run 'sqnxt <command> -h' for command flags.")
}

// loadConfig parses the shared model flags of a subcommand.
func loadConfig(name string, args []string) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "YAML config file")
	var o config.Overrides
	fs.StringVar(&o.Model, "model", "", "Predefined model name (see 'sqnxt list')")
	fs.StringVar(&o.Arch, "arch", "", "Architecture tag: 23 or 23v5")
	fs.Float64Var(&o.Scale, "scale", 0, "Width scale")
	fs.IntVar(&o.Classes, "classes", 0, "Number of output classes")
	fs.BoolVar(&o.Pretrained, "pretrained", false, "Request pretrained weights")
	fs.IntVar(&o.InputSize, "size", 0, "Input height and width")
	fs.IntVar(&o.BatchSize, "batch", 0, "Batch size")
	fs.Uint64Var(&o.Seed, "seed", 0, "Weight initialization seed (0 = random)")
	fs.IntVar(&o.NumWorkers, "workers", 0, "CPU worker goroutines (0 = physical cores)")
	fs.IntVar(&o.Iterations, "n", 0, "Number of forward passes")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildModel(cfg *config.Config) (*squeezenext.Network[*cpu.CPUBackend], *cpu.CPUBackend, error) {
	arch, scale, err := cfg.Resolve()
	if err != nil {
		return nil, nil, err
	}

	backend := cpu.New(cpu.WithWorkers(cfg.NumWorkers))
	start := time.Now()
	net, err := squeezenext.New(arch, scale, backend, cfg.Options()...)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("built sqnxt%s width %g in %v", arch, scale, time.Since(start).Round(time.Millisecond))

	return net, backend, nil
}

func listModels(out io.Writer) error {
	fmt.Fprintf(out, "%-16s %-6s %-6s %12s\n", "NAME", "ARCH", "SCALE", "WEIGHTS")
	for _, spec := range squeezenext.Models() {
		blocks, err := squeezenext.BlockCounts(spec.Arch)
		if err != nil {
			return err
		}
		plan, err := squeezenext.Config{Width: spec.Scale, Blocks: blocks, Classes: squeezenext.DefaultClasses}.Plan()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-16s %-6s %-6.1f %12d\n", spec.Name, spec.Arch, spec.Scale, plan.NumParameters())
	}
	return nil
}

func cpuInfo(out io.Writer) error {
	fmt.Fprintf(out, "Brand:          %s\n", cpuid.CPU.BrandName)
	fmt.Fprintf(out, "Vendor:         %s\n", cpuid.CPU.VendorString)
	fmt.Fprintf(out, "Physical cores: %d\n", cpuid.CPU.PhysicalCores)
	fmt.Fprintf(out, "Logical cores:  %d\n", cpuid.CPU.LogicalCores)
	fmt.Fprintf(out, "AVX2+FMA3:      %v\n", cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3))
	fmt.Fprintf(out, "GOMAXPROCS:     %d\n", runtime.GOMAXPROCS(0))
	fmt.Fprintf(out, "Workers:        %d\n", parallel.Workers())
	return nil
}

func summary(args []string, out io.Writer) error {
	cfg, err := loadConfig("summary", args)
	if err != nil {
		return err
	}
	net, _, err := buildModel(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, net)
	fmt.Fprintf(out, "weight_count=%d\n", net.NumParameters())
	return nil
}

func forward(args []string, out io.Writer) error {
	cfg, err := loadConfig("forward", args)
	if err != nil {
		return err
	}
	net, backend, err := buildModel(cfg)
	if err != nil {
		return err
	}

	input := tensor.Randn[float32](cfg.InputShape(), backend)
	var output *tensor.Tensor[float32, *cpu.CPUBackend]
	durations := make([]time.Duration, 0, cfg.Iterations)
	for range cfg.Iterations {
		start := time.Now()
		output = net.Forward(input)
		durations = append(durations, time.Since(start))
	}
	slices.Sort(durations)

	fmt.Fprintf(out, "input=%v output=%v workers=%d\n", input.Shape(), output.Shape(), backend.Workers())
	fmt.Fprintf(out, "forward: n=%d min=%v median=%v\n", len(durations),
		durations[0].Round(time.Microsecond), durations[len(durations)/2].Round(time.Microsecond))

	classes := output.Shape()[1]
	logits := output.Data()
	for b := 0; b < output.Shape()[0]; b++ {
		row := logits[b*classes : (b+1)*classes]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		fmt.Fprintf(out, "sample %d: argmax=%d logit=%.4f\n", b, best, row[best])
	}
	return nil
}
