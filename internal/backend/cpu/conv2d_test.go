package cpu

import (
	"testing"

	"github.com/born-ml/sqnxt/internal/tensor"
)

var (
	unitStride = [2]int{1, 1}
	noPadding  = [2]int{0, 0}
)

// TestConv2D_BasicForward tests basic Conv2D forward pass.
func TestConv2D_BasicForward(t *testing.T) {
	backend := newTestBackend()

	// Input: [1, 1, 3, 3] = 1..9, kernel: [1, 1, 2, 2] = [[1, 0], [0, 1]].
	input := rawFrom(t, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	kernel := rawFrom(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 0, 1)

	output := backend.Conv2D(input, kernel, unitStride, noPadding)

	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Expected shape [1,1,2,2], got %v", output.Shape())
	}

	// out[0,0] = 1*1 + 5*1 = 6, out[0,1] = 2+6 = 8, out[1,0] = 4+8 = 12, out[1,1] = 5+9 = 14
	expected := []float32{6, 8, 12, 14}
	if !float32SliceEqual(output.AsFloat32(), expected, 1e-5) {
		t.Errorf("Conv2D = %v, want %v", output.AsFloat32(), expected)
	}
}

// TestConv2D_WithPadding tests Conv2D with zero padding.
func TestConv2D_WithPadding(t *testing.T) {
	backend := newTestBackend()

	input := rawFrom(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	kernel := rawFrom(t, tensor.Shape{1, 1, 3, 3}, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	output := backend.Conv2D(input, kernel, unitStride, [2]int{1, 1})

	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Expected shape [1,1,2,2], got %v", output.Shape())
	}
	// Every 3x3 window around a 2x2 input covers the whole input.
	expected := []float32{10, 10, 10, 10}
	if !float32SliceEqual(output.AsFloat32(), expected, 1e-5) {
		t.Errorf("Conv2D = %v, want %v", output.AsFloat32(), expected)
	}
}

// TestConv2D_RectangularKernel tests 1x3 and 3x1 kernels with per-axis padding.
func TestConv2D_RectangularKernel(t *testing.T) {
	backend := newTestBackend()

	input := rawFrom(t, tensor.Shape{1, 1, 2, 3}, 1, 2, 3, 4, 5, 6)
	ones := rawFrom(t, tensor.Shape{1, 1, 1, 3}, 1, 1, 1)

	row := backend.Conv2D(input, ones, unitStride, [2]int{0, 1})
	if !row.Shape().Equal(tensor.Shape{1, 1, 2, 3}) {
		t.Fatalf("1x3 shape = %v, want [1 1 2 3]", row.Shape())
	}
	expected := []float32{3, 6, 5, 9, 15, 11}
	if !float32SliceEqual(row.AsFloat32(), expected, 1e-5) {
		t.Errorf("1x3 Conv2D = %v, want %v", row.AsFloat32(), expected)
	}

	column := rawFrom(t, tensor.Shape{1, 1, 3, 1}, 1, 1, 1)
	col := backend.Conv2D(input, column, unitStride, [2]int{1, 0})
	if !col.Shape().Equal(tensor.Shape{1, 1, 2, 3}) {
		t.Fatalf("3x1 shape = %v, want [1 1 2 3]", col.Shape())
	}
	expected = []float32{5, 7, 9, 5, 7, 9}
	if !float32SliceEqual(col.AsFloat32(), expected, 1e-5) {
		t.Errorf("3x1 Conv2D = %v, want %v", col.AsFloat32(), expected)
	}
}

// TestConv2D_Stride tests Conv2D with stride 2.
func TestConv2D_Stride(t *testing.T) {
	backend := newTestBackend()

	values := make([]float32, 16)
	for i := range values {
		values[i] = float32(i + 1)
	}
	input := rawFrom(t, tensor.Shape{1, 1, 4, 4}, values...)
	kernel := rawFrom(t, tensor.Shape{1, 1, 2, 2}, 1, 1, 1, 1)

	output := backend.Conv2D(input, kernel, [2]int{2, 2}, noPadding)

	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Expected shape [1,1,2,2], got %v", output.Shape())
	}
	expected := []float32{14, 22, 46, 54}
	if !float32SliceEqual(output.AsFloat32(), expected, 1e-5) {
		t.Errorf("Conv2D = %v, want %v", output.AsFloat32(), expected)
	}
}

// TestConv2D_MatchesReference compares the im2col path against direct loops.
func TestConv2D_MatchesReference(t *testing.T) {
	backend := newTestBackend()
	ref := tensor.NewMockBackend()

	tests := []struct {
		name    string
		input   tensor.Shape
		kernel  tensor.Shape
		stride  [2]int
		padding [2]int
	}{
		{"pointwise", tensor.Shape{2, 8, 5, 5}, tensor.Shape{4, 8, 1, 1}, unitStride, noPadding},
		{"pointwise strided", tensor.Shape{2, 8, 6, 6}, tensor.Shape{4, 8, 1, 1}, [2]int{2, 2}, noPadding},
		{"3x3 padded", tensor.Shape{3, 4, 7, 7}, tensor.Shape{5, 4, 3, 3}, unitStride, [2]int{1, 1}},
		{"1x3", tensor.Shape{2, 3, 6, 6}, tensor.Shape{3, 3, 1, 3}, unitStride, [2]int{0, 1}},
		{"3x1", tensor.Shape{2, 3, 6, 6}, tensor.Shape{3, 3, 3, 1}, unitStride, [2]int{1, 0}},
		{"7x7 stem", tensor.Shape{1, 3, 20, 20}, tensor.Shape{8, 3, 7, 7}, [2]int{2, 2}, [2]int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := randomRaw(tt.input)
			kernel := randomRaw(tt.kernel)

			got := backend.Conv2D(input, kernel, tt.stride, tt.padding)
			want := ref.Conv2D(input, kernel, tt.stride, tt.padding)

			if !got.Shape().Equal(want.Shape()) {
				t.Fatalf("shape = %v, want %v", got.Shape(), want.Shape())
			}
			if !float32SliceEqual(got.AsFloat32(), want.AsFloat32(), 1e-3) {
				t.Error("Conv2D differs from reference")
			}
		})
	}
}

// TestConv2D_Float64 tests Conv2D with float64 data.
func TestConv2D_Float64(t *testing.T) {
	backend := newTestBackend()

	input, _ := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3}, backend)
	kernel, _ := tensor.FromSlice([]float64{1, 0, 0, 1}, tensor.Shape{1, 1, 2, 2}, backend)

	output := backend.Conv2D(input.Raw(), kernel.Raw(), unitStride, noPadding).AsFloat64()
	expected := []float64{6, 8, 12, 14}
	for i := range expected {
		if output[i] != expected[i] {
			t.Errorf("output[%d] = %v, want %v", i, output[i], expected[i])
		}
	}
}

// TestConv2D_InvalidInputs tests that invalid arguments panic.
func TestConv2D_InvalidInputs(t *testing.T) {
	backend := newTestBackend()

	tests := []struct {
		name string
		run  func()
	}{
		{"3D input", func() {
			backend.Conv2D(randomRaw(tensor.Shape{1, 3, 3}), randomRaw(tensor.Shape{1, 1, 2, 2}), unitStride, noPadding)
		}},
		{"channel mismatch", func() {
			backend.Conv2D(randomRaw(tensor.Shape{1, 3, 4, 4}), randomRaw(tensor.Shape{1, 2, 2, 2}), unitStride, noPadding)
		}},
		{"zero stride", func() {
			backend.Conv2D(randomRaw(tensor.Shape{1, 1, 4, 4}), randomRaw(tensor.Shape{1, 1, 2, 2}), [2]int{0, 1}, noPadding)
		}},
		{"kernel larger than input", func() {
			backend.Conv2D(randomRaw(tensor.Shape{1, 1, 2, 2}), randomRaw(tensor.Shape{1, 1, 3, 3}), unitStride, noPadding)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic")
				}
			}()
			tt.run()
		})
	}
}
