package tensor

import (
	"math"
	"testing"
)

// Test helpers

func assertEqualFloat32(t *testing.T, expected, actual float32, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

// DType Tests

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
		name  string
	}{
		{Float32, 4, "float32"},
		{Float64, 8, "float64"},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.name, got, tt.size)
		}
		if got := tt.dtype.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

// Tensor Tests

func TestFromSlice(t *testing.T) {
	backend := NewMockBackend()

	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	assertEqualShape(t, Shape{2, 3}, x.Shape(), "FromSlice shape")
	assertEqualFloat32(t, 6, x.At(1, 2), "At(1, 2)")
	assertEqualFloat32(t, 2, x.At(0, 1), "At(0, 1)")

	if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2}, backend); err == nil {
		t.Error("FromSlice should reject mismatched element count")
	}
}

func TestTensorSetAndClone(t *testing.T) {
	backend := NewMockBackend()

	x := Zeros[float64](Shape{2, 2}, backend)
	x.Set(3.5, 1, 0)

	clone := x.Clone()
	x.Set(-1, 1, 0)

	if clone.At(1, 0) != 3.5 {
		t.Errorf("Clone shares memory: got %v, want 3.5", clone.At(1, 0))
	}
	if x.At(1, 0) != -1 {
		t.Errorf("Set did not update tensor: got %v", x.At(1, 0))
	}
}

func TestTensorAtOutOfBounds(t *testing.T) {
	backend := NewMockBackend()
	x := Zeros[float32](Shape{2, 2}, backend)

	defer func() {
		if r := recover(); r == nil {
			t.Error("At should panic on out-of-range index")
		}
	}()
	_ = x.At(2, 0)
}

func TestTensorString(t *testing.T) {
	backend := NewMockBackend()
	x := Zeros[float32](Shape{1, 3, 4, 4}, backend)

	want := "Tensor[float32][1 3 4 4] on CPU"
	if got := x.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTensorOps(t *testing.T) {
	backend := NewMockBackend()

	a, _ := FromSlice([]float32{-1, 2, -3, 4}, Shape{2, 2}, backend)
	b, _ := FromSlice([]float32{10, 20}, Shape{1, 2}, backend)

	sum := a.Add(b)
	assertEqualShape(t, Shape{2, 2}, sum.Shape(), "Add shape")
	for i, want := range []float32{9, 22, 7, 24} {
		assertEqualFloat32(t, want, sum.Data()[i], "Add value")
	}

	relu := a.ReLU()
	for i, want := range []float32{0, 2, 0, 4} {
		assertEqualFloat32(t, want, relu.Data()[i], "ReLU value")
	}

	tr := a.T()
	for i, want := range []float32{-1, -3, 2, 4} {
		assertEqualFloat32(t, want, tr.Data()[i], "Transpose value")
	}

	prod := a.MatMul(tr)
	// [[-1,2],[-3,4]] @ [[-1,-3],[2,4]] = [[5,11],[11,25]]
	for i, want := range []float32{5, 11, 11, 25} {
		assertEqualFloat32(t, want, prod.Data()[i], "MatMul value")
	}

	flat := a.Reshape(4)
	assertEqualShape(t, Shape{4}, flat.Shape(), "Reshape shape")
}
