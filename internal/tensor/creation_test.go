package tensor

import (
	"math"
	"testing"
)

func TestZerosOnesFull(t *testing.T) {
	backend := NewMockBackend()

	for _, v := range Zeros[float32](Shape{3, 4}, backend).Data() {
		assertEqualFloat32(t, 0, v, "Zeros")
	}
	for _, v := range Ones[float32](Shape{3, 4}, backend).Data() {
		assertEqualFloat32(t, 1, v, "Ones")
	}
	for _, v := range Full[float64](Shape{2}, 2.5, backend).Data() {
		if v != 2.5 {
			t.Errorf("Full: got %v, want 2.5", v)
		}
	}
}

func TestRandn(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{100, 50}

	x := Randn[float32](shape, backend)
	assertEqualShape(t, shape, x.Shape(), "Randn shape")

	data := x.Data()
	var sum, sumSq float64
	for _, v := range data {
		sum += float64(v)
	}
	mean := sum / float64(len(data))
	for _, v := range data {
		d := float64(v) - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(data)))

	if math.Abs(mean) > 0.1 {
		t.Errorf("Randn mean = %v, expected close to 0", mean)
	}
	if math.Abs(std-1) > 0.1 {
		t.Errorf("Randn std = %v, expected close to 1", std)
	}
}

func TestRand(t *testing.T) {
	backend := NewMockBackend()

	for i, v := range Rand[float64](Shape{1000}, backend).Data() {
		if v < 0 || v >= 1 {
			t.Fatalf("Rand element %d = %v, outside [0, 1)", i, v)
		}
	}
}
