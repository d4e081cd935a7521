package cpu

import (
	"testing"

	"github.com/born-ml/sqnxt/internal/tensor"
)

func TestChannelAffine(t *testing.T) {
	backend := newTestBackend()

	// [1, 2, 1, 2]: channel 0 = {1, 2}, channel 1 = {3, 4}
	x := rawFrom(t, tensor.Shape{1, 2, 1, 2}, 1, 2, 3, 4)
	scale := rawFrom(t, tensor.Shape{2}, 2, -1)
	shift := rawFrom(t, tensor.Shape{2}, 0.5, 10)

	got := backend.ChannelAffine(x, scale, shift).AsFloat32()
	want := []float32{2.5, 4.5, 7, 6}
	if !float32SliceEqual(got, want, 1e-6) {
		t.Errorf("ChannelAffine = %v, want %v", got, want)
	}

	y := randomRaw(tensor.Shape{3, 4, 5, 5})
	s := randomRaw(tensor.Shape{4})
	b := randomRaw(tensor.Shape{4})
	ref := tensor.NewMockBackend().ChannelAffine(y, s, b)
	if !float32SliceEqual(backend.ChannelAffine(y, s, b).AsFloat32(), ref.AsFloat32(), 1e-5) {
		t.Error("ChannelAffine differs from reference")
	}
}

func TestChannelAffine_ShapeMismatch(t *testing.T) {
	backend := newTestBackend()

	defer func() {
		if r := recover(); r == nil {
			t.Error("ChannelAffine with wrong scale length should panic")
		}
	}()
	backend.ChannelAffine(randomRaw(tensor.Shape{1, 3, 2, 2}), randomRaw(tensor.Shape{2}), randomRaw(tensor.Shape{3}))
}

func TestChannelMoments(t *testing.T) {
	backend := newTestBackend()

	// Two images, two channels of two values each.
	x := rawFrom(t, tensor.Shape{2, 2, 1, 2},
		1, 3, 10, 10,
		5, 7, 20, 20)

	mean, variance := backend.ChannelMoments(x)

	wantMean := []float32{4, 15}
	wantVar := []float32{5, 25}
	if !float32SliceEqual(mean.AsFloat32(), wantMean, 1e-5) {
		t.Errorf("mean = %v, want %v", mean.AsFloat32(), wantMean)
	}
	if !float32SliceEqual(variance.AsFloat32(), wantVar, 1e-5) {
		t.Errorf("variance = %v, want %v", variance.AsFloat32(), wantVar)
	}

	y := randomRaw(tensor.Shape{4, 3, 6, 6})
	refMean, refVar := tensor.NewMockBackend().ChannelMoments(y)
	gotMean, gotVar := backend.ChannelMoments(y)
	if !float32SliceEqual(gotMean.AsFloat32(), refMean.AsFloat32(), 1e-5) ||
		!float32SliceEqual(gotVar.AsFloat32(), refVar.AsFloat32(), 1e-5) {
		t.Error("ChannelMoments differs from reference")
	}
}
