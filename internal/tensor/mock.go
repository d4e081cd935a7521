package tensor

import (
	"fmt"
	"math"
)

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations with direct loops in float64 so optimized
// backends can be checked against it.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// Add performs element-wise addition with broadcasting.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}

	av, bv := m.values(a), m.values(b)
	out := make([]float64, outShape.NumElements())
	outStrides := outShape.ComputeStrides()
	for i := range out {
		out[i] = av[broadcastIndex(i, outShape, outStrides, a.Shape())] +
			bv[broadcastIndex(i, outShape, outStrides, b.Shape())]
	}
	return m.fromValues(out, outShape, a.DType())
}

// broadcastIndex maps a flat output index to the flat index of a broadcast operand.
func broadcastIndex(flat int, outShape Shape, outStrides []int, shape Shape) int {
	offset := len(outShape) - len(shape)
	strides := shape.ComputeStrides()
	idx := 0
	for d := range shape {
		coord := (flat / outStrides[offset+d]) % outShape[offset+d]
		if shape[d] == 1 {
			coord = 0
		}
		idx += coord * strides[d]
	}
	return idx
}

// MatMul performs naive 2D matrix multiplication.
func (m *MockBackend) MatMul(a, b *RawTensor) *RawTensor {
	rows, inner := a.Shape()[0], a.Shape()[1]
	if b.Shape()[0] != inner {
		panic(fmt.Sprintf("mock matmul: shape mismatch %v @ %v", a.Shape(), b.Shape()))
	}
	cols := b.Shape()[1]

	av, bv := m.values(a), m.values(b)
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			for k := 0; k < inner; k++ {
				out[i*cols+j] += av[i*inner+k] * bv[k*cols+j]
			}
		}
	}
	return m.fromValues(out, Shape{rows, cols}, a.DType())
}

// Conv2D performs direct (non-im2col) convolution.
func (m *MockBackend) Conv2D(input, kernel *RawTensor, stride, padding [2]int) *RawTensor {
	is, ks := input.Shape(), kernel.Shape()
	n, cIn, h, w := is[0], is[1], is[2], is[3]
	cOut, kh, kw := ks[0], ks[2], ks[3]
	hOut := ConvOutputSize(h, kh, stride[0], padding[0])
	wOut := ConvOutputSize(w, kw, stride[1], padding[1])

	x, k := m.values(input), m.values(kernel)
	out := make([]float64, n*cOut*hOut*wOut)
	for b := 0; b < n; b++ {
		for co := 0; co < cOut; co++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					sum := 0.0
					for ci := 0; ci < cIn; ci++ {
						for i := 0; i < kh; i++ {
							for j := 0; j < kw; j++ {
								ih := oh*stride[0] - padding[0] + i
								iw := ow*stride[1] - padding[1] + j
								if ih < 0 || ih >= h || iw < 0 || iw >= w {
									continue
								}
								sum += x[((b*cIn+ci)*h+ih)*w+iw] * k[((co*cIn+ci)*kh+i)*kw+j]
							}
						}
					}
					out[((b*cOut+co)*hOut+oh)*wOut+ow] = sum
				}
			}
		}
	}
	return m.fromValues(out, Shape{n, cOut, hOut, wOut}, input.DType())
}

// MaxPool2D performs max pooling over the valid part of every window.
func (m *MockBackend) MaxPool2D(input *RawTensor, pool Pool2D) *RawTensor {
	return m.pool(input, pool, func(window []float64, _ int) float64 {
		best := math.Inf(-1)
		for _, v := range window {
			best = math.Max(best, v)
		}
		return best
	})
}

// AvgPool2D performs average pooling; padded positions count as zeros.
func (m *MockBackend) AvgPool2D(input *RawTensor, pool Pool2D) *RawTensor {
	return m.pool(input, pool, func(window []float64, size int) float64 {
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		return sum / float64(size)
	})
}

func (m *MockBackend) pool(input *RawTensor, pool Pool2D, reduce func(window []float64, size int) float64) *RawTensor {
	s := input.Shape()
	n, c, h, w := s[0], s[1], s[2], s[3]
	hOut, wOut := pool.OutputSize(h), pool.OutputSize(w)

	x := m.values(input)
	out := make([]float64, n*c*hOut*wOut)
	for plane := 0; plane < n*c; plane++ {
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				hStart, wStart := oh*pool.Stride-pool.Padding, ow*pool.Stride-pool.Padding
				hEnd := min(hStart+pool.KernelSize, h+pool.Padding)
				wEnd := min(wStart+pool.KernelSize, w+pool.Padding)
				size := (hEnd - hStart) * (wEnd - wStart)

				var window []float64
				for ih := max(hStart, 0); ih < min(hEnd, h); ih++ {
					for iw := max(wStart, 0); iw < min(wEnd, w); iw++ {
						window = append(window, x[(plane*h+ih)*w+iw])
					}
				}
				out[(plane*hOut+oh)*wOut+ow] = reduce(window, size)
			}
		}
	}
	return m.fromValues(out, Shape{n, c, hOut, wOut}, input.DType())
}

// ReLU applies max(0, x).
func (m *MockBackend) ReLU(x *RawTensor) *RawTensor {
	v := m.values(x)
	for i := range v {
		v[i] = math.Max(v[i], 0)
	}
	return m.fromValues(v, x.Shape(), x.DType())
}

// ChannelAffine computes x*scale[c] + shift[c].
func (m *MockBackend) ChannelAffine(x, scale, shift *RawTensor) *RawTensor {
	s := x.Shape()
	c, plane := s[1], s[2]*s[3]
	v, sc, sh := m.values(x), m.values(scale), m.values(shift)
	for i := range v {
		ch := (i / plane) % c
		v[i] = v[i]*sc[ch] + sh[ch]
	}
	return m.fromValues(v, s, x.DType())
}

// ChannelMoments returns per-channel mean and biased variance.
func (m *MockBackend) ChannelMoments(x *RawTensor) (mean, variance *RawTensor) {
	s := x.Shape()
	c, plane := s[1], s[2]*s[3]
	count := float64(s[0] * plane)
	v := m.values(x)

	mu := make([]float64, c)
	for i, val := range v {
		mu[(i/plane)%c] += val / count
	}
	vr := make([]float64, c)
	for i, val := range v {
		d := val - mu[(i/plane)%c]
		vr[(i/plane)%c] += d * d / count
	}
	return m.fromValues(mu, Shape{c}, x.DType()), m.fromValues(vr, Shape{c}, x.DType())
}

// Reshape returns a copy of t with a new shape.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	return m.fromValues(m.values(t), newShape, t.DType())
}

// Transpose permutes dimensions; with no axes it reverses them.
func (m *MockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()
	if len(axes) == 0 {
		for i := len(shape) - 1; i >= 0; i-- {
			axes = append(axes, i)
		}
	}
	newShape := make(Shape, len(shape))
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	src := m.values(t)
	srcStrides := t.Strides()
	dstStrides := newShape.ComputeStrides()
	out := make([]float64, len(src))
	for i := range out {
		srcIdx := 0
		for d, ax := range axes {
			srcIdx += ((i / dstStrides[d]) % newShape[d]) * srcStrides[ax]
		}
		out[i] = src[srcIdx]
	}
	return m.fromValues(out, newShape, t.DType())
}

func (m *MockBackend) values(r *RawTensor) []float64 {
	out := make([]float64, r.NumElements())
	switch r.DType() {
	case Float32:
		for i, v := range r.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, r.AsFloat64())
	default:
		panic(fmt.Sprintf("mock: unsupported dtype %s", r.DType()))
	}
	return out
}

func (m *MockBackend) fromValues(v []float64, shape Shape, dtype DataType) *RawTensor {
	r, err := NewRaw(shape, dtype, m.Device())
	if err != nil {
		panic(err)
	}
	switch dtype {
	case Float32:
		dst := r.AsFloat32()
		for i, val := range v {
			dst[i] = float32(val)
		}
	case Float64:
		copy(r.AsFloat64(), v)
	}
	return r
}
