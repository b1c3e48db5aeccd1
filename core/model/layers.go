package model

import (
	"math"
	"math/rand"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// =============================================================================
// Parameters
// =============================================================================

// Param is a flat view over one learnable tensor and its gradient
// accumulator. The optimizer operates on these views in place.
type Param struct {
	Name string
	Data []float64
	Grad []float64
}

// =============================================================================
// Linear
// =============================================================================

// Linear is a fully connected layer y = Wx + b with W stored row-major as an
// out×in matrix. Forward caches its input only in training mode, so
// eval-mode forwards are pure and safe to run concurrently.
type Linear struct {
	W  *mat.Dense
	B  []float64
	GW *mat.Dense
	GB []float64

	in, out int
	x       []float64
}

// NewLinear builds a layer with Glorot-uniform weights and zero biases.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := make([]float64, out*in)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Linear{
		W:   mat.NewDense(out, in, w),
		B:   make([]float64, out),
		GW:  mat.NewDense(out, in, nil),
		GB:  make([]float64, out),
		in:  in,
		out: out,
	}
}

// Forward computes Wx + b.
func (l *Linear) Forward(x []float64, train bool) []float64 {
	y := make([]float64, l.out)
	for i := 0; i < l.out; i++ {
		y[i] = vek.Dot(l.W.RawRowView(i), x) + l.B[i]
	}
	if train {
		l.x = append(l.x[:0], x...)
	}
	return y
}

// Backward accumulates gradients for W and b and returns dL/dx.
func (l *Linear) Backward(dout []float64) []float64 {
	dx := make([]float64, l.in)
	for i := 0; i < l.out; i++ {
		floats.AddScaled(l.GW.RawRowView(i), dout[i], l.x)
		l.GB[i] += dout[i]
		floats.AddScaled(dx, dout[i], l.W.RawRowView(i))
	}
	return dx
}

// Params exposes the layer's tensors to the optimizer.
func (l *Linear) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + ".weight", Data: l.W.RawMatrix().Data, Grad: l.GW.RawMatrix().Data},
		{Name: prefix + ".bias", Data: l.B, Grad: l.GB},
	}
}

// =============================================================================
// ReLU
// =============================================================================

// ReLU applies max(0, x) elementwise.
type ReLU struct {
	mask []bool
}

func NewReLU() *ReLU { return &ReLU{} }

func (r *ReLU) Forward(x []float64, train bool) []float64 {
	y := make([]float64, len(x))
	if train {
		if cap(r.mask) < len(x) {
			r.mask = make([]bool, len(x))
		}
		r.mask = r.mask[:len(x)]
	}
	for i, v := range x {
		if v > 0 {
			y[i] = v
			if train {
				r.mask[i] = true
			}
		} else if train {
			r.mask[i] = false
		}
	}
	return y
}

func (r *ReLU) Backward(dout []float64) []float64 {
	dx := make([]float64, len(dout))
	for i, d := range dout {
		if r.mask[i] {
			dx[i] = d
		}
	}
	return dx
}

// =============================================================================
// LayerNorm
// =============================================================================

// layerNormEps keeps the variance denominator away from zero.
const layerNormEps = 1e-5

// LayerNorm normalizes a vector to zero mean and unit variance, then applies
// a learned affine transform. Per-sample normalization keeps single-example
// inference identical to training-time statistics, unlike batch statistics.
type LayerNorm struct {
	Gamma  []float64
	Beta   []float64
	GGamma []float64
	GBeta  []float64

	xhat   []float64
	invStd float64
}

func NewLayerNorm(dim int) *LayerNorm {
	ln := &LayerNorm{
		Gamma:  make([]float64, dim),
		Beta:   make([]float64, dim),
		GGamma: make([]float64, dim),
		GBeta:  make([]float64, dim),
	}
	for i := range ln.Gamma {
		ln.Gamma[i] = 1.0
	}
	return ln
}

func (ln *LayerNorm) Forward(x []float64, train bool) []float64 {
	mean := floats.Sum(x) / float64(len(x))

	variance := 0.0
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(x))
	invStd := 1.0 / math.Sqrt(variance+layerNormEps)

	y := make([]float64, len(x))
	xhat := y
	if train {
		if cap(ln.xhat) < len(x) {
			ln.xhat = make([]float64, len(x))
		}
		ln.xhat = ln.xhat[:len(x)]
		xhat = ln.xhat
		ln.invStd = invStd
	}

	for i, v := range x {
		h := (v - mean) * invStd
		xhat[i] = h
		y[i] = ln.Gamma[i]*h + ln.Beta[i]
	}
	return y
}

func (ln *LayerNorm) Backward(dout []float64) []float64 {
	n := float64(len(dout))

	// dL/dxhat, plus the two reduction terms of the layer-norm gradient.
	dxhat := make([]float64, len(dout))
	sumDxhat := 0.0
	sumDxhatXhat := 0.0
	for i, d := range dout {
		ln.GGamma[i] += d * ln.xhat[i]
		ln.GBeta[i] += d
		dxhat[i] = d * ln.Gamma[i]
		sumDxhat += dxhat[i]
		sumDxhatXhat += dxhat[i] * ln.xhat[i]
	}

	dx := make([]float64, len(dout))
	for i := range dout {
		dx[i] = ln.invStd / n * (n*dxhat[i] - sumDxhat - ln.xhat[i]*sumDxhatXhat)
	}
	return dx
}

func (ln *LayerNorm) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + ".gamma", Data: ln.Gamma, Grad: ln.GGamma},
		{Name: prefix + ".beta", Data: ln.Beta, Grad: ln.GBeta},
	}
}

// =============================================================================
// Dropout
// =============================================================================

// Dropout zeroes activations with probability Rate during training, scaling
// survivors by 1/(1-Rate). Eval-mode forward is the identity.
type Dropout struct {
	Rate float64

	rng  *rand.Rand
	mask []float64
}

func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

func (d *Dropout) Forward(x []float64, train bool) []float64 {
	if !train || d.Rate == 0 {
		return x
	}
	if cap(d.mask) < len(x) {
		d.mask = make([]float64, len(x))
	}
	d.mask = d.mask[:len(x)]

	scale := 1.0 / (1.0 - d.Rate)
	y := make([]float64, len(x))
	for i, v := range x {
		if d.rng.Float64() < d.Rate {
			d.mask[i] = 0
		} else {
			d.mask[i] = scale
			y[i] = v * scale
		}
	}
	return y
}

func (d *Dropout) Backward(dout []float64) []float64 {
	if d.Rate == 0 {
		return dout
	}
	dx := make([]float64, len(dout))
	for i, v := range dout {
		dx[i] = v * d.mask[i]
	}
	return dx
}

// =============================================================================
// Embedding
// =============================================================================

// Embedding is a lookup table mapping a dense index to a learned vector.
// Gradients accumulate into the full table; at this dataset scale a sparse
// update scheme buys nothing.
type Embedding struct {
	W  *mat.Dense
	GW *mat.Dense

	dim int
	idx int
}

// NewEmbedding initializes the table with N(0, 0.01) entries.
func NewEmbedding(num, dim int, rng *rand.Rand) *Embedding {
	w := make([]float64, num*dim)
	for i := range w {
		w[i] = rng.NormFloat64() * 0.01
	}
	return &Embedding{
		W:   mat.NewDense(num, dim, w),
		GW:  mat.NewDense(num, dim, nil),
		dim: dim,
	}
}

// Forward returns the row for idx. The returned slice aliases the table;
// callers must not mutate it.
func (e *Embedding) Forward(idx int, train bool) []float64 {
	if train {
		e.idx = idx
	}
	return e.W.RawRowView(idx)
}

// Backward routes the gradient into the row selected by the last
// training-mode forward.
func (e *Embedding) Backward(dout []float64) {
	floats.Add(e.GW.RawRowView(e.idx), dout)
}

func (e *Embedding) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + ".weight", Data: e.W.RawMatrix().Data, Grad: e.GW.RawMatrix().Data},
	}
}

// Rows returns the table height.
func (e *Embedding) Rows() int {
	r, _ := e.W.Dims()
	return r
}
