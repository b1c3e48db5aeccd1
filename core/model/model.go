// Package model implements the hybrid embedding + feature-fusion rating
// model, its optimizer, its checkpoint format, and the training loop with
// learning-rate scheduling and early stopping.
package model

import (
	"fmt"
	"math"
	"math/rand"
)

// =============================================================================
// Dimensions
// =============================================================================

// Dims fixes the model shape. A checkpoint saved with one shape refuses to
// load into another.
type Dims struct {
	NumUsers        int   `yaml:"num_users"`
	NumHotels       int   `yaml:"num_hotels"`
	UserFeatureDim  int   `yaml:"user_feature_dim"`
	HotelFeatureDim int   `yaml:"hotel_feature_dim"`
	EmbeddingDim    int   `yaml:"embedding_dim"`
	HiddenWidths    []int `yaml:"hidden_widths"`
}

// Equal reports whether two shapes are compatible.
func (d Dims) Equal(other Dims) bool {
	if d.NumUsers != other.NumUsers ||
		d.NumHotels != other.NumHotels ||
		d.UserFeatureDim != other.UserFeatureDim ||
		d.HotelFeatureDim != other.HotelFeatureDim ||
		d.EmbeddingDim != other.EmbeddingDim ||
		len(d.HiddenWidths) != len(other.HiddenWidths) {
		return false
	}
	for i, w := range d.HiddenWidths {
		if w != other.HiddenWidths[i] {
			return false
		}
	}
	return true
}

// Options tunes regularization. A zero rate disables that dropout layer,
// which is useful for deterministic tests.
type Options struct {
	FeatureDropout float64
	HiddenDropout  float64
	FinalDropout   float64
}

// DefaultOptions returns the shipped dropout rates.
func DefaultOptions() Options {
	return Options{
		FeatureDropout: 0.2,
		HiddenDropout:  0.3,
		FinalDropout:   0.2,
	}
}

// =============================================================================
// Feature tower
// =============================================================================

// tower maps an explicit feature vector into the embedding space:
// linear → ReLU → layer norm → dropout → linear.
type tower struct {
	lin1 *Linear
	act  *ReLU
	norm *LayerNorm
	drop *Dropout
	lin2 *Linear
}

func newTower(featDim, embDim int, dropRate float64, rng *rand.Rand) *tower {
	wide := embDim * 2
	return &tower{
		lin1: NewLinear(featDim, wide, rng),
		act:  NewReLU(),
		norm: NewLayerNorm(wide),
		drop: NewDropout(dropRate, rng),
		lin2: NewLinear(wide, embDim, rng),
	}
}

func (t *tower) forward(x []float64, train bool) []float64 {
	h := t.lin1.Forward(x, train)
	h = t.act.Forward(h, train)
	h = t.norm.Forward(h, train)
	h = t.drop.Forward(h, train)
	return t.lin2.Forward(h, train)
}

func (t *tower) backward(dout []float64) {
	d := t.lin2.Backward(dout)
	d = t.drop.Backward(d)
	d = t.norm.Backward(d)
	d = t.act.Backward(d)
	t.lin1.Backward(d)
}

func (t *tower) params(prefix string) []Param {
	var ps []Param
	ps = append(ps, t.lin1.Params(prefix+".lin1")...)
	ps = append(ps, t.norm.Params(prefix+".norm")...)
	ps = append(ps, t.lin2.Params(prefix+".lin2")...)
	return ps
}

// =============================================================================
// Hidden block
// =============================================================================

// hiddenBlock is one fused layer: linear → ReLU → layer norm → dropout.
type hiddenBlock struct {
	lin  *Linear
	act  *ReLU
	norm *LayerNorm
	drop *Dropout
}

func newHiddenBlock(in, out int, dropRate float64, rng *rand.Rand) *hiddenBlock {
	return &hiddenBlock{
		lin:  NewLinear(in, out, rng),
		act:  NewReLU(),
		norm: NewLayerNorm(out),
		drop: NewDropout(dropRate, rng),
	}
}

func (b *hiddenBlock) forward(x []float64, train bool) []float64 {
	h := b.lin.Forward(x, train)
	h = b.act.Forward(h, train)
	h = b.norm.Forward(h, train)
	return b.drop.Forward(h, train)
}

func (b *hiddenBlock) backward(dout []float64) []float64 {
	d := b.drop.Backward(dout)
	d = b.norm.Backward(d)
	d = b.act.Backward(d)
	return b.lin.Backward(d)
}

func (b *hiddenBlock) params(prefix string) []Param {
	var ps []Param
	ps = append(ps, b.lin.Params(prefix+".lin")...)
	ps = append(ps, b.norm.Params(prefix+".norm")...)
	return ps
}

// =============================================================================
// RatingModel
// =============================================================================

// RatingModel scores a (user, hotel) pair in (1,5). Learned per-entity
// embeddings and feature-tower outputs are concatenated into a 4D fusion
// vector, passed through decreasing-width hidden blocks, and squashed by
// 1 + 4·sigmoid, which guarantees the output range without clamping.
//
// Eval-mode forwards write no layer caches, so a model whose parameters are
// no longer being trained is safe for concurrent inference.
type RatingModel struct {
	dims Dims

	userEmb    *Embedding
	hotelEmb   *Embedding
	userTower  *tower
	hotelTower *tower
	hidden     []*hiddenBlock
	out        *Linear

	// Training caches for the rating head.
	sig float64
}

// New builds a freshly initialized model. The seed drives both weight
// initialization and dropout masks.
func New(dims Dims, opts Options, seed int64) (*RatingModel, error) {
	if dims.NumUsers <= 0 || dims.NumHotels <= 0 {
		return nil, fmt.Errorf("model: population must be positive, got %d users / %d hotels", dims.NumUsers, dims.NumHotels)
	}
	if dims.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("model: embedding dim must be positive, got %d", dims.EmbeddingDim)
	}
	if len(dims.HiddenWidths) == 0 {
		return nil, fmt.Errorf("model: at least one hidden layer is required")
	}

	rng := rand.New(rand.NewSource(seed))
	m := &RatingModel{
		dims:       dims,
		userEmb:    NewEmbedding(dims.NumUsers, dims.EmbeddingDim, rng),
		hotelEmb:   NewEmbedding(dims.NumHotels, dims.EmbeddingDim, rng),
		userTower:  newTower(dims.UserFeatureDim, dims.EmbeddingDim, opts.FeatureDropout, rng),
		hotelTower: newTower(dims.HotelFeatureDim, dims.EmbeddingDim, opts.FeatureDropout, rng),
	}

	prev := dims.EmbeddingDim * 4
	for i, width := range dims.HiddenWidths {
		rate := opts.HiddenDropout
		if i == len(dims.HiddenWidths)-1 {
			rate = opts.FinalDropout
		}
		m.hidden = append(m.hidden, newHiddenBlock(prev, width, rate, rng))
		prev = width
	}
	m.out = NewLinear(prev, 1, rng)

	return m, nil
}

// Dims returns the model shape.
func (m *RatingModel) Dims() Dims { return m.dims }

// Forward runs the network. Training mode enables dropout and caches
// activations for Backward; eval mode is pure.
func (m *RatingModel) Forward(userIdx, hotelIdx int, userFeat, hotelFeat []float64, train bool) float64 {
	ue := m.userEmb.Forward(userIdx, train)
	he := m.hotelEmb.Forward(hotelIdx, train)
	uf := m.userTower.forward(userFeat, train)
	hf := m.hotelTower.forward(hotelFeat, train)

	d := m.dims.EmbeddingDim
	combined := make([]float64, 4*d)
	copy(combined[0*d:], ue)
	copy(combined[1*d:], he)
	copy(combined[2*d:], uf)
	copy(combined[3*d:], hf)

	h := combined
	for _, block := range m.hidden {
		h = block.forward(h, train)
	}

	z := m.out.Forward(h, train)[0]
	s := sigmoid(z)
	if train {
		m.sig = s
	}
	return 1.0 + 4.0*s
}

// Score is the inference entry point: a pure eval-mode forward pass.
func (m *RatingModel) Score(userIdx, hotelIdx int, userFeat, hotelFeat []float64) float64 {
	return m.Forward(userIdx, hotelIdx, userFeat, hotelFeat, false)
}

// Backward accumulates gradients for the last training-mode Forward given
// dL/dprediction.
func (m *RatingModel) Backward(dPred float64) {
	// d(1 + 4σ(z))/dz = 4σ(z)(1−σ(z))
	dz := dPred * 4.0 * m.sig * (1.0 - m.sig)

	d := m.out.Backward([]float64{dz})
	for i := len(m.hidden) - 1; i >= 0; i-- {
		d = m.hidden[i].backward(d)
	}

	ed := m.dims.EmbeddingDim
	m.userEmb.Backward(d[0*ed : 1*ed])
	m.hotelEmb.Backward(d[1*ed : 2*ed])
	m.userTower.backward(d[2*ed : 3*ed])
	m.hotelTower.backward(d[3*ed : 4*ed])
}

// Params returns every learnable tensor in a deterministic order. The
// checkpoint format serializes tensors in exactly this order.
func (m *RatingModel) Params() []Param {
	var ps []Param
	ps = append(ps, m.userEmb.Params("user_emb")...)
	ps = append(ps, m.hotelEmb.Params("hotel_emb")...)
	ps = append(ps, m.userTower.params("user_tower")...)
	ps = append(ps, m.hotelTower.params("hotel_tower")...)
	for i, block := range m.hidden {
		ps = append(ps, block.params(fmt.Sprintf("hidden.%d", i))...)
	}
	ps = append(ps, m.out.Params("out")...)
	return ps
}

// ZeroGrads clears every gradient accumulator.
func (m *RatingModel) ZeroGrads() {
	for _, p := range m.Params() {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
