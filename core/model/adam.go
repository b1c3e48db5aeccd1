package model

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
)

// Adam hyperparameters fixed to the usual values; only the learning rate and
// weight decay are tunable.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// Adam is the adaptive optimizer used by the trainer. Moment buffers are
// allocated per parameter tensor on construction and updated in place.
type Adam struct {
	lr          float64
	weightDecay float64
	step        int

	m [][]float64
	v [][]float64
}

// NewAdam allocates moment buffers for the given parameter set.
func NewAdam(params []Param, lr, weightDecay float64) *Adam {
	a := &Adam{
		lr:          lr,
		weightDecay: weightDecay,
		m:           make([][]float64, len(params)),
		v:           make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.Data))
		a.v[i] = make([]float64, len(p.Data))
	}
	return a
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 { return a.lr }

// SetLR replaces the learning rate; used by the plateau scheduler.
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// Step applies one bias-corrected Adam update. params must be the same
// slice, in the same order, as the one passed to NewAdam.
func (a *Adam) Step(params []Param) {
	a.step++
	bc1 := 1.0 - math.Pow(adamBeta1, float64(a.step))
	bc2 := 1.0 - math.Pow(adamBeta2, float64(a.step))

	for i, p := range params {
		m := a.m[i]
		v := a.v[i]
		for j, g := range p.Grad {
			if a.weightDecay != 0 {
				g += a.weightDecay * p.Data[j]
			}
			m[j] = adamBeta1*m[j] + (1-adamBeta1)*g
			v[j] = adamBeta2*v[j] + (1-adamBeta2)*g*g

			mHat := m[j] / bc1
			vHat := v[j] / bc2
			p.Data[j] -= a.lr * mHat / (math.Sqrt(vHat) + adamEps)
		}
	}
}

// ClipGradNorm scales all gradients so their global L2 norm does not exceed
// maxNorm, and returns the pre-clip norm.
func ClipGradNorm(params []Param, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		if len(p.Grad) == 0 {
			continue
		}
		total += vek.Dot(p.Grad, p.Grad)
	}
	norm := math.Sqrt(total)
	if norm > maxNorm && norm > 0 {
		scale := maxNorm / norm
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}
	return norm
}
