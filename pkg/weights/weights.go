// Package weights implements GeneratorWeights: the dense logistic-regression
// parameter tensor the engine scores cells with, trained incrementally by
// the builder. See pkg/generator/generator.go in the teacher for the
// precedent of a seeded *rand.Rand threaded through every stochastic
// operation rather than the global rand source.
package weights

import (
	"fmt"
	"math"
	"math/rand"
)

// NumericFault is returned when training produces a NaN weight/bias or an
// underflowing probability, per §4.4: "if any probability underflows or any
// weight becomes NaN, raise NumericFault and stop."
type NumericFault struct {
	Detail string
}

func (e *NumericFault) Error() string {
	return fmt.Sprintf("weights: numeric fault: %s", e.Detail)
}

// Weights is the GeneratorWeights tensor: shape (U, S, S, U+5) plus a
// length-U bias vector. U is the unique-tile count, S is the neighborhood
// side (2*radius+1).
type Weights struct {
	U, S   int
	data   []float32 // data[((c*S+nx)*S+ny)*F+f], F = U+5
	bias   []float32
	Epochs int
}

// featureWidth returns F = U+5, the width of the last tensor axis: U tile
// features (indices 0..U-1) plus the five reserved features {uncollapsed,
// top, bottom, left, right} at offsets U..U+4, per §3's GeneratorWeights
// row.
func featureWidth(u int) int {
	return u + 5
}

// FeatureUncollapsed, FeatureTopBorder, ... are the fixed offsets of the
// five reserved features beyond the U tile-index features, per §4.4:
// "U if uncollapsed, or U+1..U+4 for the four border-flag features."
func FeatureUncollapsed(u int) int   { return u }
func FeatureTopBorder(u int) int     { return u + 1 }
func FeatureBottomBorder(u int) int  { return u + 2 }
func FeatureLeftBorder(u int) int    { return u + 3 }
func FeatureRightBorder(u int) int   { return u + 4 }

// New allocates a weight tensor for u unique tiles and neighborhood side s,
// Xavier-uniform-initialized with bound 1/sqrt(A) where A = s*s, and biases
// initialized to 1.0, per the GeneratorWeights row in §3.
func New(u, s int, rng *rand.Rand) *Weights {
	f := featureWidth(u)
	w := &Weights{
		U:    u,
		S:    s,
		data: make([]float32, u*s*s*f),
		bias: make([]float32, u),
	}
	a := float64(s * s)
	bound := 1.0 / math.Sqrt(a)
	for i := range w.data {
		w.data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	for c := range w.bias {
		w.bias[c] = 1.0
	}
	return w
}

// FeatureWidth exposes F = U+5 for callers (pkg/serialize) that need the
// tensor's shape without duplicating the layout constant.
func FeatureWidth(u int) int { return featureWidth(u) }

// Data returns a copy of the flat weight tensor, laid out
// data[((c*S+nx)*S+ny)*F+f], for persistence by pkg/serialize.
func (w *Weights) Data() []float32 {
	cp := make([]float32, len(w.data))
	copy(cp, w.data)
	return cp
}

// BiasData returns a copy of the length-U bias vector, for persistence by
// pkg/serialize.
func (w *Weights) BiasData() []float32 {
	cp := make([]float32, len(w.bias))
	copy(cp, w.bias)
	return cp
}

// FromData rebuilds a Weights from a previously-saved tensor and bias
// vector, validating their lengths against the given shape so a corrupt or
// mismatched document fails fast instead of panicking on first use.
func FromData(u, s, epochs int, data, bias []float32) (*Weights, error) {
	f := featureWidth(u)
	wantData := u * s * s * f
	if len(data) != wantData {
		return nil, fmt.Errorf("weights: expected %d weight values for U=%d S=%d, got %d", wantData, u, s, len(data))
	}
	if len(bias) != u {
		return nil, fmt.Errorf("weights: expected %d bias values for U=%d, got %d", u, u, len(bias))
	}
	w := &Weights{
		U:      u,
		S:      s,
		Epochs: epochs,
		data:   make([]float32, len(data)),
		bias:   make([]float32, len(bias)),
	}
	copy(w.data, data)
	copy(w.bias, bias)
	return w, nil
}

func (w *Weights) index(c, nx, ny, f int) int {
	width := featureWidth(w.U)
	return ((c*w.S+nx)*w.S+ny)*width + f
}

// Get returns the weight for (class c, neighborhood position nx,ny, feature
// f).
func (w *Weights) Get(c, nx, ny, f int) float32 {
	return w.data[w.index(c, nx, ny, f)]
}

// Set writes the weight for (class c, neighborhood position nx,ny, feature
// f).
func (w *Weights) Set(c, nx, ny, f int, v float32) {
	w.data[w.index(c, nx, ny, f)] = v
}

// Add applies an incremental update to the weight at (c, nx, ny, f).
func (w *Weights) Add(c, nx, ny, f int, delta float32) {
	w.data[w.index(c, nx, ny, f)] += delta
}

// Bias returns the bias for class c.
func (w *Weights) Bias(c int) float32 { return w.bias[c] }

// SetBias writes the bias for class c.
func (w *Weights) SetBias(c int, v float32) { w.bias[c] = v }

// AddBias applies an incremental update to the bias for class c.
func (w *Weights) AddBias(c int, delta float32) { w.bias[c] += delta }

// Features is the per-neighborhood-position active feature index, laid out
// row-major as features[nx*S+ny], computed by the caller (pkg/engine, which
// knows the generation region's bounds and the current domain state) from
// the currently committed tile indices and border flags.
type Features []int

// Forward computes the pre-softmax logits z[c] = bias[c] + sum over all
// neighborhood positions of weight[c, nx, ny, f(nx,ny)], for every class c
// in [0, U), per §4.4.
func (w *Weights) Forward(features Features) []float64 {
	z := make([]float64, w.U)
	for c := 0; c < w.U; c++ {
		sum := float64(w.bias[c])
		for nx := 0; nx < w.S; nx++ {
			for ny := 0; ny < w.S; ny++ {
				f := features[nx*w.S+ny]
				sum += float64(w.Get(c, nx, ny, f))
			}
		}
		z[c] = sum
	}
	return z
}

// SoftmaxWithGumbel draws one standard Gumbel sample per class, scales it by
// the noise scale derived from temperature, adds it to z, and returns the
// numerically-stable softmax of the result, per §4.4: "Probabilities p =
// softmax(z + g) ... For numerical stability subtract max(z+g) before
// exponentiation." The noise scale is clamped to [0, +inf): zero and
// negative temperatures both collapse to pure, noise-free softmax(z) (§4.4's
// "shifts toward determinism (negative)"), and scale grows linearly for
// temperature > 0, so raising temperature never decreases the entropy of the
// resulting distribution.
func SoftmaxWithGumbel(z []float64, temperature float64, rng *rand.Rand) []float64 {
	scale := temperature
	if scale < 0 {
		scale = 0
	}
	perturbed := make([]float64, len(z))
	for c := range z {
		perturbed[c] = z[c] + scale*gumbelSample(rng)
	}
	return softmax(perturbed)
}

// gumbelSample draws one sample from the standard Gumbel distribution via
// inverse-CDF sampling: -log(-log(u)).
func gumbelSample(rng *rand.Rand) float64 {
	u := rng.Float64()
	// Guard against log(0): Float64 is in [0,1), so u can be exactly 0.
	for u <= 0 {
		u = rng.Float64()
	}
	return -math.Log(-math.Log(u))
}

func softmax(z []float64) []float64 {
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	exp := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		e := math.Exp(v - max)
		exp[i] = e
		sum += e
	}
	for i := range exp {
		exp[i] /= sum
	}
	return exp
}

const epsilon = 1e-12

// Update applies the cross-entropy gradient step described in §4.4 for
// target class t, given the current probabilities probs (already including
// any Gumbel perturbation used to pick the training signal) and the active
// feature at each neighborhood position. Returns the cross-entropy loss for
// reporting, or a *NumericFault if any resulting weight/bias is NaN or the
// target probability has underflowed to zero.
func (w *Weights) Update(probs []float64, target int, features Features, lr float64) (float64, error) {
	if probs[target] <= 0 {
		return 0, &NumericFault{Detail: fmt.Sprintf("probability for target class %d underflowed to zero", target)}
	}
	loss := -math.Log(probs[target] + epsilon)

	for c := 0; c < w.U; c++ {
		indicator := 0.0
		if c == target {
			indicator = 1.0
		}
		grad := probs[c] - indicator
		delta := float32(-lr * grad)

		newBias := w.bias[c] + delta
		if isBad(newBias) {
			return 0, &NumericFault{Detail: fmt.Sprintf("bias for class %d became %v", c, newBias)}
		}
		w.bias[c] = newBias

		for nx := 0; nx < w.S; nx++ {
			for ny := 0; ny < w.S; ny++ {
				f := features[nx*w.S+ny]
				idx := w.index(c, nx, ny, f)
				nv := w.data[idx] + delta
				if isBad(nv) {
					return 0, &NumericFault{Detail: fmt.Sprintf("weight[%d,%d,%d,%d] became %v", c, nx, ny, f, nv)}
				}
				w.data[idx] = nv
			}
		}
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, &NumericFault{Detail: "loss became NaN or infinite"}
	}
	return loss, nil
}

func isBad(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}
