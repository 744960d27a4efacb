package weights

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewInitializesBiasAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := New(3, 3, rng) // U=3, S=3 (radius 1)

	for c := 0; c < w.U; c++ {
		if w.Bias(c) != 1.0 {
			t.Fatalf("expected bias %d to init to 1.0, got %v", c, w.Bias(c))
		}
	}
	bound := float32(1.0 / math.Sqrt(9))
	for c := 0; c < w.U; c++ {
		for nx := 0; nx < w.S; nx++ {
			for ny := 0; ny < w.S; ny++ {
				for f := 0; f < w.U+5; f++ {
					v := w.Get(c, nx, ny, f)
					if v < -bound || v > bound {
						t.Fatalf("weight out of Xavier bound: %v not in [-%v,%v]", v, bound, bound)
					}
				}
			}
		}
	}
}

func TestForwardSumsBiasAndActiveWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	w := New(2, 1, rng) // S=1: a single neighborhood position (the center).
	w.SetBias(0, 0.5)
	w.Set(0, 0, 0, FeatureUncollapsed(2), 1.25)

	z := w.Forward(Features{FeatureUncollapsed(2)})
	if math.Abs(z[0]-1.75) > 1e-6 {
		t.Fatalf("expected z[0] = 1.75, got %v", z[0])
	}
}

func TestSoftmaxWithGumbelSumsToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	z := []float64{1, 2, 3}
	p := SoftmaxWithGumbel(z, 1.0, rng)
	var sum float64
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("softmax must sum to 1, got %v", sum)
	}
}

func TestUpdateReducesLossTowardTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	w := New(2, 1, rng)
	features := Features{FeatureUncollapsed(2)}

	z := w.Forward(features)
	before := SoftmaxWithGumbel(z, 0, rng)
	lossBefore, err := w.Update(before, 0, features, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	z2 := w.Forward(features)
	after := SoftmaxWithGumbel(z2, 0, rng)
	lossAfter, err := w.Update(after, 0, features, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if lossAfter >= lossBefore {
		t.Fatalf("expected loss to decrease toward the training target, before=%v after=%v", lossBefore, lossAfter)
	}
}

func TestUpdateDetectsUnderflow(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	w := New(2, 1, rng)
	probs := []float64{0, 1}
	_, err := w.Update(probs, 0, Features{FeatureUncollapsed(2)}, 0.1)
	if err == nil {
		t.Fatalf("expected NumericFault on a zero probability for the target class")
	}
}
