package control

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestLowPass2pDCGain(t *testing.T) {
	f := NewLowPass2p(1000, 30)

	in := r3.Vec{X: 1.5, Y: -0.7, Z: 0.2}
	var out r3.Vec
	for i := 0; i < 2000; i++ {
		out = f.Apply(in)
	}

	// unit DC gain: a constant input converges to itself
	if math.Abs(out.X-in.X) > 1e-6 || math.Abs(out.Y-in.Y) > 1e-6 || math.Abs(out.Z-in.Z) > 1e-6 {
		t.Errorf("steady-state output %v, want %v", out, in)
	}
}

func TestLowPass2pAttenuatesStep(t *testing.T) {
	f := NewLowPass2p(1000, 10)
	f.Reset(r3.Vec{})

	out := f.Apply(r3.Vec{X: 1})
	if out.X >= 0.5 {
		t.Errorf("first sample of a step should be strongly attenuated, got %v", out.X)
	}
}

func TestLowPass2pResetSeedsSteadyState(t *testing.T) {
	f := NewLowPass2p(500, 20)
	v := r3.Vec{X: 0.3, Y: 0.1, Z: -0.9}
	f.Reset(v)

	out := f.Apply(v)
	if math.Abs(out.X-v.X) > 1e-9 || math.Abs(out.Y-v.Y) > 1e-9 || math.Abs(out.Z-v.Z) > 1e-9 {
		t.Errorf("Apply after Reset(v) = %v, want %v", out, v)
	}
}

func TestLowPass2pRetunePreservesState(t *testing.T) {
	f := NewLowPass2p(1000, 30)
	v := r3.Vec{X: 0.8}
	f.Reset(v)
	f.Apply(v)

	// retune for a different measured sample rate; state must carry over
	f.SetCutoff(800, 30)
	out := f.Apply(v)
	if math.IsNaN(out.X) {
		t.Fatal("retune produced NaN")
	}
	if math.Abs(out.X-v.X) > 0.2 {
		t.Errorf("retune should not cause a large transient, got %v", out.X)
	}
}

func TestLowPass2pZeroCutoffPassThrough(t *testing.T) {
	f := NewLowPass2p(1000, 0)
	in := r3.Vec{X: 3, Y: -2, Z: 1}
	if out := f.Apply(in); out != in {
		t.Errorf("disabled filter should pass input through, got %v", out)
	}
}
