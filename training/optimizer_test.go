package training

import (
	"math"
	"testing"
)

func TestSGDStep(t *testing.T) {
	p := NewParam([]float64{1.0, 2.0})
	copy(p.Grad(), []float64{0.5, -0.5})

	sgd := NewSGD([]Parameter{p}, 0.1, 0)
	if err := sgd.Step(); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	want := []float64{0.95, 2.05}
	for i, v := range p.Data() {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("param %d: expected %f, got %f", i, want[i], v)
		}
	}
}

func TestSGDZeroGrad(t *testing.T) {
	p := NewParam([]float64{1.0})
	p.Grad()[0] = 3.0

	sgd := NewSGD([]Parameter{p}, 0.1, 0)
	sgd.ZeroGrad()

	if p.Grad()[0] != 0 {
		t.Errorf("expected zeroed gradient, got %f", p.Grad()[0])
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	p := NewParam([]float64{0})
	sgd := NewSGD([]Parameter{p}, 1.0, 0.5)

	// Constant gradient 1: velocities 1, 1.5; positions -1, -2.5.
	p.Grad()[0] = 1
	if err := sgd.Step(); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Data()[0]-(-1.0)) > 1e-12 {
		t.Errorf("after first step expected -1, got %f", p.Data()[0])
	}

	p.Grad()[0] = 1
	if err := sgd.Step(); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Data()[0]-(-2.5)) > 1e-12 {
		t.Errorf("after second step expected -2.5, got %f", p.Data()[0])
	}
}

func TestSGDLearningRate(t *testing.T) {
	sgd := NewSGD(nil, 0.01, 0)
	if sgd.GetLR() != 0.01 {
		t.Errorf("expected lr 0.01, got %f", sgd.GetLR())
	}
	sgd.SetLR(0.001)
	if sgd.GetLR() != 0.001 {
		t.Errorf("expected lr 0.001 after SetLR, got %f", sgd.GetLR())
	}
}
