package training

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

type paramModel struct {
	params []Parameter
	mode   string
}

func (m *paramModel) Parameters() []Parameter { return m.params }
func (m *paramModel) Train()                  { m.mode = "train" }
func (m *paramModel) Eval()                   { m.mode = "eval" }

func TestSanitizeGradients(t *testing.T) {
	p := NewParam([]float64{1, 2, 3, 4, 5})
	grad := p.Grad()
	copy(grad, []float64{0.5, math.NaN(), math.Inf(1), math.Inf(-1), -0.25})

	SanitizeGradients(&paramModel{params: []Parameter{p}})

	want := []float64{0.5, 0, 0, 0, -0.25}
	for i, w := range want {
		if grad[i] != w {
			t.Errorf("grad[%d]: expected %g, got %g", i, w, grad[i])
		}
	}
	for i, g := range grad {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			t.Errorf("grad[%d] still non-finite: %g", i, g)
		}
	}
}

func TestSanitizeGradientsNilGrad(t *testing.T) {
	// A parameter without an accumulated gradient must be skipped, not
	// panicked over.
	model := &paramModel{params: []Parameter{gradlessParam{}}}
	SanitizeGradients(model)
}

type gradlessParam struct{}

func (gradlessParam) Data() []float64 { return []float64{1} }
func (gradlessParam) Grad() []float64 { return nil }

func TestClipGradNorm(t *testing.T) {
	p := NewParam([]float64{0, 0})
	copy(p.Grad(), []float64{3, 4}) // norm 5

	total := ClipGradNorm([]Parameter{p}, 1.0)
	if math.Abs(total-5) > 1e-9 {
		t.Errorf("expected pre-clip norm 5, got %g", total)
	}

	var sumSq float64
	for _, g := range p.Grad() {
		sumSq += g * g
	}
	clipped := math.Sqrt(sumSq)
	if clipped > 1.0+1e-6 {
		t.Errorf("clipped norm %g exceeds max 1.0", clipped)
	}
}

func TestClipGradNormBelowThresholdUntouched(t *testing.T) {
	p := NewParam([]float64{0, 0})
	copy(p.Grad(), []float64{0.3, 0.4})

	ClipGradNorm([]Parameter{p}, 1.0)
	if p.Grad()[0] != 0.3 || p.Grad()[1] != 0.4 {
		t.Errorf("gradients below the threshold were modified: %v", p.Grad())
	}
}

func TestIsResourceExhausted(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrResourceExhausted, true},
		{fmt.Errorf("backward failed: %w", ErrResourceExhausted), true},
		{errors.New("CUDA out of memory"), true},
		{errors.New("RESOURCE EXHAUSTED: OOM when allocating tensor"), true},
		{errors.New("shape mismatch"), false},
	}
	for _, tt := range tests {
		if got := IsResourceExhausted(tt.err); got != tt.want {
			t.Errorf("IsResourceExhausted(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
