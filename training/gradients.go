package training

import (
	"errors"
	"math"
	"strings"
)

// ErrResourceExhausted classifies a step failure as recoverable device
// memory pressure. Compute backends should wrap their exhaustion errors
// with it; for backends that only surface message text, classification
// falls back to best-effort substring matching, which is fragile and
// documented as such.
var ErrResourceExhausted = errors.New("resource exhausted")

var exhaustionPhrases = []string{
	"out of memory",
	"resource exhausted",
}

// IsResourceExhausted reports whether err indicates device resource
// exhaustion, either structurally or by message text.
func IsResourceExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrResourceExhausted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range exhaustionPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// SanitizeGradients replaces every non-finite gradient entry (NaN, +Inf,
// -Inf) across the model's parameters with zero, in place. It never fails;
// parameters without gradients are skipped.
func SanitizeGradients(model Model) {
	for _, param := range model.Parameters() {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		for i, g := range grad {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				grad[i] = 0
			}
		}
	}
}

// ClipGradNorm rescales all gradients in place so their global L2 norm
// does not exceed maxNorm, and returns the norm before clipping.
func ClipGradNorm(params []Parameter, maxNorm float64) float64 {
	var sumSq float64
	for _, param := range params {
		for _, g := range param.Grad() {
			sumSq += g * g
		}
	}
	total := math.Sqrt(sumSq)
	if total <= maxNorm {
		return total
	}

	scale := maxNorm / (total + 1e-6)
	for _, param := range params {
		grad := param.Grad()
		for i := range grad {
			grad[i] *= scale
		}
	}
	return total
}
