package training

import (
	"testing"
)

func TestProgressBarTracksSteps(t *testing.T) {
	pb := NewProgressBar("epoch 0", 10)

	pb.Update(3, map[string]float64{"loss": 0.5})
	if pb.current != 3 {
		t.Errorf("expected current 3, got %d", pb.current)
	}
	if pb.postfix["loss"] != 0.5 {
		t.Errorf("expected postfix loss 0.5, got %f", pb.postfix["loss"])
	}

	// A later update merges rather than drops earlier postfix keys.
	pb.Update(5, map[string]float64{"lr": 0.01})
	if pb.postfix["loss"] != 0.5 || pb.postfix["lr"] != 0.01 {
		t.Errorf("postfix merge failed: %v", pb.postfix)
	}

	pb.Finish()
	if pb.current != pb.total {
		t.Errorf("finish should pin current to total, got %d", pb.current)
	}
}

func TestProgressBarZeroTotal(t *testing.T) {
	pb := NewProgressBar("empty", 0)
	// Must not panic or divide by zero.
	pb.Update(1, nil)
	pb.Finish()
}
