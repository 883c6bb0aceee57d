package training

import "testing"

func TestEarlyStoppingPatienceSequence(t *testing.T) {
	stopper := NewEarlyStopping(3)

	// improve, no-improve, no-improve, no-improve
	outcomes := []bool{true, false, false, false}
	wantRemaining := []int{3, 2, 1, 0}
	wantStop := []bool{false, false, false, true}

	for epoch, improved := range outcomes {
		if improved {
			stopper.Improved()
		} else {
			stopper.Decay()
		}
		if got := stopper.Remaining(); got != wantRemaining[epoch] {
			t.Errorf("epoch %d: expected remaining %d, got %d", epoch, wantRemaining[epoch], got)
		}
		if got := stopper.ShouldStop(); got != wantStop[epoch] {
			t.Errorf("epoch %d: expected stop=%v, got %v", epoch, wantStop[epoch], got)
		}
	}
}

func TestEarlyStoppingResetAfterDecay(t *testing.T) {
	stopper := NewEarlyStopping(2)
	stopper.Decay()
	if stopper.Remaining() != 1 {
		t.Fatalf("expected 1 remaining, got %d", stopper.Remaining())
	}
	stopper.Improved()
	if stopper.Remaining() != 2 {
		t.Errorf("improvement should restore full patience, got %d", stopper.Remaining())
	}
}
