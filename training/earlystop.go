package training

// EarlyStopping is the patience counter deciding run termination. The
// counter starts at the configured patience, resets to full on any
// improving validation epoch and decrements otherwise; the run halts once
// it reaches zero.
type EarlyStopping struct {
	patience  int
	remaining int
}

func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{patience: patience, remaining: patience}
}

// Improved resets the counter to full patience.
func (e *EarlyStopping) Improved() {
	e.remaining = e.patience
}

// Decay consumes one unit of patience.
func (e *EarlyStopping) Decay() {
	e.remaining--
}

// Remaining returns the patience left.
func (e *EarlyStopping) Remaining() int {
	return e.remaining
}

// ShouldStop reports whether patience is exhausted.
func (e *EarlyStopping) ShouldStop() bool {
	return e.remaining <= 0
}
