package training

import (
	"fmt"
	"math"
)

// Frequency declares when a main scheduler is stepped.
type Frequency int

const (
	// FreqNone means no main scheduler activity.
	FreqNone Frequency = iota
	// FreqBatch steps the main scheduler after every applied batch.
	FreqBatch
	// FreqEpoch steps the main scheduler once after each training epoch.
	FreqEpoch
	// FreqValidEpoch steps the main scheduler once per validation phase,
	// fed the aggregated validation metric.
	FreqValidEpoch
)

func (f Frequency) String() string {
	switch f {
	case FreqNone:
		return "none"
	case FreqBatch:
		return "batch"
	case FreqEpoch:
		return "epoch"
	case FreqValidEpoch:
		return "val_epoch"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// Phase is the learning-rate phase of a run.
type Phase int

const (
	// PhaseWarmup ramps the learning rate over the first Warmup steps.
	PhaseWarmup Phase = iota
	// PhaseMain is everything after warmup completes. The transition
	// happens exactly once and is irreversible.
	PhaseMain
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseMain:
		return "main"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// Schedule routes scheduler stepping between the warmup and main phases.
// While the global step is below the warmup threshold the warmup scheduler
// steps on every batch; from the threshold on, exactly one frequency mode
// drives the main scheduler. Either scheduler may be nil, which simply
// disables stepping for its phase.
type Schedule struct {
	warmupSteps int
	warmup      Scheduler
	main        Scheduler
	metricMain  MetricScheduler
	freq        Frequency
	phase       Phase
}

// NewSchedule builds the phase router. main drives the batch and epoch
// frequencies; metricMain drives val_epoch. Exactly one of them should be
// set for a given freq; NewTrainer enforces that pairing.
func NewSchedule(warmupSteps int, warmup Scheduler, main Scheduler, metricMain MetricScheduler, freq Frequency) *Schedule {
	phase := PhaseWarmup
	if warmupSteps <= 0 {
		phase = PhaseMain
	}
	return &Schedule{
		warmupSteps: warmupSteps,
		warmup:      warmup,
		main:        main,
		metricMain:  metricMain,
		freq:        freq,
		phase:       phase,
	}
}

// Phase returns the current learning-rate phase.
func (s *Schedule) Phase() Phase {
	return s.phase
}

// warmupDone reports whether the given global step is past the warmup
// threshold, latching the irreversible phase transition.
func (s *Schedule) warmupDone(globalStep int) bool {
	if globalStep < s.warmupSteps {
		return false
	}
	s.phase = PhaseMain
	return true
}

// OnBatch is called once per successfully applied batch with the step
// index that was just applied.
func (s *Schedule) OnBatch(stepIndex int) {
	if !s.warmupDone(stepIndex) {
		if s.warmup != nil {
			s.warmup.Step()
		}
		return
	}
	if s.freq == FreqBatch && s.main != nil {
		s.main.Step()
	}
}

// OnEpochEnd is called once after each training epoch's batch loop with
// the current global step count.
func (s *Schedule) OnEpochEnd(globalStep int) {
	if !s.warmupDone(globalStep) {
		return
	}
	if s.freq == FreqEpoch && s.main != nil {
		s.main.Step()
	}
}

// OnValidation is called once per validation phase with the aggregated
// validation metric.
func (s *Schedule) OnValidation(globalStep int, metric float64) {
	if !s.warmupDone(globalStep) {
		return
	}
	if s.freq == FreqValidEpoch && s.metricMain != nil {
		s.metricMain.StepMetric(metric)
	}
}

// LRSchedule computes a learning rate for a schedule tick. Implementations
// are pure; state lives in the ScheduleStepper driving them.
type LRSchedule interface {
	GetLR(tick int, baseLR float64) float64
	Name() string
}

// StepLR reduces the learning rate by Gamma every StepSize ticks.
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR creates a step decay schedule, clamping nonsense arguments to
// the conventional defaults.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLR) GetLR(tick int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(tick/s.StepSize))
}

func (s *StepLR) Name() string { return "StepLR" }

// ExponentialLR decays the learning rate by Gamma every tick.
type ExponentialLR struct {
	Gamma float64
}

func NewExponentialLR(gamma float64) *ExponentialLR {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLR{Gamma: gamma}
}

func (s *ExponentialLR) GetLR(tick int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(tick))
}

func (s *ExponentialLR) Name() string { return "ExponentialLR" }

// CosineAnnealingLR anneals from baseLR down to EtaMin over TMax ticks.
type CosineAnnealingLR struct {
	TMax   int
	EtaMin float64
}

func NewCosineAnnealingLR(tMax int, etaMin float64) *CosineAnnealingLR {
	if tMax <= 0 {
		tMax = 100
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealingLR{TMax: tMax, EtaMin: etaMin}
}

func (s *CosineAnnealingLR) GetLR(tick int, baseLR float64) float64 {
	if tick >= s.TMax {
		return s.EtaMin
	}
	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(tick)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLR) Name() string { return "CosineAnnealingLR" }

// ScheduleStepper drives a pure LRSchedule against an optimizer, counting
// ticks. Register it at batch or epoch frequency; each Step applies the
// schedule's rate for the current tick and advances.
type ScheduleStepper struct {
	opt    Optimizer
	sched  LRSchedule
	baseLR float64
	tick   int
}

func NewScheduleStepper(opt Optimizer, sched LRSchedule, baseLR float64) *ScheduleStepper {
	return &ScheduleStepper{opt: opt, sched: sched, baseLR: baseLR}
}

func (s *ScheduleStepper) Step() {
	s.opt.SetLR(s.sched.GetLR(s.tick, s.baseLR))
	s.tick++
}

// LinearWarmup ramps the learning rate linearly from baseLR/total up to
// baseLR over total steps, then holds it there.
type LinearWarmup struct {
	opt    Optimizer
	baseLR float64
	total  int
	step   int
}

func NewLinearWarmup(opt Optimizer, baseLR float64, total int) *LinearWarmup {
	if total < 1 {
		total = 1
	}
	return &LinearWarmup{opt: opt, baseLR: baseLR, total: total}
}

func (w *LinearWarmup) Step() {
	w.step++
	frac := float64(w.step) / float64(w.total)
	if frac > 1 {
		frac = 1
	}
	w.opt.SetLR(w.baseLR * frac)
}

// Plateau reduces the learning rate by Factor once the validation metric
// has failed to improve for Patience validation epochs. It is stepped at
// val_epoch frequency with the aggregated metric. A NaN metric never
// counts as an improvement.
type Plateau struct {
	Factor    float64
	Patience  int
	Threshold float64
	MinLR     float64

	opt         Optimizer
	minBetter   bool
	best        float64
	badEpochs   int
	initialized bool
}

func NewPlateau(opt Optimizer, minBetter bool, factor float64, patience int, threshold, minLR float64) *Plateau {
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	return &Plateau{
		Factor:    factor,
		Patience:  patience,
		Threshold: threshold,
		MinLR:     minLR,
		opt:       opt,
		minBetter: minBetter,
	}
}

func (p *Plateau) StepMetric(metric float64) {
	if !p.initialized {
		if !math.IsNaN(metric) {
			p.best = metric
			p.initialized = true
		}
		return
	}

	improved := false
	if p.minBetter {
		improved = metric < p.best-p.Threshold
	} else {
		improved = metric > p.best+p.Threshold
	}

	if improved {
		p.best = metric
		p.badEpochs = 0
		return
	}
	p.badEpochs++
	if p.badEpochs >= p.Patience {
		lr := p.opt.GetLR() * p.Factor
		if lr < p.MinLR {
			lr = p.MinLR
		}
		p.opt.SetLR(lr)
		p.badEpochs = 0
	}
}
