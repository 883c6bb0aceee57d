package training

import (
	"github.com/tsawler/go-forge/distributed"
)

// Model is the minimal surface the trainer needs from a model: parameter
// enumeration for gradient sanitization and clipping, and the train/eval
// mode toggle. Forward computation stays behind the injected step
// strategies, so the trainer never sees model internals.
type Model interface {
	Parameters() []Parameter
	Train()
	Eval()
}

// Parameter exposes a mutable view of one parameter tensor and its
// gradient. Grad returns nil when no gradient has been accumulated.
type Parameter interface {
	Data() []float64
	Grad() []float64
}

// Optimizer applies accumulated gradients to the model parameters.
type Optimizer interface {
	ZeroGrad()
	Step() error
	GetLR() float64
	SetLR(lr float64)
}

// Scheduler advances a learning-rate schedule by one tick. What one tick
// means depends on the frequency it is registered under.
type Scheduler interface {
	Step()
}

// MetricScheduler advances a schedule that reacts to the aggregated
// validation metric, stepped once per validation phase.
type MetricScheduler interface {
	StepMetric(metric float64)
}

// Stepper is the default step-strategy source: a model implementing it
// supplies its own train and validation steps, and the trainer uses them
// unless WithTrainStep / WithValidStep override.
//
// TrainStep must run the forward and backward passes for one batch and
// return the scalar loss, leaving gradients accumulated on the
// parameters. ValidStep returns the scalar validation metric for one
// batch and must not touch gradients.
type Stepper interface {
	TrainStep(batch any, step int) (float64, error)
	ValidStep(batch any, step int) (float64, error)
}

// Placeable is implemented by models that move their parameters to a
// compute device at run start.
type Placeable interface {
	ToDevice(device Device) error
}

// DistributedWrapper is implemented by models that wrap themselves for
// data-parallel gradient synchronization. The trainer invokes it once at
// run start when the world size exceeds one; the synchronization itself is
// entirely the wrapper's concern.
type DistributedWrapper interface {
	WrapDistributed(ctx distributed.Context) (Model, error)
}

// StepFunc computes one batch: forward plus backward returning the loss
// for training, or the scalar metric for validation.
type StepFunc func(batch any, step int) (float64, error)

// SaveFunc persists one checkpoint blob at path. The blob format is the
// callback's choice; the trainer only tracks the path.
type SaveFunc func(path string) error

// Param is a plain in-memory Parameter backed by float64 slices. The
// gradient buffer is allocated up front and shares the parameter's length.
type Param struct {
	data []float64
	grad []float64
}

// NewParam wraps values as a trainable parameter. The slice is used
// directly, not copied.
func NewParam(values []float64) *Param {
	return &Param{
		data: values,
		grad: make([]float64, len(values)),
	}
}

func (p *Param) Data() []float64 { return p.data }
func (p *Param) Grad() []float64 { return p.grad }
