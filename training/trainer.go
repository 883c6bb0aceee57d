// Package training drives iterative supervised training of an arbitrary
// differentiable model: epoch and batch scheduling, learning-rate phase
// transitions, distributed validation-metric aggregation, NaN-safe
// gradient handling, best-checkpoint retention and early stopping. The
// model's forward pass, the optimizer's update rule and the checkpoint
// blob format all stay behind small injected capabilities.
package training

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/tsawler/go-forge/checkpoints"
	"github.com/tsawler/go-forge/distributed"
)

// TrainingState is the mutable run state, owned exclusively by the
// Trainer. GlobalStep counts successfully applied batches across all
// epochs; skipped batches do not advance it.
type TrainingState struct {
	GlobalStep      int
	ValidGlobalStep int
	Epoch           int
	LastValidMetric float64
	HasValidMetric  bool
}

// Trainer composes the run configuration, the injected collaborators and
// the run state, and drives the epoch/batch loop until the epoch budget or
// the patience counter runs out.
type Trainer struct {
	cfg       RunConfig
	model     Model
	optimizer Optimizer

	trainLoader DataLoader
	validLoader DataLoader

	trainStep StepFunc
	validStep StepFunc
	saveFn    SaveFunc

	warmupSched Scheduler
	mainSched   Scheduler
	metricSched MetricScheduler
	mainFreq    Frequency
	schedule    *Schedule

	dctx distributed.Context
	coll distributed.Collective

	logger       *slog.Logger
	sink         MetricSink
	buffer       map[string][]float64
	showProgress bool

	stopper *EarlyStopping
	agg     *MetricAggregator
	topk    *checkpoints.TopK

	state   TrainingState
	device  Device
	version int
	runDir  string
	ckptDir string
}

// Option configures optional Trainer collaborators.
type Option func(*Trainer)

// WithTrainStep overrides the model-provided training step strategy.
func WithTrainStep(fn StepFunc) Option {
	return func(t *Trainer) { t.trainStep = fn }
}

// WithValidStep overrides the model-provided validation step strategy.
func WithValidStep(fn StepFunc) Option {
	return func(t *Trainer) { t.validStep = fn }
}

// WithWarmupScheduler replaces the default linear warmup schedule.
func WithWarmupScheduler(s Scheduler) Option {
	return func(t *Trainer) { t.warmupSched = s }
}

// WithScheduler registers the main scheduler at batch or epoch frequency.
func WithScheduler(s Scheduler, freq Frequency) Option {
	return func(t *Trainer) {
		t.mainSched = s
		t.mainFreq = freq
	}
}

// WithMetricScheduler registers a main scheduler stepped once per
// validation phase with the aggregated metric.
func WithMetricScheduler(s MetricScheduler) Option {
	return func(t *Trainer) {
		t.metricSched = s
		t.mainFreq = FreqValidEpoch
	}
}

// WithDistributed places the trainer in a multi-process group. Both the
// context and the collective must describe the same group.
func WithDistributed(ctx distributed.Context, coll distributed.Collective) Option {
	return func(t *Trainer) {
		t.dctx = ctx
		t.coll = coll
	}
}

// WithLogger sets the structured logger for warnings and run events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) { t.logger = logger }
}

// WithMetricSink sets the scalar log event consumer.
func WithMetricSink(sink MetricSink) Option {
	return func(t *Trainer) { t.sink = sink }
}

// WithCheckpointFunc overrides how checkpoint blobs are persisted.
func WithCheckpointFunc(fn SaveFunc) Option {
	return func(t *Trainer) { t.saveFn = fn }
}

// WithProgress enables the coordinator's per-epoch progress bar.
func WithProgress() Option {
	return func(t *Trainer) { t.showProgress = true }
}

// NewTrainer validates the configuration and wires the trainer together.
// The model must either implement Stepper or have both step strategies
// injected; likewise it must implement checkpoints.StateExporter unless a
// checkpoint function is injected.
func NewTrainer(model Model, optimizer Optimizer, trainLoader, validLoader DataLoader, cfg RunConfig, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %v", err)
	}
	if model == nil || optimizer == nil || trainLoader == nil || validLoader == nil {
		return nil, errors.New("model, optimizer and both data loaders are required")
	}

	t := &Trainer{
		cfg:         cfg,
		model:       model,
		optimizer:   optimizer,
		trainLoader: trainLoader,
		validLoader: validLoader,
		dctx:        distributed.NewContext(0, 1),
		coll:        distributed.SingleProcess{},
		logger:      slog.Default(),
		sink:        NopSink{},
		buffer:      make(map[string][]float64),
		mainFreq:    FreqNone,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.trainStep == nil || t.validStep == nil {
		stepper, ok := model.(Stepper)
		if !ok {
			return nil, errors.New("model does not implement Stepper; inject WithTrainStep and WithValidStep")
		}
		if t.trainStep == nil {
			t.trainStep = stepper.TrainStep
		}
		if t.validStep == nil {
			t.validStep = stepper.ValidStep
		}
	}

	if t.saveFn == nil {
		exporter, ok := model.(checkpoints.StateExporter)
		if !ok {
			return nil, errors.New("model does not implement checkpoints.StateExporter; inject WithCheckpointFunc")
		}
		t.saveFn = func(path string) error {
			return checkpoints.Save(path, exporter, t.state.Epoch, t.state.GlobalStep)
		}
	}

	if t.mainFreq == FreqValidEpoch && t.metricSched == nil {
		return nil, errors.New("val_epoch frequency requires a metric scheduler")
	}
	if t.warmupSched == nil && cfg.Warmup > 0 {
		t.warmupSched = NewLinearWarmup(optimizer, cfg.LR, cfg.Warmup)
	}

	t.stopper = NewEarlyStopping(cfg.Patience)
	t.agg = NewMetricAggregator(t.dctx, t.coll)
	return t, nil
}

// State returns a copy of the current run state.
func (t *Trainer) State() TrainingState {
	return t.state
}

// Version returns the run version allocated at run start.
func (t *Trainer) Version() int {
	return t.version
}

// RunDir returns the versioned run directory, valid once Run has started.
func (t *Trainer) RunDir() string {
	return t.runDir
}

// Log forwards a scalar to the metric sink. Only the coordinator emits.
func (t *Trainer) Log(name string, value float64, step int) {
	if t.dctx.IsCoordinator() {
		t.sink.Log(name, value, step)
	}
}

// LogBuffered accumulates a per-epoch value; the buffer is flushed once
// per validation phase as the NaN-ignoring mean per name.
func (t *Trainer) LogBuffered(name string, value float64) {
	if t.dctx.IsCoordinator() {
		t.buffer[name] = append(t.buffer[name], value)
	}
}

// Run executes the full training loop on the device. It returns nil on a
// normal stop (epoch budget or patience exhaustion) and the original
// failure on any fatal error.
func (t *Trainer) Run(device Device) error {
	t.device = device

	version, err := NextRunVersion(t.cfg.SaveDir)
	if err != nil {
		return err
	}
	t.version = version
	t.runDir = filepath.Join(t.cfg.SaveDir, fmt.Sprintf("version_%d", version))
	t.ckptDir = filepath.Join(t.runDir, "checkpoint")
	t.cfg.SaveDir = t.runDir

	if t.dctx.IsCoordinator() {
		if err := os.MkdirAll(t.ckptDir, 0755); err != nil {
			return fmt.Errorf("failed to create run directory: %v", err)
		}
		if err := WriteRunManifest(t.runDir, t.cfg, t.dctx); err != nil {
			return err
		}
	}

	t.topk = checkpoints.NewTopK(t.ckptDir, t.cfg.SaveTopK, t.cfg.MetricMinBetter)
	t.schedule = NewSchedule(t.cfg.Warmup, t.warmupSched, t.mainSched, t.metricSched, t.mainFreq)

	if placeable, ok := t.model.(Placeable); ok {
		if err := placeable.ToDevice(device); err != nil {
			return fmt.Errorf("failed to place model on %s: %v", device.Name(), err)
		}
	}
	if t.dctx.IsDistributed() {
		if wrapper, ok := t.model.(DistributedWrapper); ok {
			wrapped, err := wrapper.WrapDistributed(t.dctx)
			if err != nil {
				return fmt.Errorf("failed to wrap model for distributed training: %v", err)
			}
			t.model = wrapped
		}
		t.logger.Info("distributed training",
			"rank", t.dctx.Rank, "world_size", t.dctx.WorldSize, "role", t.dctx.Role.String())
	}

	t.model.Train()
	for t.state.Epoch < t.cfg.MaxEpoch {
		if t.dctx.IsCoordinator() {
			t.logger.Info("epoch starting", "epoch", t.state.Epoch, "version", t.version)
		}
		if err := t.trainEpoch(); err != nil {
			return err
		}
		if err := t.validEpoch(); err != nil {
			return err
		}
		t.state.Epoch++

		// Patience is a coordinator decision; workers run to the epoch
		// bound. Without an explicit stop broadcast they cannot halt
		// early, so a mixed-length run relies on the coordinator's epoch
		// budget matching the workers'.
		if t.dctx.IsCoordinator() && t.stopper.ShouldStop() {
			t.logger.Info("early stopping", "epoch", t.state.Epoch, "patience", t.cfg.Patience)
			break
		}
	}
	return nil
}

func (t *Trainer) trainEpoch() error {
	if t.state.Epoch > 0 {
		if updater, ok := t.trainLoader.(EpochUpdater); ok {
			updater.UpdateEpoch()
		}
	}
	if t.dctx.IsDistributed() {
		if sharded, ok := t.trainLoader.(Sharded); ok {
			sharded.SetEpoch(t.state.Epoch)
		}
	}
	t.trainLoader.Reset()

	var bar *ProgressBar
	if t.showProgress && t.dctx.IsCoordinator() {
		bar = NewProgressBar(fmt.Sprintf("epoch %d", t.state.Epoch), t.trainLoader.Len())
	}

	batchIndex := 0
	for {
		batch, err := t.trainLoader.Next()
		if err != nil {
			return fmt.Errorf("train loader failed at epoch %d: %v", t.state.Epoch, err)
		}
		if batch == nil {
			break
		}
		batchIndex++

		batch, err = ToDevice(batch, t.device)
		if err != nil {
			return fmt.Errorf("failed to transfer batch to %s: %v", t.device.Name(), err)
		}

		t.optimizer.ZeroGrad()
		loss, err := t.trainStep(batch, t.state.GlobalStep)
		if err != nil {
			if IsResourceExhausted(err) {
				t.logger.Warn("resource exhausted, skipping batch",
					"epoch", t.state.Epoch, "step", t.state.GlobalStep, "err", err)
				releaseCache(t.device)
				continue
			}
			return fmt.Errorf("train step failed at epoch %d step %d: %w",
				t.state.Epoch, t.state.GlobalStep, err)
		}

		SanitizeGradients(t.model)
		if math.IsNaN(loss) {
			t.logger.Warn("encountered NaN loss, skipping batch",
				"epoch", t.state.Epoch, "step", t.state.GlobalStep)
			continue
		}

		if t.cfg.GradClip != nil {
			ClipGradNorm(t.model.Parameters(), *t.cfg.GradClip)
		}
		if err := t.optimizer.Step(); err != nil {
			return fmt.Errorf("optimizer step failed at epoch %d step %d: %w",
				t.state.Epoch, t.state.GlobalStep, err)
		}

		applied := t.state.GlobalStep
		t.state.GlobalStep++
		t.schedule.OnBatch(applied)

		if bar != nil {
			bar.Update(batchIndex, map[string]float64{"loss": loss, "version": float64(t.version)})
		}
	}

	t.schedule.OnEpochEnd(t.state.GlobalStep)
	if bar != nil {
		bar.Finish()
	}
	return nil
}

func (t *Trainer) validEpoch() error {
	t.model.Eval()
	defer t.model.Train()

	if t.dctx.IsDistributed() {
		if sharded, ok := t.validLoader.(Sharded); ok {
			sharded.SetEpoch(t.state.Epoch)
		}
	}
	t.validLoader.Reset()

	for {
		batch, err := t.validLoader.Next()
		if err != nil {
			return fmt.Errorf("valid loader failed at epoch %d: %v", t.state.Epoch, err)
		}
		if batch == nil {
			break
		}

		batch, err = ToDevice(batch, t.device)
		if err != nil {
			return fmt.Errorf("failed to transfer batch to %s: %v", t.device.Name(), err)
		}

		metric, err := t.validStep(batch, t.state.ValidGlobalStep)
		if err != nil {
			return fmt.Errorf("valid step failed at epoch %d step %d: %w",
				t.state.Epoch, t.state.ValidGlobalStep, err)
		}
		if math.IsNaN(metric) {
			// Skipping locally before the gather means a rank with more
			// NaNs issues fewer collectives than its peers; the group is
			// trusted to produce NaNs consistently or hang, per the
			// no-desync-detection contract.
			t.logger.Warn("encountered NaN metric, skipping batch",
				"epoch", t.state.Epoch, "step", t.state.ValidGlobalStep)
			continue
		}
		if err := t.agg.Add(metric); err != nil {
			return err
		}
		t.state.ValidGlobalStep++
	}

	if !t.dctx.IsCoordinator() {
		return nil
	}

	aggregate := t.agg.Reduce()
	if t.metricBetter(aggregate) {
		t.stopper.Improved()
		path := filepath.Join(t.ckptDir, fmt.Sprintf("epoch%d_step%d.ckpt", t.state.Epoch, t.state.GlobalStep))
		if err := t.saveFn(path); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		if err := t.topk.Insert(aggregate, path); err != nil {
			return err
		}
		t.logger.Info("validation improved",
			"epoch", t.state.Epoch, "metric", aggregate, "checkpoint", path)
	} else {
		t.stopper.Decay()
		t.logger.Info("validation did not improve",
			"epoch", t.state.Epoch, "metric", aggregate, "patience_remaining", t.stopper.Remaining())
	}

	// The next comparison is always against the most recent aggregate,
	// not the best-ever value.
	t.state.LastValidMetric = aggregate
	t.state.HasValidMetric = true

	t.schedule.OnValidation(t.state.GlobalStep, aggregate)
	t.flushBuffer()
	return nil
}

// metricBetter applies the configured comparator with strict inequality;
// ties are not improvements. NaN compares false on either side: a NaN
// aggregate is never an improvement, and a stored NaN suppresses the next
// comparison until the unconditional overwrite replaces it.
func (t *Trainer) metricBetter(new float64) bool {
	if !t.state.HasValidMetric {
		return !math.IsNaN(new)
	}
	if t.cfg.MetricMinBetter {
		return new < t.state.LastValidMetric
	}
	return t.state.LastValidMetric < new
}

func (t *Trainer) flushBuffer() {
	for name, values := range t.buffer {
		t.sink.Log(name, NanMean(values), t.state.Epoch)
	}
	clear(t.buffer)
}
