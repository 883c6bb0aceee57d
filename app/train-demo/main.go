package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"github.com/tsawler/go-forge/distributed"
	"github.com/tsawler/go-forge/training"
	"golang.org/x/sync/errgroup"
)

// batch is one mini-batch of the synthetic regression problem.
type batch struct {
	xs []float64
	ys []float64
}

// linearModel fits y = w*x + b by mean squared error with analytic
// gradients. It is deliberately tiny: the point is to exercise the full
// training loop, not the model.
type linearModel struct {
	w *training.Param
	b *training.Param
}

func newLinearModel() *linearModel {
	return &linearModel{
		w: training.NewParam([]float64{0}),
		b: training.NewParam([]float64{0}),
	}
}

func (m *linearModel) Parameters() []training.Parameter {
	return []training.Parameter{m.w, m.b}
}

func (m *linearModel) Train() {}
func (m *linearModel) Eval()  {}

func (m *linearModel) forward(x float64) float64 {
	return m.w.Data()[0]*x + m.b.Data()[0]
}

func (m *linearModel) TrainStep(b any, step int) (float64, error) {
	bt, ok := b.(batch)
	if !ok {
		return 0, fmt.Errorf("unexpected batch type %T", b)
	}
	n := float64(len(bt.xs))
	var loss, gw, gb float64
	for i, x := range bt.xs {
		diff := m.forward(x) - bt.ys[i]
		loss += diff * diff
		gw += 2 * diff * x
		gb += 2 * diff
	}
	m.w.Grad()[0] += gw / n
	m.b.Grad()[0] += gb / n
	return loss / n, nil
}

func (m *linearModel) ValidStep(b any, step int) (float64, error) {
	bt, ok := b.(batch)
	if !ok {
		return 0, fmt.Errorf("unexpected batch type %T", b)
	}
	var loss float64
	for i, x := range bt.xs {
		diff := m.forward(x) - bt.ys[i]
		loss += diff * diff
	}
	return loss / float64(len(bt.xs)), nil
}

func (m *linearModel) StateMap() map[string][]float64 {
	return map[string][]float64{
		"w": m.w.Data(),
		"b": m.b.Data(),
	}
}

// makeBatches synthesizes noisy samples of y = 3x - 1.
func makeBatches(count, size int, seed int64) []any {
	rng := rand.New(rand.NewSource(seed))
	batches := make([]any, count)
	for i := range batches {
		b := batch{xs: make([]float64, size), ys: make([]float64, size)}
		for j := range b.xs {
			x := rng.Float64()*4 - 2
			b.xs[j] = x
			b.ys[j] = 3*x - 1 + rng.NormFloat64()*0.05
		}
		batches[i] = b
	}
	return batches
}

func runRank(logger *slog.Logger, cfg training.RunConfig, ctx distributed.Context, coll distributed.Collective) error {
	model := newLinearModel()
	optimizer := training.NewSGD(model.Parameters(), cfg.LR, 0.9)

	trainLoader := training.NewSliceLoader(makeBatches(64, 16, 1), true, 1).
		Shard(ctx.Rank, ctx.WorldSize)

	// Every rank must issue the same number of validation gathers per
	// epoch, so the valid set is sized to shard evenly.
	validLoader := training.NewSliceLoader(makeBatches(8*ctx.WorldSize, 16, 2), false, 2).
		Shard(ctx.Rank, ctx.WorldSize)

	opts := []training.Option{
		training.WithLogger(logger.With("rank", ctx.Rank)),
		training.WithDistributed(ctx, coll),
		training.WithMetricSink(training.NewSlogSink(logger)),
	}
	if ctx.IsCoordinator() {
		opts = append(opts, training.WithProgress())
	}

	trainer, err := training.NewTrainer(model, optimizer, trainLoader, validLoader, cfg, opts...)
	if err != nil {
		return err
	}
	if err := trainer.Run(training.CPU{}); err != nil {
		return err
	}

	if ctx.IsCoordinator() {
		logger.Info("run finished",
			"run_dir", trainer.RunDir(),
			"epochs", trainer.State().Epoch,
			"w", model.w.Data()[0],
			"b", model.b.Data()[0])
	}
	return nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfgFile string
	var worldSize int

	root := &cobra.Command{
		Use:   "train-demo",
		Short: "Fit a toy linear regression with the training loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := training.LoadRunConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			if worldSize < 2 {
				return runRank(logger, cfg, distributed.NewContext(0, 1), distributed.SingleProcess{})
			}

			// Simulate a process group with one goroutine per rank.
			peers := distributed.NewLocalGroup(worldSize)
			var g errgroup.Group
			for rank := 0; rank < worldSize; rank++ {
				rank := rank
				g.Go(func() error {
					return runRank(logger, cfg, distributed.NewContext(rank, worldSize), peers[rank])
				})
			}
			return g.Wait()
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML run config")
	flags.IntVar(&worldSize, "world-size", 1, "number of simulated ranks")
	flags.String("save-dir", "./runs", "root directory for versioned runs")
	flags.Float64("lr", 1e-2, "base learning rate")
	flags.Int("max-epoch", 10, "epoch budget")
	flags.Int("warmup", 50, "linear warmup steps")
	flags.Int("patience", 3, "epochs without improvement before stopping")
	flags.Int("save-topk", 3, "checkpoints to retain, -1 for all")
	flags.Bool("metric-min-better", true, "treat lower validation metric as better")

	if err := root.Execute(); err != nil {
		logger.Error("training failed", "err", err)
		os.Exit(1)
	}
}
