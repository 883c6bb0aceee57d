package training

import (
	"fmt"
	"math"

	"github.com/tsawler/go-forge/distributed"
)

// MetricAggregator reduces per-process validation metrics to one scalar on
// the coordinator. Every Add is a collective: all processes must call it
// the same number of times per epoch or the group desynchronizes, which
// this package does not detect.
type MetricAggregator struct {
	ctx    distributed.Context
	coll   distributed.Collective
	values []float64
}

func NewMetricAggregator(ctx distributed.Context, coll distributed.Collective) *MetricAggregator {
	return &MetricAggregator{ctx: ctx, coll: coll}
}

// Add exchanges one local metric with the group. The coordinator
// accumulates all world_size values; workers accumulate nothing, since
// their view of the aggregate is not meaningful.
func (a *MetricAggregator) Add(metric float64) error {
	gathered, err := a.coll.AllGather(metric)
	if err != nil {
		return fmt.Errorf("metric all-gather failed: %v", err)
	}
	if a.ctx.IsCoordinator() {
		a.values = append(a.values, gathered...)
	}
	return nil
}

// Reduce returns the NaN-ignoring mean of everything accumulated since the
// last Reduce, then clears the accumulator. With no finite values the
// result is NaN, meaning "no valid metric".
func (a *MetricAggregator) Reduce() float64 {
	mean := NanMean(a.values)
	a.values = a.values[:0]
	return mean
}

// NanMean computes the mean of the finite-or-infinite entries, ignoring
// NaNs. An input with no non-NaN entries yields NaN.
func NanMean(values []float64) float64 {
	var sum float64
	var count int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}
