package training

import (
	"math/rand"
	"sync"
)

// DataLoader produces a finite, restartable sequence of batches per epoch.
// Next returns a nil batch at the end of the epoch; Reset rewinds for the
// next one. Batches are opaque to the trainer beyond device transfer.
type DataLoader interface {
	Len() int
	Reset()
	Next() (any, error)
}

// EpochUpdater is an optional DataLoader hook notified when a new epoch
// begins, so datasets can resample or advance curricula. The first epoch
// gets no notification.
type EpochUpdater interface {
	UpdateEpoch()
}

// Sharded is an optional DataLoader hook for distributed sampling: the
// trainer passes every epoch index to it so shard assignment and shuffle
// order stay consistent across processes.
type Sharded interface {
	SetEpoch(epoch int)
}

// SliceLoader serves pre-built batches from memory. It shuffles with a
// deterministic per-epoch seed so that all ranks derive the same order,
// then strides the order by rank for distributed sharding.
type SliceLoader struct {
	batches   []any
	shuffle   bool
	seed      int64
	rank      int
	worldSize int

	mu       sync.Mutex
	epoch    int
	order    []int
	position int
}

// NewSliceLoader creates a loader over the given batches.
func NewSliceLoader(batches []any, shuffle bool, seed int64) *SliceLoader {
	return &SliceLoader{
		batches:   batches,
		shuffle:   shuffle,
		seed:      seed,
		worldSize: 1,
	}
}

// Shard configures this loader to serve only rank's stride of each epoch's
// order. It returns the loader for chaining.
func (l *SliceLoader) Shard(rank, worldSize int) *SliceLoader {
	if worldSize < 1 {
		worldSize = 1
	}
	l.rank = rank % worldSize
	l.worldSize = worldSize
	return l
}

// SetEpoch records the epoch index used to derive the shuffle seed.
func (l *SliceLoader) SetEpoch(epoch int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch = epoch
}

// Len returns the number of batches this rank serves per epoch.
func (l *SliceLoader) Len() int {
	n := len(l.batches)
	if l.rank >= n {
		return 0
	}
	return (n - l.rank + l.worldSize - 1) / l.worldSize
}

// Reset rebuilds this epoch's order and rewinds to the first batch.
func (l *SliceLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	full := make([]int, len(l.batches))
	for i := range full {
		full[i] = i
	}
	if l.shuffle {
		rng := rand.New(rand.NewSource(l.seed + int64(l.epoch)))
		rng.Shuffle(len(full), func(i, j int) {
			full[i], full[j] = full[j], full[i]
		})
	}

	l.order = l.order[:0]
	for i := l.rank; i < len(full); i += l.worldSize {
		l.order = append(l.order, full[i])
	}
	l.position = 0
}

// Next returns the next batch for this rank, or nil at the end of the
// epoch.
func (l *SliceLoader) Next() (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.position >= len(l.order) {
		return nil, nil
	}
	batch := l.batches[l.order[l.position]]
	l.position++
	return batch, nil
}
