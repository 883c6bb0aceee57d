// Package distributed provides the process-group context and collective
// communication capability used for data-parallel training. The core keeps
// no failure detection: every process must invoke collectives in the same
// order, or the group deadlocks.
package distributed

import "fmt"

// Role identifies a process's position in the training group.
type Role int

const (
	// Single means the process trains alone; it is its own coordinator.
	Single Role = iota
	// Coordinator is rank 0 of a multi-process group. It owns metric
	// reduction, checkpoint writes, and the stop decision.
	Coordinator
	// Worker is any non-zero rank of a multi-process group.
	Worker
)

func (r Role) String() string {
	switch r {
	case Single:
		return "single"
	case Coordinator:
		return "coordinator"
	case Worker:
		return "worker"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// Context describes this process's place in the training group. It is set
// once at run start and never mutated afterwards.
type Context struct {
	Rank      int
	WorldSize int
	Role      Role
}

// NewContext builds a Context for the given rank and world size. A world
// size below 2 always yields a Single context regardless of rank.
func NewContext(rank, worldSize int) Context {
	if worldSize < 2 {
		return Context{Rank: 0, WorldSize: 1, Role: Single}
	}
	role := Worker
	if rank == 0 {
		role = Coordinator
	}
	return Context{Rank: rank, WorldSize: worldSize, Role: role}
}

// IsCoordinator reports whether this process makes group-wide decisions.
// A single process coordinates itself.
func (c Context) IsCoordinator() bool {
	return c.Role == Single || c.Role == Coordinator
}

// IsDistributed reports whether peer processes exist.
func (c Context) IsDistributed() bool {
	return c.WorldSize > 1
}
