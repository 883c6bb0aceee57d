package distributed

import "sync"

// Collective is the synchronous all-to-all exchange used during validation.
// AllGather blocks until every process in the group has contributed a value
// and returns the values indexed by rank. Only the coordinator's view of
// the gathered values is meaningful to callers; workers participate purely
// to keep the collective aligned.
type Collective interface {
	AllGather(local float64) ([]float64, error)
}

// SingleProcess is the degenerate collective for world size 1.
type SingleProcess struct{}

// AllGather returns the local value as a one-element slice.
func (SingleProcess) AllGather(local float64) ([]float64, error) {
	return []float64{local}, nil
}

// LocalGroup is an in-process collective connecting one goroutine per rank.
// It exists for tests and single-machine data parallelism; a multi-machine
// deployment supplies its own Collective over whatever transport it uses.
//
// Each round is a reusable barrier: ranks block in AllGather until all
// WorldSize values for the current generation have arrived, then every
// rank receives the same snapshot.
type LocalGroup struct {
	world int

	mu      sync.Mutex
	arrived int
	gen     uint64
	values  []float64
	out     []float64
	woken   *sync.Cond
}

// NewLocalGroup creates a group barrier for worldSize ranks and returns one
// Peer per rank.
func NewLocalGroup(worldSize int) []*Peer {
	if worldSize < 1 {
		worldSize = 1
	}
	g := &LocalGroup{
		world:  worldSize,
		values: make([]float64, worldSize),
	}
	g.woken = sync.NewCond(&g.mu)

	peers := make([]*Peer, worldSize)
	for rank := range peers {
		peers[rank] = &Peer{group: g, rank: rank}
	}
	return peers
}

// Peer is one rank's handle on a LocalGroup.
type Peer struct {
	group *LocalGroup
	rank  int
}

// Rank returns the rank this peer contributes as.
func (p *Peer) Rank() int { return p.rank }

// AllGather contributes the local value and blocks until the whole group
// has arrived. A rank that never calls AllGather hangs the group; that
// mirrors real collective semantics and is not detected here.
func (p *Peer) AllGather(local float64) ([]float64, error) {
	g := p.group
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.gen
	g.values[p.rank] = local
	g.arrived++

	if g.arrived == g.world {
		// Last arrival publishes the snapshot and opens the next round.
		g.out = make([]float64, g.world)
		copy(g.out, g.values)
		g.arrived = 0
		g.gen++
		g.woken.Broadcast()
	} else {
		for gen == g.gen {
			g.woken.Wait()
		}
	}
	return g.out, nil
}
