// Package grad provides sharded gradient accumulators for the backward
// pass. Many fragments scattered across pixels contribute to the same
// vertex or point parameter, so every update is a serialized add keyed by
// the parameter index.
package grad

import (
	"sync"

	"github.com/TheNeeloy/diffraster/dmath"
)

// numShards must stay a power of two for the index mask.
const numShards = 1024

type shardLocks struct{ mu [numShards]sync.Mutex }

func (sl *shardLocks) lock(idx int)   { sl.mu[idx&(numShards-1)].Lock() }
func (sl *shardLocks) unlock(idx int) { sl.mu[idx&(numShards-1)].Unlock() }

// Vec3Sum accumulates per-index vector sums under shard locks. Indices that
// share a shard serialize against each other; distinct shards add in
// parallel.
type Vec3Sum struct {
	locks shardLocks
	vals  []dmath.Vec3
}

func NewVec3Sum(n int) *Vec3Sum {
	return &Vec3Sum{vals: make([]dmath.Vec3, n)}
}

func (s *Vec3Sum) Add(idx int, v dmath.Vec3) {
	s.locks.lock(idx)
	s.vals[idx] = s.vals[idx].Add(v)
	s.locks.unlock(idx)
}

// Values returns the accumulated sums. Callers must not invoke Add
// concurrently with reading the returned slice.
func (s *Vec3Sum) Values() []dmath.Vec3 { return s.vals }

// FloatSum accumulates per-index scalar sums under shard locks.
type FloatSum struct {
	locks shardLocks
	vals  []float64
}

func NewFloatSum(n int) *FloatSum {
	return &FloatSum{vals: make([]float64, n)}
}

func (s *FloatSum) Add(idx int, v float64) {
	s.locks.lock(idx)
	s.vals[idx] += v
	s.locks.unlock(idx)
}

func (s *FloatSum) Values() []float64 { return s.vals }
