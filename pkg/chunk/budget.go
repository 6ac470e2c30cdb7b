// pkg/chunk/budget.go

package chunk

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// budget tracks the memory held by live chunks and enforces an optional limit.
// A nil budget tracks nothing and never refuses.
type budget struct {
	limit int64
	sem   *semaphore.Weighted // nil if unlimited
	used  atomic.Int64
}

func newBudget(limit int64) *budget {
	b := &budget{limit: limit}
	if limit > 0 {
		b.sem = semaphore.NewWeighted(limit)
	}
	return b
}

// acquire reserves n bytes without blocking.
func (b *budget) acquire(n int64) bool {
	if b == nil || n <= 0 {
		return true
	}
	if b.sem != nil && !b.sem.TryAcquire(n) {
		return false
	}
	b.used.Add(n)
	return true
}

func (b *budget) release(n int64) {
	if b == nil || n <= 0 {
		return
	}
	if b.sem != nil {
		b.sem.Release(n)
	}
	b.used.Add(-n)
}

func (b *budget) usage() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}
