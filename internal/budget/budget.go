// Package budget caps the total number of auditor calls a process may make.
package budget

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrExhausted is matched by every *ExceededError.
var ErrExhausted = errors.New("call budget exhausted")

// ExceededError is returned when a call is refused because the budget is spent.
type ExceededError struct {
	Limit int64
	Used  int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("call budget exhausted: %d of %d calls used", e.Used, e.Limit)
}

func (e *ExceededError) Is(target error) bool { return target == ErrExhausted }

// Budget is a process-wide counter shared by every worker. A limit of zero or
// less means unbounded; calls are still counted.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// New returns a budget that allows at most limit calls.
func New(limit int) *Budget {
	return &Budget{limit: int64(limit)}
}

// Unlimited returns a budget that never refuses a call.
func Unlimited() *Budget {
	return New(0)
}

// Acquire reserves one call. It returns *ExceededError when the budget is spent.
func (b *Budget) Acquire() error {
	if b == nil {
		return nil
	}
	if b.limit <= 0 {
		b.used.Add(1)
		return nil
	}
	for {
		used := b.used.Load()
		if used >= b.limit {
			return &ExceededError{Limit: b.limit, Used: used}
		}
		if b.used.CompareAndSwap(used, used+1) {
			return nil
		}
	}
}

// Used returns the number of calls reserved so far.
func (b *Budget) Used() int {
	if b == nil {
		return 0
	}
	return int(b.used.Load())
}

// Remaining returns how many calls are left, or -1 when unbounded.
func (b *Budget) Remaining() int {
	if b == nil || b.limit <= 0 {
		return -1
	}
	return int(b.limit - b.used.Load())
}

// Limit returns the configured ceiling. Zero means unbounded.
func (b *Budget) Limit() int {
	if b == nil || b.limit <= 0 {
		return 0
	}
	return int(b.limit)
}
