package cost

import (
	"fmt"
	"sync"
)

// BudgetMode controls how the per-slot allocation is enforced.
type BudgetMode string

const (
	// BudgetHard skips slots whose estimated cost exceeds their
	// remaining allocation.
	BudgetHard BudgetMode = "hard"
	// BudgetSuggested treats allocations as advisory: overruns are
	// logged but allowed.
	BudgetSuggested BudgetMode = "suggested"
)

// AllocationStrategy controls how the global budget is divided across
// slots.
type AllocationStrategy string

const (
	// AllocationFixed splits the budget evenly up front.
	AllocationFixed AllocationStrategy = "fixed"
	// AllocationDynamic recomputes remaining-budget / remaining-slots
	// after each completion.
	AllocationDynamic AllocationStrategy = "dynamic"
)

// BudgetExceededError marks a slot skipped in hard budget mode.
type BudgetExceededError struct {
	Daypart    string
	Estimated  float64
	Allocation float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for %s: estimated %.4f > allocation %.4f",
		e.Daypart, e.Estimated, e.Allocation)
}

// Ledger tracks the batch-wide cost budget. It is the only state
// mutated by concurrent pipelines; every mutation goes through one
// mutex so hard-mode correctness is enforced at the debit point.
// Reads used for advisory checks may be momentarily stale by design.
type Ledger struct {
	mu         sync.Mutex
	budget     float64
	spent      float64
	mode       BudgetMode
	strategy   AllocationStrategy
	slotsTotal int
	slotsDone  int
}

// NewLedger creates a ledger for a batch of slots against a global
// budget (currency units).
func NewLedger(budget float64, mode BudgetMode, strategy AllocationStrategy, slots int) *Ledger {
	if slots < 1 {
		slots = 1
	}
	return &Ledger{
		budget:     budget,
		mode:       mode,
		strategy:   strategy,
		slotsTotal: slots,
	}
}

// Mode returns the budget mode.
func (l *Ledger) Mode() BudgetMode {
	return l.mode
}

// Budget returns the global ceiling.
func (l *Ledger) Budget() float64 {
	return l.budget
}

// Spent returns the amount debited so far.
func (l *Ledger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}

// Remaining returns the undebited budget, floored at zero.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked()
}

func (l *Ledger) remainingLocked() float64 {
	rem := l.budget - l.spent
	if rem < 0 {
		return 0
	}
	return rem
}

// Allocation returns the current per-slot ceiling under the active
// strategy.
func (l *Ledger) Allocation() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.strategy {
	case AllocationFixed:
		return l.budget / float64(l.slotsTotal)
	default: // dynamic
		pending := l.slotsTotal - l.slotsDone
		if pending < 1 {
			pending = 1
		}
		return l.remainingLocked() / float64(pending)
	}
}

// Debit records a completed slot's actual cost. This is the single
// mutation point per generation completion.
func (l *Ledger) Debit(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spent += amount
	l.slotsDone++
}

// Skip marks a slot as finished without spend, so dynamic allocation
// stops reserving budget for it.
func (l *Ledger) Skip() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slotsDone++
}

// Exhausted reports whether the global ceiling has been reached.
func (l *Ledger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent >= l.budget
}
