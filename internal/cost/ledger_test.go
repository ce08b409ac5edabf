package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerFixedAllocation(t *testing.T) {
	t.Parallel()

	l := NewLedger(10, BudgetHard, AllocationFixed, 4)
	assert.InDelta(t, 2.5, l.Allocation(), 0.0001)

	// Fixed allocation never moves, regardless of spend.
	l.Debit(5)
	assert.InDelta(t, 2.5, l.Allocation(), 0.0001)
}

func TestLedgerDynamicAllocation(t *testing.T) {
	t.Parallel()

	l := NewLedger(10, BudgetHard, AllocationDynamic, 4)
	assert.InDelta(t, 2.5, l.Allocation(), 0.0001)

	// A cheap slot releases budget to the remaining three.
	l.Debit(1)
	assert.InDelta(t, 3.0, l.Allocation(), 0.0001)

	// A skip releases its whole share.
	l.Skip()
	assert.InDelta(t, 4.5, l.Allocation(), 0.0001)

	// The last slot sees everything that is left.
	l.Debit(4)
	assert.InDelta(t, 5.0, l.Allocation(), 0.0001)
}

func TestLedgerDynamicAllocationFloorsAtOnePendingSlot(t *testing.T) {
	t.Parallel()

	l := NewLedger(6, BudgetHard, AllocationDynamic, 2)
	l.Debit(1)
	l.Debit(1)
	// All slots done: allocation degrades to the remaining budget.
	assert.InDelta(t, 4.0, l.Allocation(), 0.0001)
}

func TestLedgerSpentRemainingExhausted(t *testing.T) {
	t.Parallel()

	l := NewLedger(1.0, BudgetSuggested, AllocationFixed, 2)
	assert.False(t, l.Exhausted())

	l.Debit(0.4)
	assert.InDelta(t, 0.4, l.Spent(), 0.0001)
	assert.InDelta(t, 0.6, l.Remaining(), 0.0001)

	l.Debit(0.8)
	assert.True(t, l.Exhausted())
	assert.Zero(t, l.Remaining(), "remaining floors at zero after overrun")
	assert.InDelta(t, 1.2, l.Spent(), 0.0001)
}

func TestLedgerConcurrentDebits(t *testing.T) {
	t.Parallel()

	const slots = 100
	l := NewLedger(100, BudgetHard, AllocationDynamic, slots)

	var wg sync.WaitGroup
	for i := 0; i < slots; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Debit(0.5)
		}()
	}
	wg.Wait()

	assert.InDelta(t, 50, l.Spent(), 0.0001)
	assert.InDelta(t, 50, l.Remaining(), 0.0001)
}

func TestLedgerMinimumOneSlot(t *testing.T) {
	t.Parallel()

	l := NewLedger(5, BudgetHard, AllocationFixed, 0)
	assert.InDelta(t, 5, l.Allocation(), 0.0001)
}

func TestBudgetExceededErrorMessage(t *testing.T) {
	t.Parallel()

	err := &BudgetExceededError{Daypart: "morning-drive-monday", Estimated: 0.75, Allocation: 0.5}
	assert.Contains(t, err.Error(), "morning-drive-monday")
	assert.Contains(t, err.Error(), "0.7500")
}
