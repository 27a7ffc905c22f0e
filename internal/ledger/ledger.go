// Package ledger provides the monotonic id allocation discipline shared by
// the granted-item list and the passive-effect store: ids grow forever,
// deletions never free them, and a lost counter is recovered from the
// highest id still present so new ids cannot collide with historical ones.
package ledger

// Allocator hands out monotonically increasing integer ids.
type Allocator struct {
	next int
}

// New restores an allocator from a persisted counter.
func New(next int) Allocator {
	return Allocator{next: next}
}

// Recover rebuilds a missing counter from the numeric ids still stored:
// one past the highest existing id, or zero when none remain.
func Recover(existing []int) Allocator {
	max := -1
	for _, id := range existing {
		if id > max {
			max = id
		}
	}
	return Allocator{next: max + 1}
}

// Alloc returns the next id and advances the counter.
func (a *Allocator) Alloc() int {
	id := a.next
	a.next++
	return id
}

// Next peeks at the counter value to persist.
func (a *Allocator) Next() int {
	return a.next
}
