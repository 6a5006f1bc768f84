package extractor

import (
	"fmt"
	"slices"
)

// SizeLedger is a multiset of attachment sizes promised by message metadata.
// Every saved attachment that qualifies must settle one entry of the same
// size, and no entry may be left once the message is processed.
type SizeLedger struct {
	pending map[int64]int
	n       int
}

// NewSizeLedger returns a ledger expecting the given sizes.
func NewSizeLedger(sizes ...int64) *SizeLedger {
	l := &SizeLedger{pending: make(map[int64]int, len(sizes))}
	for _, size := range sizes {
		l.Expect(size)
	}
	return l
}

// Expect records one attachment of the given size.
func (l *SizeLedger) Expect(size int64) {
	l.pending[size]++
	l.n++
}

// Settle removes one entry of the given size. It fails with ErrInconsistent
// when no such entry is pending.
func (l *SizeLedger) Settle(size int64) error {
	if l.pending[size] == 0 {
		return fmt.Errorf("%w: saved %d bytes, expected one of %v", ErrInconsistent, size, l.Remaining())
	}
	l.pending[size]--
	if l.pending[size] == 0 {
		delete(l.pending, size)
	}
	l.n--
	return nil
}

// Remaining returns the unsettled sizes in ascending order.
func (l *SizeLedger) Remaining() []int64 {
	out := make([]int64, 0, l.n)
	for size, count := range l.pending {
		for range count {
			out = append(out, size)
		}
	}
	slices.Sort(out)
	return out
}

// Verify fails with ErrInconsistent when entries are still pending.
func (l *SizeLedger) Verify() error {
	if l.n != 0 {
		return fmt.Errorf("%w: no saved attachment for sizes %v", ErrInconsistent, l.Remaining())
	}
	return nil
}
