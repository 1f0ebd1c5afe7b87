// Package buffer implements Appendable, the growable owned byte buffer that
// every wire field (subject, sid, reply-to, header block, payload) is built
// from. A single Appendable is meant to be allocated once and reused across
// many messages via Reset, so the hot receive path never allocates per frame.
package buffer

import (
	"math"

	"github.com/nats-lite/gonats-core/internal/corerr"
)

// DefaultRound is the growth granularity used when a caller does not pick one.
const DefaultRound = 256

// Appendable is an owned, resizable byte buffer with a capacity/length split:
// capacity is the allocated length, length is the active prefix in [0, capacity].
type Appendable struct {
	data   []byte
	length int
	round  int
}

// New returns an unallocated Appendable that grows in multiples of round.
// A round <= 0 falls back to DefaultRound.
func New(round int) *Appendable {
	if round <= 0 {
		round = DefaultRound
	}
	return &Appendable{round: round}
}

func roundUp(n, round int) int {
	if round <= 0 {
		round = DefaultRound
	}
	if n <= 0 {
		return round
	}
	return ((n + round - 1) / round) * round
}

// Init allocates round_up(capacity, round) bytes and resets length to 0.
func (a *Appendable) Init(capacity int) error {
	if capacity < 0 || capacity > math.MaxInt32 {
		return corerr.ErrAllocFailed
	}
	size := roundUp(capacity, a.round)
	a.data = make([]byte, size)
	a.length = 0
	return nil
}

// Append copies b onto the active tail, growing the buffer first if needed.
// It is a no-op on empty input and fails with ErrNotAllocated if Init was
// never called.
func (a *Appendable) Append(b []byte) error {
	if a.data == nil {
		return corerr.ErrNotAllocated
	}
	if len(b) == 0 {
		return nil
	}
	needed := a.length + len(b)
	if needed > cap(a.data) {
		grown := cap(a.data) * 2
		rounded := roundUp(needed, a.round)
		if rounded > grown {
			grown = rounded
		}
		if grown < 0 || grown > math.MaxInt32 {
			return corerr.ErrAllocFailed
		}
		next := make([]byte, grown)
		copy(next, a.data[:a.length])
		a.data = next
	}
	copy(a.data[a.length:needed], b)
	a.length = needed
	return nil
}

// Shrink decreases the active length by k, failing if k exceeds it.
func (a *Appendable) Shrink(k int) error {
	if k < 0 || k > a.length {
		return corerr.ErrUnderflow
	}
	a.length -= k
	return nil
}

// Reset sets length to 0 without releasing the underlying memory.
func (a *Appendable) Reset() error {
	if a.data == nil {
		return corerr.ErrNotAllocated
	}
	a.length = 0
	return nil
}

// Copy is equivalent to Reset followed by Append, allocating first if needed.
func (a *Appendable) Copy(b []byte) error {
	if a.data == nil {
		if err := a.Init(len(b)); err != nil {
			return err
		}
		return a.Append(b)
	}
	if err := a.Reset(); err != nil {
		return err
	}
	return a.Append(b)
}

// Body returns the active slice, or (nil, false) when length is 0. The slice
// aliases internal storage and is only valid until the next mutating call.
func (a *Appendable) Body() ([]byte, bool) {
	if a.length == 0 {
		return nil, false
	}
	return a.data[:a.length], true
}

// Free releases the underlying memory. It is safe to call more than once.
func (a *Appendable) Free() {
	a.data = nil
	a.length = 0
}

// Len returns the active length.
func (a *Appendable) Len() int {
	return a.length
}

// Cap returns the allocated capacity, or 0 when Init has not been called.
func (a *Appendable) Cap() int {
	return cap(a.data)
}
