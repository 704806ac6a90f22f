package resourcemanager

import (
	"testing"

	"pgregory.net/rapid"
)

// TestUpdateEpochsAreStrictlyIncreasingAndEventuallyReclaimable checks
// spec property 1: for any sequence of Update calls, retire epochs
// are strictly increasing and, once no reader announces an epoch at
// or below one, CanReclaim for it is (and stays) true.
func TestUpdateEpochsAreStrictlyIncreasingAndEventuallyReclaimable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		init := 0
		m := New(&init)

		n := rapid.IntRange(1, 50).Draw(rt, "n")
		var lastEpoch uint64
		for i := 0; i < n; i++ {
			v := i
			_, e := m.Update(&v)
			if i > 0 && e <= lastEpoch {
				rt.Fatalf("epoch did not strictly increase: %d after %d", e, lastEpoch)
			}
			lastEpoch = e
			if !m.CanReclaim(e) {
				rt.Fatalf("epoch %d should be immediately reclaimable with no live readers", e)
			}
		}
		if !m.CanReclaim(lastEpoch) {
			rt.Fatal("reclaim should remain true once established with no further readers")
		}
	})
}
