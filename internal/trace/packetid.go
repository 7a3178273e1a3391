package trace

import "math/rand"

// randomPacketId picks a fresh 16-bit correlation id for a new probe.
// startNextHop draws again whenever the id is already held by another
// Pending hop of the same trace, since a reply is matched to the first
// Pending hop carrying its id.
func randomPacketId() uint16 {
	return uint16(rand.Intn(1 << 16))
}
