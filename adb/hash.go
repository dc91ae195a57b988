package adb

import (
	"net"
	"strings"

	"github.com/OneOfOne/xxhash"
)

// hashName computes the Name bucket index, hash(name) mod B (spec.md
// §4.1). xxhash.ChecksumString64 is the donor's own choice for content
// hashing (cmn depends on OneOfOne/xxhash for exactly this purpose) and
// satisfies §4.1's "stable and balanced for typical name distributions"
// requirement: xxhash's avalanche behavior keeps bucket lengths close to
// uniform even for the highly structured suffix distribution of domain
// names (most entropy in the leftmost label).
func hashName(name string, numBuckets int) int {
	// Domain names are conventionally case-insensitive; fold before
	// hashing so "Host.Example." and "host.example." land in the same
	// bucket and compare equal.
	folded := strings.ToLower(name)
	h := xxhash.ChecksumString64(folded)
	return int(h % uint64(numBuckets))
}

// hashAddr computes the Endpoint bucket index, hash(sockaddr) mod B.
func hashAddr(addr net.IP, numBuckets int) int {
	h := xxhash.Checksum64(addr)
	return int(h % uint64(numBuckets))
}
