// Package consistenthash implements a weighted consistent-hash ring used
// by the client-side sharding scheme to pick a node for a key without any
// server coordination.
package consistenthash

import (
	"crypto/md5"
	"encoding/binary"
	"sort"
	"strconv"
)

// DefaultReplicas is the number of ring positions contributed per unit of
// weight, per the routing core's recommendation of 160 replicas per node.
const DefaultReplicas = 160

// Node is anything the ring can place on its circle. Node identity is
// used both as the ring's replica key and as the value returned by Get,
// so two distinct nodes must never compare equal.
type Node interface {
	// RingKey returns the stable string identity used to derive replica
	// positions, e.g. an alias or "host:port".
	RingKey() string
}

type entry struct {
	position uint32
	node     Node
}

// Ring is a sorted circular sequence of (position, node) pairs. The zero
// value is a usable empty ring. A Ring is not safe for concurrent use;
// callers serialize Add/Remove/Get the way they serialize router calls.
type Ring struct {
	entries []entry
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{}
}

// HashKey is the 32-bit hash used both for ring placement and for key
// lookups, so the ring and any key extractor built against it agree on
// where a byte string lands. It is an MD5-prefix hash: fast, and
// low-collision enough for ring placement even though it is not
// cryptographically meaningful here.
func HashKey(b []byte) uint32 {
	sum := md5.Sum(b)
	return binary.BigEndian.Uint32(sum[:4])
}

// Add inserts 160*weight replicas of node into the ring. weight must be
// >= 1; callers should default an unset weight to 1 before calling Add.
// The ring is re-sorted atomically: no call to Get observes a partially
// updated ring.
func (r *Ring) Add(node Node, weight int) {
	if weight < 1 {
		weight = 1
	}
	replicas := DefaultReplicas * weight

	next := make([]entry, len(r.entries), len(r.entries)+replicas)
	copy(next, r.entries)
	for i := 0; i < replicas; i++ {
		pos := HashKey([]byte(node.RingKey() + "|" + strconv.Itoa(i)))
		next = append(next, entry{position: pos, node: node})
	}
	sort.Slice(next, func(i, j int) bool { return next[i].position < next[j].position })
	r.entries = next
}

// Remove drops every ring entry whose node equals the given one. Node
// equality is determined by RingKey.
func (r *Ring) Remove(node Node) {
	key := node.RingKey()
	next := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.node.RingKey() != key {
			next = append(next, e)
		}
	}
	r.entries = next
}

// IsEmpty reports whether the ring has no entries.
func (r *Ring) IsEmpty() bool {
	return len(r.entries) == 0
}

// Get returns the node owning hash: the first ring entry whose position
// is >= hash, wrapping to the first entry if none qualifies. Get is
// deterministic for fixed ring contents.
func (r *Ring) Get(hash uint32) (Node, bool) {
	if len(r.entries) == 0 {
		return nil, false
	}
	idx := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].position >= hash
	})
	if idx == len(r.entries) {
		idx = 0
	}
	return r.entries[idx].node, true
}
