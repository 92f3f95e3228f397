// Package ring maps cache keys onto servers with a consistent hash ring.
//
// Each server is placed on the ring several times (virtual nodes) so keys
// spread evenly, and adding a server only moves the keys that land on its
// new points.
package ring

import (
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultVirtualNodes is the number of ring points per server.
const DefaultVirtualNodes = 160

// Ring is safe for concurrent use.
type Ring struct {
	mu     sync.RWMutex
	vnodes int
	points []uint64
	owners map[uint64]string
	nodes  []string
}

// New returns an empty ring. vnodes <= 0 selects DefaultVirtualNodes.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = DefaultVirtualNodes
	}
	return &Ring{vnodes: vnodes, owners: make(map[uint64]string)}
}

// Add places node on the ring. It reports false when node is already present.
func (r *Ring) Add(node string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n == node {
			return false
		}
	}
	r.nodes = append(r.nodes, node)
	for i := 0; i < r.vnodes; i++ {
		h := xxhash.Sum64String(node + "-" + strconv.Itoa(i))
		if _, taken := r.owners[h]; taken {
			continue
		}
		r.owners[h] = node
		r.points = append(r.points, h)
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
	return true
}

// Get returns the node owning key, or "" when the ring is empty.
func (r *Ring) Get(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return ""
	}
	h := xxhash.Sum64String(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.owners[r.points[idx]]
}

// Nodes returns the nodes in insertion order.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len returns the number of nodes.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
