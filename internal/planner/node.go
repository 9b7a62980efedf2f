package planner

import "github.com/joeycumines/npc-planner/internal/worldstate"

// node lives in the planner's arena; parent and action are indexes, -1 for
// the start node.
type node struct {
	state     worldstate.State
	key       string
	action    int
	parent    int
	g, h, f   float64
	seq       uint64
	heapIndex int
}

// setCost is the only way g or h change, so f never goes stale.
func (n *node) setCost(g, h float64) {
	n.g = g
	n.h = h
	n.f = g + h
}

// openSet is a binary heap of arena indexes ordered by f, then insertion
// order.
type openSet struct {
	p     *Planner
	items []int
}

func (o *openSet) Len() int { return len(o.items) }

func (o *openSet) Less(i, j int) bool {
	a, b := &o.p.nodes[o.items[i]], &o.p.nodes[o.items[j]]
	if a.f != b.f {
		return a.f < b.f
	}
	return a.seq < b.seq
}

func (o *openSet) Swap(i, j int) {
	o.items[i], o.items[j] = o.items[j], o.items[i]
	o.p.nodes[o.items[i]].heapIndex = i
	o.p.nodes[o.items[j]].heapIndex = j
}

func (o *openSet) Push(x any) {
	idx := x.(int)
	o.p.nodes[idx].heapIndex = len(o.items)
	o.items = append(o.items, idx)
}

func (o *openSet) Pop() any {
	n := len(o.items)
	idx := o.items[n-1]
	o.items = o.items[:n-1]
	o.p.nodes[idx].heapIndex = -1
	return idx
}
