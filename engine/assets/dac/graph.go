package dac

import (
	"container/heap"
	"strings"

	"github.com/spaghettifunk/dawn/engine/core"
)

// Node is the part of an asset the dependency graph cares about.
type Node struct {
	ID           core.AssetID
	Dependencies []core.AssetID
}

// TopoOrder validates the graph and returns node indices ordered so that every
// asset comes after all of its dependencies. Among assets that are ready at the
// same time the one declared first wins, which makes the order deterministic.
// Duplicate ids, dangling dependencies and cycles fail with ErrBuildGraph.
func TopoOrder(nodes []Node) ([]int, error) {
	index := make(map[core.AssetID]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return nil, core.Errorf(core.ErrBuildGraph, n.ID, "duplicate asset id")
		}
		index[n.ID] = i
	}

	pending := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		seen := make(map[core.AssetID]struct{}, len(n.Dependencies))
		for _, d := range n.Dependencies {
			j, ok := index[d]
			if !ok {
				return nil, core.Errorf(core.ErrBuildGraph, n.ID, "dangling dependency %q", d)
			}
			if j == i {
				return nil, core.Errorf(core.ErrBuildGraph, n.ID, "asset depends on itself")
			}
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := &intHeap{}
	for i := range nodes {
		if pending[i] == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]int, 0, len(nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, d := range dependents[i] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	if len(order) != len(nodes) {
		cycle := findCycle(nodes, index, pending)
		return nil, core.Errorf(core.ErrBuildGraph, cycle[0], "dependency cycle %s", formatCycle(cycle))
	}
	return order, nil
}

// ValidateGraph is TopoOrder without the order.
func ValidateGraph(nodes []Node) error {
	_, err := TopoOrder(nodes)
	return err
}

// findCycle walks unresolved nodes until it revisits one.
func findCycle(nodes []Node, index map[core.AssetID]int, pending []int) []core.AssetID {
	start := -1
	for i := range nodes {
		if pending[i] > 0 {
			start = i
			break
		}
	}
	pos := make(map[int]int)
	var path []core.AssetID
	for cur := start; ; {
		if p, ok := pos[cur]; ok {
			return append(path[p:], nodes[cur].ID)
		}
		pos[cur] = len(path)
		path = append(path, nodes[cur].ID)
		next := -1
		for _, d := range nodes[cur].Dependencies {
			if j := index[d]; pending[j] > 0 {
				next = j
				break
			}
		}
		if next < 0 {
			return path
		}
		cur = next
	}
}

func formatCycle(ids []core.AssetID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
