package contractor

import (
	"github.com/pandu-maps/pandu/pkg/util"
	"github.com/sirupsen/logrus"
)

// ComputeSCC runs Kosaraju over the current arcs and stores the
// strongly connected component of every node plus the condensation
// adjacency. Queries use it to reject unreachable pairs without
// touching the priority queues.
func (ch *ContractedGraph) ComputeSCC() {
	n := int32(len(ch.nodes))

	order := make([]int32, 0, n)
	visited := make([]bool, n)
	for v := int32(0); v < n; v++ {
		if !visited[v] {
			ch.dfs(v, &order, visited, false)
		}
	}
	order = util.ReverseG(order)

	visited = make([]bool, n)
	components := make([][]int32, 0)
	for _, v := range order {
		if !visited[v] {
			component := make([]int32, 0)
			ch.dfs(v, &component, visited, true)
			components = append(components, component)
		}
	}

	ch.scc = make([]int32, n)
	for i, component := range components {
		for _, v := range component {
			ch.scc[v] = int32(i)
		}
	}

	condAdj := make([][]int32, len(components))
	seen := make(map[int64]struct{})
	for v := int32(0); v < n; v++ {
		for _, outID := range ch.firstOut[v] {
			toNodeID := ch.outEdges[outID].ToNodeID
			fromSCC, toSCC := ch.scc[v], ch.scc[toNodeID]
			if fromSCC == toSCC {
				continue
			}
			pairKey := int64(fromSCC)<<32 | int64(uint32(toSCC))
			if _, dup := seen[pairKey]; dup {
				continue
			}
			seen[pairKey] = struct{}{}
			condAdj[fromSCC] = append(condAdj[fromSCC], toSCC)
		}
	}
	ch.sccCondensationAdj = condAdj

	logrus.Infof("graph has %d strongly connected components", len(components))
}

func (ch *ContractedGraph) dfs(v int32, output *[]int32, visited []bool, reversed bool) {
	visited[v] = true

	if !reversed {
		for _, outID := range ch.firstOut[v] {
			if toNodeID := ch.outEdges[outID].ToNodeID; !visited[toNodeID] {
				ch.dfs(toNodeID, output, visited, reversed)
			}
		}
	} else {
		for _, inID := range ch.firstIn[v] {
			if toNodeID := ch.inEdges[inID].ToNodeID; !visited[toNodeID] {
				ch.dfs(toNodeID, output, visited, reversed)
			}
		}
	}

	*output = append(*output, v)
}

func (ch *ContractedGraph) SCCOf(nodeID int32) int32 {
	if ch.scc == nil {
		return -1
	}
	return ch.scc[nodeID]
}

// sccReachable walks the condensation DAG. A false answer proves no
// directed path exists in the full graph either.
func (ch *ContractedGraph) sccReachable(from, to int32) bool {
	if ch.scc == nil {
		return true
	}
	fromSCC, toSCC := ch.scc[from], ch.scc[to]
	if fromSCC == toSCC {
		return true
	}

	visited := make(map[int32]struct{})
	stack := []int32{fromSCC}
	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if curr == toSCC {
			return true
		}
		if _, done := visited[curr]; done {
			continue
		}
		visited[curr] = struct{}{}
		stack = append(stack, ch.sccCondensationAdj[curr]...)
	}
	return false
}
