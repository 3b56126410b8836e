// Package ac implements an Aho-Corasick automaton over byte strings.
package ac

// Node is an automaton state. Nodes live in a flat slice and refer to each
// other by index, which keeps the automaton free of pointer cycles.
type node struct {
	next map[byte]int32
	fail int32
	// Out lists the patterns ending at this state, including those reached
	// through the failure chain.
	out []int32
}

// Automaton is a compiled multi-pattern matcher.
//
// An Automaton is immutable after [Build] and safe for concurrent use.
type Automaton struct {
	nodes []node
	lens  []int
}

// Build compiles the patterns. A pattern's index in the slice is its ID.
//
// Empty patterns never match.
func Build(patterns [][]byte) *Automaton {
	a := &Automaton{
		nodes: []node{{next: make(map[byte]int32)}},
		lens:  make([]int, len(patterns)),
	}
	for id, p := range patterns {
		a.lens[id] = len(p)
		if len(p) == 0 {
			continue
		}
		cur := int32(0)
		for _, b := range p {
			nxt, ok := a.nodes[cur].next[b]
			if !ok {
				nxt = int32(len(a.nodes))
				a.nodes = append(a.nodes, node{next: make(map[byte]int32)})
				a.nodes[cur].next[b] = nxt
			}
			cur = nxt
		}
		a.nodes[cur].out = append(a.nodes[cur].out, int32(id))
	}

	// BFS for failure links.
	queue := make([]int32, 0, len(a.nodes))
	for _, n := range a.nodes[0].next {
		a.nodes[n].fail = 0
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for b, nxt := range a.nodes[n].next {
			f := a.nodes[n].fail
			for {
				if t, ok := a.nodes[f].next[b]; ok && t != nxt {
					a.nodes[nxt].fail = t
					break
				}
				if f == 0 {
					a.nodes[nxt].fail = 0
					break
				}
				f = a.nodes[f].fail
			}
			if fo := a.nodes[a.nodes[nxt].fail].out; len(fo) > 0 {
				a.nodes[nxt].out = append(a.nodes[nxt].out, fo...)
			}
			queue = append(queue, nxt)
		}
	}
	return a
}

// Patterns reports the number of patterns the Automaton was built with.
func (a *Automaton) Patterns() int {
	if a == nil {
		return 0
	}
	return len(a.lens)
}

// Scan runs the automaton over data, calling fn for every occurrence of every
// pattern with the pattern ID and the offset the occurrence starts at.
// Occurrences are reported in order of their end offset.
//
// If fn returns false, Scan stops early.
func (a *Automaton) Scan(data []byte, fn func(id, start int) bool) {
	if a == nil || len(a.nodes) == 0 {
		return
	}
	cur := int32(0)
	for i, b := range data {
		for {
			if nxt, ok := a.nodes[cur].next[b]; ok {
				cur = nxt
				break
			}
			if cur == 0 {
				break
			}
			cur = a.nodes[cur].fail
		}
		for _, id := range a.nodes[cur].out {
			if !fn(int(id), i-a.lens[id]+1) {
				return
			}
		}
	}
}
