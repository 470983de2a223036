package patricia

// Merge returns a new trie holding the union of the keys of a and b. Edges
// that share a first byte are split at their common prefix and merged below
// it, so the result keeps the distinct-first-byte property of Add. Subtrees
// present on one side only are cloned; a and b are left untouched. The
// result is not numbered.
func Merge(a, b *Trie) *Trie {
	t := &Trie{root: mergeNodes(a.root, b.root)}
	t.size = count(t.root)
	return t
}

func mergeNodes(x, y *Node) *Node {
	out := &Node{terminal: x.terminal || y.terminal}
	out.children = make([]edge, 0, len(x.children)+len(y.children))

	i, j := 0, 0
	for i < len(x.children) || j < len(y.children) {
		switch {
		case j == len(y.children) || (i < len(x.children) && x.children[i].label[0] < y.children[j].label[0]):
			out.children = append(out.children, cloneEdge(x.children[i]))
			i++
		case i == len(x.children) || y.children[j].label[0] < x.children[i].label[0]:
			out.children = append(out.children, cloneEdge(y.children[j]))
			j++
		default:
			out.children = append(out.children, mergeEdges(x.children[i], y.children[j]))
			i++
			j++
		}
	}
	return out
}

// mergeEdges merges two edges starting with the same byte.
func mergeEdges(ex, ey edge) edge {
	common := commonPrefix(ex.label, ey.label)
	return edge{
		label: ex.label[:common],
		node:  mergeNodes(below(ex, common), below(ey, common)),
	}
}

// below returns the node reached after consuming n bytes of e's label. When
// the label is longer than n a detached node holding the remainder is built.
func below(e edge, n int) *Node {
	if n == len(e.label) {
		return e.node
	}
	return &Node{children: []edge{{label: e.label[n:], node: e.node}}}
}

func cloneEdge(e edge) edge {
	return edge{label: e.label, node: clone(e.node)}
}

func clone(n *Node) *Node {
	c := &Node{terminal: n.terminal, id: n.id, lo: n.lo, hi: n.hi}
	if len(n.children) > 0 {
		c.children = make([]edge, len(n.children))
		for i, e := range n.children {
			c.children[i] = cloneEdge(e)
		}
	}
	return c
}

func count(n *Node) int {
	total := 0
	if n.terminal {
		total++
	}
	for _, e := range n.children {
		total += count(e.node)
	}
	return total
}
