// Package patricia implements a compressed (radix) trie over string keys.
//
// Edges carry non-empty byte strings. Insertion splits an edge when a new key
// shares only part of its label, so the children of any node start with
// distinct bytes and are kept sorted. Pre-order traversal therefore visits
// keys in byte-wise lexicographic order, a key before its extensions.
//
// Every node carries an integer id used to reference interned strings from
// record files. Ids are dense pre-order numbers starting at 0 for the root and
// are only meaningful after WriteEncodings has run. Any insertion that changes
// the trie's shape can renumber existing nodes, so an id must not be kept
// across such an insertion.
package patricia

import (
	"fmt"
	"sort"
	"strings"
)

// NotFound is returned by Encode for keys that are not in the trie
const NotFound int64 = -1

type edge struct {
	label string
	node  *Node
}

// Node is one vertex of the trie
type Node struct {
	children []edge
	terminal bool
	id       int64
	lo, hi   int64 // smallest and largest id in this subtree
}

// ID returns the node's id from the last numbering
func (n *Node) ID() int64 {
	return n.id
}

// Terminal reports whether a key ends at this node
func (n *Node) Terminal() bool {
	return n.terminal
}

// search returns the index of the child edge starting with b, or the index
// where such an edge would be inserted.
func (n *Node) search(b byte) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return n.children[i].label[0] >= b
	})
	return i, i < len(n.children) && n.children[i].label[0] == b
}

func (n *Node) insert(i int, e edge) {
	n.children = append(n.children, edge{})
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = e
}

// Trie is an in-memory Patricia trie
type Trie struct {
	root     *Node
	size     int
	numbered bool
}

// New returns an empty trie
func New() *Trie {
	return &Trie{root: &Node{}}
}

// Len returns the number of keys
func (t *Trie) Len() int {
	return t.size
}

// Numbered reports whether ids reflect the current shape
func (t *Trie) Numbered() bool {
	return t.numbered
}

// Root returns the root node
func (t *Trie) Root() *Node {
	return t.root
}

// Add inserts key and reports whether it was new. The empty key marks the root.
func (t *Trie) Add(key string) bool {
	n := t.root
	rest := key
	for {
		if rest == "" {
			if n.terminal {
				return false
			}
			n.terminal = true
			t.size++
			t.numbered = false
			return true
		}

		i, found := n.search(rest[0])
		if !found {
			n.insert(i, edge{label: rest, node: &Node{terminal: true}})
			t.size++
			t.numbered = false
			return true
		}

		e := &n.children[i]
		common := commonPrefix(e.label, rest)
		if common < len(e.label) {
			// split the edge at the shared prefix
			mid := &Node{children: []edge{{label: e.label[common:], node: e.node}}}
			e.label = e.label[:common]
			e.node = mid
			t.numbered = false
		}
		n = e.node
		rest = rest[common:]
	}
}

// Find returns the node where key ends, or nil when key is not stored.
func (t *Trie) Find(key string) *Node {
	n := t.root
	rest := key
	for rest != "" {
		i, found := n.search(rest[0])
		if !found {
			return nil
		}
		e := n.children[i]
		if !strings.HasPrefix(rest, e.label) {
			return nil
		}
		n = e.node
		rest = rest[len(e.label):]
	}
	if !n.terminal {
		return nil
	}
	return n
}

// Contains reports whether key is stored
func (t *Trie) Contains(key string) bool {
	return t.Find(key) != nil
}

// Retrieve returns every key starting with prefix, in pre-order. An empty
// prefix returns all keys. The match may end inside an edge label.
func (t *Trie) Retrieve(prefix string) []string {
	n := t.root
	var acc strings.Builder
	rest := prefix
	for rest != "" {
		i, found := n.search(rest[0])
		if !found {
			return nil
		}
		e := n.children[i]
		if len(e.label) >= len(rest) {
			if !strings.HasPrefix(e.label, rest) {
				return nil
			}
			acc.WriteString(e.label)
			n = e.node
			break
		}
		if !strings.HasPrefix(rest, e.label) {
			return nil
		}
		acc.WriteString(e.label)
		n = e.node
		rest = rest[len(e.label):]
	}

	var keys []string
	walk(n, acc.String(), func(key string, _ *Node) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Keys returns all keys in pre-order
func (t *Trie) Keys() []string {
	return t.Retrieve("")
}

// Walk calls fn for every key in pre-order until fn returns false.
func (t *Trie) Walk(fn func(key string, n *Node) bool) {
	walk(t.root, "", fn)
}

func walk(n *Node, key string, fn func(string, *Node) bool) bool {
	if n.terminal && !fn(key, n) {
		return false
	}
	for _, e := range n.children {
		if !walk(e.node, key+e.label, fn) {
			return false
		}
	}
	return true
}

// WriteEncodings renumbers every node in pre-order, root first at 0.
func (t *Trie) WriteEncodings() {
	var next int64
	number(t.root, &next)
	t.numbered = true
}

func number(n *Node, next *int64) {
	n.id = *next
	n.lo = n.id
	*next++
	for _, e := range n.children {
		number(e.node, next)
	}
	n.hi = *next - 1
}

// Encode returns the id of key, or NotFound. The trie is renumbered first if
// keys were added since the last WriteEncodings.
func (t *Trie) Encode(key string) int64 {
	if !t.numbered {
		t.WriteEncodings()
	}
	n := t.Find(key)
	if n == nil {
		return NotFound
	}
	return n.id
}

// Decode returns the key whose end node carries id. It reports false when no
// terminal node has that id. Like Encode it renumbers a stale trie first.
func (t *Trie) Decode(id int64) (string, bool) {
	if id < 0 {
		return "", false
	}
	if !t.numbered {
		t.WriteEncodings()
	}
	var b strings.Builder
	if !descend(t.root, id, &b) {
		return "", false
	}
	return b.String(), true
}

// descend follows the subtrees whose id range covers id, appending labels.
func descend(n *Node, id int64, b *strings.Builder) bool {
	if id < n.lo || id > n.hi {
		return false
	}
	if n.id == id {
		return n.terminal
	}
	mark := b.Len()
	for _, e := range n.children {
		if id < e.node.lo || id > e.node.hi {
			continue
		}
		b.WriteString(e.label)
		if descend(e.node, id, b) {
			return true
		}
		rewind(b, mark)
	}
	return false
}

func rewind(b *strings.Builder, n int) {
	s := b.String()[:n]
	b.Reset()
	b.WriteString(s)
}

// PrettyString renders the trie as an indented tree. Terminal nodes are
// marked with '*', ids follow '#'.
func (t *Trie) PrettyString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(root)#%d", t.root.id)
	if t.root.terminal {
		b.WriteString(" *")
	}
	b.WriteByte('\n')
	pretty(&b, t.root, 1)
	return b.String()
}

func pretty(b *strings.Builder, n *Node, depth int) {
	for _, e := range n.children {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(b, "%q#%d", e.label, e.node.id)
		if e.node.terminal {
			b.WriteString(" *")
		}
		b.WriteByte('\n')
		pretty(b, e.node, depth+1)
	}
}

func commonPrefix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
