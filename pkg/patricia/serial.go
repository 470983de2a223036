package patricia

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// On-disk node layout, depth first, little-endian:
//
//	terminal   1 byte (0 or 1)
//	id         int32
//	childCount int32
//	childCount times:
//	  labelLen int32 (bytes)
//	  label    labelLen bytes
//	  subtree  (node layout)
const (
	maxLabelLen = 1 << 24
	maxNesting  = 1 << 16
)

var errIDOverflow = errors.New("patricia: node id does not fit in int32")

// Serialize writes the trie to w. A stale trie is renumbered first so the
// stored ids match the stored shape.
func (t *Trie) Serialize(w io.Writer) error {
	if !t.numbered {
		t.WriteEncodings()
	}
	bw := bufio.NewWriter(w)
	if err := writeNode(bw, t.root); err != nil {
		return err
	}
	return bw.Flush()
}

// MarshalBinary returns the serialized trie
func (t *Trie) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(w *bufio.Writer, n *Node) error {
	if n.id > math.MaxInt32 {
		return errIDOverflow
	}
	var hdr [9]byte
	if n.terminal {
		hdr[0] = 1
	}
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(int32(n.id)))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(n.children)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	for _, e := range n.children {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(e.label)))
		if _, err := w.Write(l[:]); err != nil {
			return err
		}
		if _, err := w.WriteString(e.label); err != nil {
			return err
		}
		if err := writeNode(w, e.node); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a trie written by Serialize. Input that ends early or
// stops making sense yields the part of the tree read so far; partial is
// then true. Only failures of r other than a premature end are returned as
// errors. Empty input is an empty trie.
func Deserialize(r io.Reader) (t *Trie, partial bool, err error) {
	d := &decoder{r: bufio.NewReader(r)}
	root, ok := d.node(0)
	if d.err != nil {
		return nil, true, d.err
	}
	if !ok {
		// nothing usable, not even a root header
		return New(), d.read > 0, nil
	}
	t = &Trie{root: root, numbered: true}
	t.size = count(root)
	return t, d.partial, nil
}

// UnmarshalTrie is Deserialize over a byte slice
func UnmarshalTrie(data []byte) (*Trie, bool, error) {
	return Deserialize(bytes.NewReader(data))
}

type decoder struct {
	r       *bufio.Reader
	read    int64
	partial bool
	err     error
}

// fill reads len(p) bytes. A short read marks the input partial; any other
// failure is kept in d.err.
func (d *decoder) fill(p []byte) bool {
	n, err := io.ReadFull(d.r, p)
	d.read += int64(n)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		d.partial = true
	} else {
		d.err = fmt.Errorf("read trie: %w", err)
	}
	return false
}

func (d *decoder) node(depth int) (*Node, bool) {
	if depth > maxNesting {
		d.partial = true
		return nil, false
	}
	var hdr [9]byte
	if !d.fill(hdr[:]) {
		return nil, false
	}
	n := &Node{
		terminal: hdr[0] != 0,
		id:       int64(int32(binary.LittleEndian.Uint32(hdr[1:5]))),
	}
	n.lo, n.hi = n.id, n.id

	childCount := int32(binary.LittleEndian.Uint32(hdr[5:9]))
	if hdr[0] > 1 || childCount < 0 {
		d.partial = true
		return n, true
	}

	for i := int32(0); i < childCount; i++ {
		var l [4]byte
		if !d.fill(l[:]) {
			break
		}
		labelLen := int32(binary.LittleEndian.Uint32(l[:]))
		if labelLen <= 0 || labelLen > maxLabelLen {
			d.partial = true
			break
		}
		label := make([]byte, labelLen)
		if !d.fill(label) {
			break
		}
		idx, dup := n.search(label[0])
		if dup {
			d.partial = true
			break
		}
		child, ok := d.node(depth + 1)
		if !ok {
			break
		}
		n.insert(idx, edge{label: string(label), node: child})
		if child.lo < n.lo {
			n.lo = child.lo
		}
		if child.hi > n.hi {
			n.hi = child.hi
		}
		if d.partial || d.err != nil {
			break
		}
	}
	return n, true
}
