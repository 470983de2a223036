package patricia

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrie(keys ...string) *Trie {
	t := New()
	for _, k := range keys {
		t.Add(k)
	}
	return t
}

func TestTrie_BobBobbyAlice(t *testing.T) {
	trie := newTrie("Bob", "Bobby", "Alice")

	assert.ElementsMatch(t, []string{"Bob", "Bobby"}, trie.Retrieve("Bob"))
	assert.Equal(t, []string{"Alice"}, trie.Retrieve("A"))
	assert.ElementsMatch(t, []string{"Alice", "Bob", "Bobby"}, trie.Retrieve(""))
	assert.Equal(t, 3, trie.Len())
}

func TestTrie_AddReportsNewKeys(t *testing.T) {
	trie := New()
	assert.True(t, trie.Add("key"))
	assert.False(t, trie.Add("key"))
	assert.True(t, trie.Add("ke"))
	assert.True(t, trie.Add(""))
	assert.False(t, trie.Add(""))
	assert.Equal(t, 3, trie.Len())
	assert.True(t, trie.Contains(""))
}

func TestTrie_SplitsPartialEdges(t *testing.T) {
	trie := newTrie("Hello", "Help")

	assert.True(t, trie.Contains("Hello"))
	assert.True(t, trie.Contains("Help"))
	assert.False(t, trie.Contains("Hel"))
	assert.False(t, trie.Contains("Hell"))

	// "Hel" became a shared, non-terminal edge
	root := trie.Root()
	require.Len(t, root.children, 1)
	assert.Equal(t, "Hel", root.children[0].label)
	assert.False(t, root.children[0].node.Terminal())
	require.Len(t, root.children[0].node.children, 2)
	assert.Equal(t, "lo", root.children[0].node.children[0].label)
	assert.Equal(t, "p", root.children[0].node.children[1].label)
}

func TestTrie_InsertingPrefixOfExistingKey(t *testing.T) {
	trie := newTrie("Hello")
	trie.Add("He")

	assert.True(t, trie.Contains("He"))
	assert.True(t, trie.Contains("Hello"))
	assert.Equal(t, []string{"He", "Hello"}, trie.Keys())
}

func TestTrie_RetrieveInsideEdge(t *testing.T) {
	trie := newTrie("Bobby", "Bobcat", "Alice")

	assert.ElementsMatch(t, []string{"Bobby", "Bobcat"}, trie.Retrieve("Bo"))
	assert.Equal(t, []string{"Bobby"}, trie.Retrieve("Bobb"))
	assert.Equal(t, []string{"Bobcat"}, trie.Retrieve("Bobcat"))
	assert.Empty(t, trie.Retrieve("Bobcats"))
	assert.Empty(t, trie.Retrieve("Bx"))
	assert.Empty(t, trie.Retrieve("Z"))
}

func TestTrie_RetrieveOrderIsLexicographic(t *testing.T) {
	keys := []string{"delta", "alpha", "al", "charlie", "bravo", "alphabet", "b"}
	trie := newTrie(keys...)

	want := append([]string(nil), keys...)
	sort.Strings(want)
	assert.Equal(t, want, trie.Keys())
}

func TestTrie_PrefixLaw(t *testing.T) {
	keys := []string{"romane", "romanus", "romulus", "rubens", "ruber", "rubicon", "rubicundus", "r", "日本", "日本語"}
	trie := newTrie(keys...)

	for _, k := range keys {
		for i := 0; i <= len(k); i++ {
			p := k[:i]
			assert.Contains(t, trie.Retrieve(p), k, "prefix %q", p)
		}
	}

	all := trie.Retrieve("")
	assert.Len(t, all, len(keys))
	assert.ElementsMatch(t, keys, all)
}

func TestTrie_EncodeDecodeLaw(t *testing.T) {
	keys := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		keys = append(keys, fmt.Sprintf("user-%03d", i%150))
	}
	keys = append(keys, "", "u", "user-")
	trie := newTrie(keys...)
	trie.WriteEncodings()

	seen := make(map[int64]string)
	for _, k := range keys {
		id := trie.Encode(k)
		require.NotEqual(t, NotFound, id, "key %q", k)

		got, ok := trie.Decode(id)
		require.True(t, ok, "id %d", id)
		assert.Equal(t, k, got)

		if prev, dup := seen[id]; dup {
			assert.Equal(t, prev, k)
		}
		seen[id] = k
	}
}

func TestTrie_EncodeMissing(t *testing.T) {
	trie := newTrie("Bob", "Bobby")
	trie.WriteEncodings()

	assert.Equal(t, NotFound, trie.Encode("Bo"))
	assert.Equal(t, NotFound, trie.Encode("Alice"))
}

func TestTrie_DecodeMissing(t *testing.T) {
	trie := newTrie("Hello", "Help")
	trie.WriteEncodings()

	// root is not terminal
	_, ok := trie.Decode(0)
	assert.False(t, ok)

	_, ok = trie.Decode(-1)
	assert.False(t, ok)

	_, ok = trie.Decode(1000)
	assert.False(t, ok)
}

func TestTrie_IdsArePreOrder(t *testing.T) {
	trie := newTrie("Bob", "Bobby", "Alice")
	trie.WriteEncodings()

	// root=0, Alice=1, Bob=2, by=3
	assert.Equal(t, int64(1), trie.Encode("Alice"))
	assert.Equal(t, int64(2), trie.Encode("Bob"))
	assert.Equal(t, int64(3), trie.Encode("Bobby"))
}

func TestTrie_InsertionRenumbers(t *testing.T) {
	trie := newTrie("Bob", "Carol")
	trie.WriteEncodings()
	carol := trie.Encode("Carol")

	trie.Add("Alice")
	assert.False(t, trie.Numbered())

	// Encode renumbers the stale trie; Carol moved
	assert.NotEqual(t, carol, trie.Encode("Carol"))
	assert.True(t, trie.Numbered())
}

func TestTrie_Walk(t *testing.T) {
	trie := newTrie("a", "ab", "b")

	var got []string
	trie.Walk(func(key string, n *Node) bool {
		got = append(got, key)
		return len(got) < 2
	})
	assert.Equal(t, []string{"a", "ab"}, got)
}

func TestTrie_PrettyString(t *testing.T) {
	trie := newTrie("Bob", "Bobby")
	trie.WriteEncodings()

	out := trie.PrettyString()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "(root)#0", lines[0])
	assert.Equal(t, `  "Bob"#1 *`, lines[1])
	assert.Equal(t, `    "by"#2 *`, lines[2])
}
