// Package interner implements the sequence-state (prefix identity) tree
// described by spec.md §4.2, using the arena design from §9 Design Notes
// instead of reference-counted nodes: every node lives in a flat slice and
// is identified by its index, so equality is a plain integer comparison.
package interner

// EOS is the sentinel token passed to Child to mark sentence-end. It must
// not alias any valid token id; child(node, EOS) absorbs and returns node
// unchanged.
const EOS int32 = -1

// StateID identifies a node in the interner's tree. The zero value is the
// root of a freshly constructed Interner. Two StateIDs from the same
// Interner are equal iff they denote the same prefix + trailing-state
// equivalence class.
type StateID int32

type node struct {
	parent   StateID
	token    int32
	children map[int32]StateID
}

// Interner is scoped to a single decode call: construct one with New,
// intern children as the beam search proposes them, and let it go out of
// scope (or call Reset to reuse the backing array) once decoding finishes.
type Interner struct {
	nodes []node
}

// New returns an Interner containing only the root state.
func New() *Interner {
	it := &Interner{}
	it.Reset()
	return it
}

// Reset discards all interned state and re-creates a fresh root, retaining
// the backing array's capacity across decode calls.
func (it *Interner) Reset() {
	it.nodes = it.nodes[:0]
	it.nodes = append(it.nodes, node{parent: -1, token: -1})
}

// Root returns the unique root sequence state for this decode call.
func (it *Interner) Root() StateID { return 0 }

// Child returns the interned child of node for the given token, allocating
// it on first use. Repeated calls with the same (node, token) pair return
// the same StateID. Passing the EOS sentinel returns parent unchanged.
func (it *Interner) Child(parent StateID, token int32) StateID {
	if token == EOS {
		return parent
	}

	n := &it.nodes[parent]
	if n.children == nil {
		n.children = make(map[int32]StateID, 1)
	}
	if child, ok := n.children[token]; ok {
		return child
	}

	child := StateID(len(it.nodes))
	it.nodes = append(it.nodes, node{parent: parent, token: token})
	// Re-fetch: the append above may have reallocated the backing array,
	// invalidating n.
	it.nodes[parent].children[token] = child

	return child
}

// Len returns the number of interned states, including the root.
func (it *Interner) Len() int { return len(it.nodes) }
