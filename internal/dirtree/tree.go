package dirtree

import (
	"fmt"

	"github.com/warlomak/compoundfiles/internal/diag"
)

// Root is always DirID 0: spec.md §3 pins exactly one root-storage entry
// there.
const Root DirID = 0

// Tree is the in-memory directory: a flat array of entries addressed by
// DirID, with per-storage red-black trees threaded through each entry's
// Left/Right/Child fields, per spec.md §4.5 and §9's "vector of entries
// indexed by DirId" re-architecting note.
type Tree struct {
	entries []Entry
	free    []DirID
	sink    diag.Sink
}

// New creates a fresh Tree containing only a root-storage entry, for the
// Container Façade's create sequence.
func New(sink diag.Sink) *Tree {
	if sink == nil {
		sink = diag.NopSink{}
	}
	root := Entry{
		Name:   "Root Entry",
		Type:   TypeRoot,
		Color:  Black,
		Left:   NoStream,
		Right:  NoStream,
		Child:  NoStream,
		Parent: NoStream,
	}
	return &Tree{entries: []Entry{root}, sink: sink}
}

// Load wraps an already-decoded entry array (in DirID order, entry 0 is the
// root) as a Tree, reconstructing parent pointers and repainting any
// storage subtree whose on-disk coloring is inconsistent but whose BST
// order is sound, per the conservative repaint policy in spec.md §9.
func Load(entries []Entry, sink diag.Sink) (*Tree, error) {
	if sink == nil {
		sink = diag.NopSink{}
	}
	if len(entries) == 0 || entries[0].Type != TypeRoot {
		return nil, fmt.Errorf("dirtree: %w: entry 0 is not root-storage", ErrBadOrder)
	}
	t := &Tree{entries: entries, sink: sink}

	var free []DirID
	for i, e := range t.entries {
		if e.Type == TypeEmpty {
			free = append(free, DirID(i))
		}
	}
	t.free = free

	var walk func(storage DirID) error
	walk = func(storage DirID) error {
		if err := t.rebuildParents(storage); err != nil {
			return err
		}
		if err := t.repair(storage); err != nil {
			return err
		}
		for _, id := range t.Children(storage) {
			if t.entries[id].IsStorage() {
				if err := walk(id); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(Root); err != nil {
		return nil, err
	}
	return t, nil
}

// Entries returns the backing array, in DirID order, for serialization.
func (t *Tree) Entries() []Entry {
	return t.entries
}

// Get returns a copy of the entry at id.
func (t *Tree) Get(id DirID) Entry {
	return t.entries[id]
}

// Put overwrites the entry at id. Used by the Container Façade to persist
// ChainStream results (new start sector / size) back into the tree.
func (t *Tree) Put(id DirID, e Entry) {
	e.Parent = t.entries[id].Parent
	t.entries[id] = e
}

func (t *Tree) isRed(id DirID) bool {
	return id != NoStream && t.entries[id].Color == Red
}

func (t *Tree) setColor(id DirID, c Color) {
	if id != NoStream {
		t.entries[id].Color = c
	}
}

func (t *Tree) parentOf(id DirID) DirID {
	if id == NoStream {
		return NoStream
	}
	return t.entries[id].Parent
}

// rebuildParents recomputes Parent for every node reachable from storage's
// child tree; the field is runtime-only and is never trusted from disk.
func (t *Tree) rebuildParents(storage DirID) error {
	var walk func(id, parent DirID) error
	walk = func(id, parent DirID) error {
		if id == NoStream {
			return nil
		}
		t.entries[id].Parent = parent
		if err := walk(t.entries[id].Left, id); err != nil {
			return err
		}
		return walk(t.entries[id].Right, id)
	}
	return walk(t.entries[storage].Child, NoStream)
}

// repair validates that storage's child tree is a sound BST under
// compareKey; if so but the red-black coloring is inconsistent, it
// rebuilds a balanced, correctly-colored tree over the same DirIDs and
// pushes a diagnostic. A BST-order violation is fatal: it indicates
// corruption deeper than a coloring mistake.
func (t *Tree) repair(storage DirID) error {
	ordered := t.Children(storage)
	for i := 1; i < len(ordered); i++ {
		if compareKey(t.entries[ordered[i-1]].Name, t.entries[ordered[i]].Name) >= 0 {
			return fmt.Errorf("dirtree: %w under storage %d", ErrBadOrder, storage)
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	if t.colorsValid(t.entries[storage].Child) {
		return nil
	}
	t.sink.Push(diag.Diagnostic{
		Code:    diag.DirIndexWarning,
		Message: fmt.Sprintf("storage %d: red-black coloring inconsistent, rebalancing in place", storage),
	})
	newRoot := t.rebuildBalanced(ordered, NoStream)
	t.entries[storage].Child = newRoot
	t.setColor(newRoot, Black)
	return nil
}

// colorsValid checks "no red node has a red child" and that every
// root-to-leaf path carries the same black-height, treating NoStream as a
// black leaf.
func (t *Tree) colorsValid(root DirID) bool {
	if root != NoStream && t.entries[root].Color != Black {
		return false
	}
	_, ok := t.blackHeight(root)
	return ok
}

func (t *Tree) blackHeight(id DirID) (int, bool) {
	if id == NoStream {
		return 1, true
	}
	if t.entries[id].Color == Red {
		if t.isRed(t.entries[id].Left) || t.isRed(t.entries[id].Right) {
			return 0, false
		}
	}
	lh, ok := t.blackHeight(t.entries[id].Left)
	if !ok {
		return 0, false
	}
	rh, ok := t.blackHeight(t.entries[id].Right)
	if !ok || lh != rh {
		return 0, false
	}
	if t.entries[id].Color == Black {
		return lh + 1, true
	}
	return lh, true
}

// rebuildBalanced rewires the given sorted DirIDs into a balanced tree
// (middle element as subtree root), coloring only the deepest level red,
// and returns the new subtree root. The DirIDs and their entry payloads
// are untouched; only Left/Right/Parent/Color change.
func (t *Tree) rebuildBalanced(sorted []DirID, parent DirID) DirID {
	redDepth := 0
	for n := len(sorted); n > 1; n >>= 1 {
		redDepth++
	}
	var build func(ids []DirID, parent DirID, depth int) DirID
	build = func(ids []DirID, parent DirID, depth int) DirID {
		if len(ids) == 0 {
			return NoStream
		}
		mid := len(ids) / 2
		id := ids[mid]
		t.entries[id].Parent = parent
		t.entries[id].Left = build(ids[:mid], id, depth+1)
		t.entries[id].Right = build(ids[mid+1:], id, depth+1)
		if depth == redDepth {
			t.entries[id].Color = Red
		} else {
			t.entries[id].Color = Black
		}
		return id
	}
	return build(sorted, parent, 0)
}

// Children returns the DirIDs of storage's direct children, in order.
func (t *Tree) Children(storage DirID) []DirID {
	var out []DirID
	var walk func(id DirID)
	walk = func(id DirID) {
		if id == NoStream {
			return
		}
		walk(t.entries[id].Left)
		out = append(out, id)
		walk(t.entries[id].Right)
	}
	walk(t.entries[storage].Child)
	return out
}

// Lookup finds name among storage's direct children.
func (t *Tree) Lookup(storage DirID, name string) (DirID, error) {
	cur := t.entries[storage].Child
	for cur != NoStream {
		c := compareKey(name, t.entries[cur].Name)
		switch {
		case c == 0:
			return cur, nil
		case c < 0:
			cur = t.entries[cur].Left
		default:
			cur = t.entries[cur].Right
		}
	}
	return NoStream, ErrNotFound
}
