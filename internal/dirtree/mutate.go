package dirtree

// allocSlot reuses a freed DirID (LIFO) or appends a new one, per spec.md
// §4.5's slot policy.
func (t *Tree) allocSlot(e Entry) DirID {
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[id] = e
		return id
	}
	t.entries = append(t.entries, e)
	return DirID(len(t.entries) - 1)
}

func (t *Tree) rotateLeft(storage, x DirID) {
	y := t.entries[x].Right
	t.entries[x].Right = t.entries[y].Left
	if t.entries[y].Left != NoStream {
		t.entries[t.entries[y].Left].Parent = x
	}
	t.entries[y].Parent = t.entries[x].Parent
	p := t.entries[x].Parent
	if p == NoStream {
		t.entries[storage].Child = y
	} else if t.entries[p].Left == x {
		t.entries[p].Left = y
	} else {
		t.entries[p].Right = y
	}
	t.entries[y].Left = x
	t.entries[x].Parent = y
}

func (t *Tree) rotateRight(storage, x DirID) {
	y := t.entries[x].Left
	t.entries[x].Left = t.entries[y].Right
	if t.entries[y].Right != NoStream {
		t.entries[t.entries[y].Right].Parent = x
	}
	t.entries[y].Parent = t.entries[x].Parent
	p := t.entries[x].Parent
	if p == NoStream {
		t.entries[storage].Child = y
	} else if t.entries[p].Right == x {
		t.entries[p].Right = y
	} else {
		t.entries[p].Left = y
	}
	t.entries[y].Right = x
	t.entries[x].Parent = y
}

// Insert adds entry under storage's child tree keyed by entry.Name,
// performing the standard BST insert followed by red-black fix-up, per
// spec.md §4.5.
func (t *Tree) Insert(storage DirID, entry Entry) (DirID, error) {
	if !t.entries[storage].IsStorage() {
		return NoStream, ErrNotStorage
	}
	if _, err := t.Lookup(storage, entry.Name); err == nil {
		return NoStream, ErrNameCollision
	}

	entry.Left = NoStream
	entry.Right = NoStream
	entry.Color = Red
	id := t.allocSlot(entry)

	var parent DirID = NoStream
	cur := t.entries[storage].Child
	for cur != NoStream {
		parent = cur
		if compareKey(entry.Name, t.entries[cur].Name) < 0 {
			cur = t.entries[cur].Left
		} else {
			cur = t.entries[cur].Right
		}
	}
	t.entries[id].Parent = parent
	if parent == NoStream {
		t.entries[storage].Child = id
	} else if compareKey(entry.Name, t.entries[parent].Name) < 0 {
		t.entries[parent].Left = id
	} else {
		t.entries[parent].Right = id
	}

	t.insertFixup(storage, id)
	return id, nil
}

func (t *Tree) insertFixup(storage, z DirID) {
	for t.isRed(t.parentOf(z)) {
		p := t.parentOf(z)
		g := t.parentOf(p)
		if g == NoStream {
			break
		}
		if p == t.entries[g].Left {
			u := t.entries[g].Right
			if t.isRed(u) {
				t.setColor(p, Black)
				t.setColor(u, Black)
				t.setColor(g, Red)
				z = g
				continue
			}
			if z == t.entries[p].Right {
				z = p
				t.rotateLeft(storage, z)
				p = t.parentOf(z)
				g = t.parentOf(p)
			}
			t.setColor(p, Black)
			t.setColor(g, Red)
			t.rotateRight(storage, g)
		} else {
			u := t.entries[g].Left
			if t.isRed(u) {
				t.setColor(p, Black)
				t.setColor(u, Black)
				t.setColor(g, Red)
				z = g
				continue
			}
			if z == t.entries[p].Left {
				z = p
				t.rotateRight(storage, z)
				p = t.parentOf(z)
				g = t.parentOf(p)
			}
			t.setColor(p, Black)
			t.setColor(g, Red)
			t.rotateLeft(storage, g)
		}
	}
	t.setColor(t.entries[storage].Child, Black)
}

func (t *Tree) transplant(storage, u, v DirID) {
	p := t.parentOf(u)
	if p == NoStream {
		t.entries[storage].Child = v
	} else if t.entries[p].Left == u {
		t.entries[p].Left = v
	} else {
		t.entries[p].Right = v
	}
	if v != NoStream {
		t.entries[v].Parent = p
	}
}

func (t *Tree) minimum(id DirID) DirID {
	for t.entries[id].Left != NoStream {
		id = t.entries[id].Left
	}
	return id
}

// Delete removes the entry at id from storage's child tree: standard
// red-black delete with successor replacement. The freed slot is marked
// empty and reused LIFO by a later Insert, per spec.md §4.5.
func (t *Tree) Delete(storage, id DirID) error {
	y := id
	yOriginalColor := t.entries[y].Color
	var x, xParent DirID

	switch {
	case t.entries[id].Left == NoStream:
		x = t.entries[id].Right
		xParent = t.parentOf(id)
		t.transplant(storage, id, t.entries[id].Right)
	case t.entries[id].Right == NoStream:
		x = t.entries[id].Left
		xParent = t.parentOf(id)
		t.transplant(storage, id, t.entries[id].Left)
	default:
		y = t.minimum(t.entries[id].Right)
		yOriginalColor = t.entries[y].Color
		x = t.entries[y].Right
		if t.parentOf(y) == id {
			xParent = y
		} else {
			xParent = t.parentOf(y)
			t.transplant(storage, y, t.entries[y].Right)
			t.entries[y].Right = t.entries[id].Right
			t.entries[t.entries[y].Right].Parent = y
		}
		t.transplant(storage, id, y)
		t.entries[y].Left = t.entries[id].Left
		t.entries[t.entries[y].Left].Parent = y
		t.entries[y].Color = t.entries[id].Color
	}

	if yOriginalColor == Black {
		t.deleteFixup(storage, x, xParent)
	}

	t.entries[id] = Entry{Type: TypeEmpty, Left: NoStream, Right: NoStream, Child: NoStream, Parent: NoStream}
	t.free = append(t.free, id)
	return nil
}

func (t *Tree) deleteFixup(storage, x, parent DirID) {
	for x != t.entries[storage].Child && !t.isRed(x) {
		if parent == NoStream {
			break
		}
		if x == t.entries[parent].Left {
			w := t.entries[parent].Right
			if t.isRed(w) {
				t.setColor(w, Black)
				t.setColor(parent, Red)
				t.rotateLeft(storage, parent)
				w = t.entries[parent].Right
			}
			if !t.isRed(t.entries[w].Left) && !t.isRed(t.entries[w].Right) {
				t.setColor(w, Red)
				x = parent
				parent = t.parentOf(x)
				continue
			}
			if !t.isRed(t.entries[w].Right) {
				t.setColor(t.entries[w].Left, Black)
				t.setColor(w, Red)
				t.rotateRight(storage, w)
				w = t.entries[parent].Right
			}
			t.setColor(w, t.entries[parent].Color)
			t.setColor(parent, Black)
			t.setColor(t.entries[w].Right, Black)
			t.rotateLeft(storage, parent)
			x = t.entries[storage].Child
			parent = NoStream
		} else {
			w := t.entries[parent].Left
			if t.isRed(w) {
				t.setColor(w, Black)
				t.setColor(parent, Red)
				t.rotateRight(storage, parent)
				w = t.entries[parent].Left
			}
			if !t.isRed(t.entries[w].Left) && !t.isRed(t.entries[w].Right) {
				t.setColor(w, Red)
				x = parent
				parent = t.parentOf(x)
				continue
			}
			if !t.isRed(t.entries[w].Left) {
				t.setColor(t.entries[w].Right, Black)
				t.setColor(w, Red)
				t.rotateLeft(storage, w)
				w = t.entries[parent].Left
			}
			t.setColor(w, t.entries[parent].Color)
			t.setColor(parent, Black)
			t.setColor(t.entries[w].Left, Black)
			t.rotateRight(storage, parent)
			x = t.entries[storage].Child
			parent = NoStream
		}
	}
	t.setColor(x, Black)
}

// Rename moves id to a new key within storage: delete followed by
// re-insert, per spec.md §4.5. Fails without mutating the tree if newName
// already exists.
func (t *Tree) Rename(storage, id DirID, newName string) (DirID, error) {
	if existing, err := t.Lookup(storage, newName); err == nil && existing != id {
		return NoStream, ErrNameCollision
	}
	saved := t.entries[id]
	if err := t.Delete(storage, id); err != nil {
		return NoStream, err
	}
	saved.Name = newName
	return t.Insert(storage, saved)
}
