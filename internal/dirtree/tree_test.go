package dirtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/diag"
)

func storageEntry(name string) Entry {
	return Entry{Name: name, Type: TypeStorage, Left: NoStream, Right: NoStream, Child: NoStream}
}

func streamEntry(name string, size uint64) Entry {
	return Entry{Name: name, Type: TypeStream, Left: NoStream, Right: NoStream, Child: NoStream, Start: alloc.EndOfChain, Size: size}
}

func TestInsertAndLookup(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)

	sid, err := tree.Insert(id, streamEntry("a", 5))
	require.NoError(t, err)

	found, err := tree.Lookup(id, "a")
	require.NoError(t, err)
	assert.Equal(t, sid, found)
}

func TestInsertRejectsCollision(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)
	_, err = tree.Insert(id, streamEntry("a", 1))
	require.NoError(t, err)

	_, err = tree.Insert(id, streamEntry("a", 2))
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestDeleteOnlyChildClearsStorageChild(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)
	sid, err := tree.Insert(id, streamEntry("a", 1))
	require.NoError(t, err)

	require.NoError(t, tree.Delete(id, sid))
	assert.Equal(t, NoStream, tree.Get(id).Child)
}

func TestDeleteFreesSlotForReuse(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)
	sid, err := tree.Insert(id, streamEntry("a", 5))
	require.NoError(t, err)

	require.NoError(t, tree.Delete(id, sid))

	newID, err := tree.Insert(id, streamEntry("b", 3))
	require.NoError(t, err)
	assert.Equal(t, sid, newID, "freed slots are reused LIFO")
}

func TestRenameAcrossOrderPreservesInOrderTraversal(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)
	_, err = tree.Insert(id, streamEntry("aa", 1))
	require.NoError(t, err)
	_, err = tree.Insert(id, streamEntry("bb", 1))
	require.NoError(t, err)

	aaID, err := tree.Lookup(id, "aa")
	require.NoError(t, err)
	_, err = tree.Rename(id, aaID, "zz")
	require.NoError(t, err)

	children := tree.Children(id)
	require.Len(t, children, 2)
	assert.Equal(t, "bb", tree.Get(children[0]).Name)
	assert.Equal(t, "zz", tree.Get(children[1]).Name)
}

func TestRenameToCollidingNameFailsWithoutMutating(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)
	_, err = tree.Insert(id, streamEntry("aa", 1))
	require.NoError(t, err)
	bbID, err := tree.Insert(id, streamEntry("bb", 1))
	require.NoError(t, err)

	_, err = tree.Rename(id, bbID, "aa")
	assert.ErrorIs(t, err, ErrNameCollision)

	children := tree.Children(id)
	names := []string{tree.Get(children[0]).Name, tree.Get(children[1]).Name}
	assert.ElementsMatch(t, []string{"aa", "bb"}, names)
}

func TestManyInsertsMaintainRedBlackAndBSTInvariants(t *testing.T) {
	tree := New(nil)
	id, err := tree.Insert(Root, storageEntry("S"))
	require.NoError(t, err)

	names := []string{"m", "c", "x", "a", "d", "z", "q", "b", "n", "y", "e", "f", "g", "h"}
	for _, n := range names {
		_, err := tree.Insert(id, streamEntry(n, 1))
		require.NoError(t, err)
	}

	children := tree.Children(id)
	require.Len(t, children, len(names))
	for i := 1; i < len(children); i++ {
		assert.Less(t, compareKey(tree.Get(children[i-1]).Name, tree.Get(children[i]).Name), 0)
	}
	assert.True(t, tree.colorsValid(tree.Get(id).Child))
}

func TestLoadRepaintsInconsistentColoringWhenOrderIsSound(t *testing.T) {
	root := Entry{Name: "Root Entry", Type: TypeRoot, Color: Black, Left: NoStream, Right: NoStream, Child: 1, Parent: NoStream}
	// A valid BST by name ("aa" < "bb" < "cc") but with two reds in a row,
	// which a real-world writer might produce.
	storage := Entry{Name: "S", Type: TypeStorage, Color: Black, Left: NoStream, Right: NoStream, Child: 2, Parent: NoStream}
	mid := Entry{Name: "bb", Type: TypeStream, Color: Red, Left: 3, Right: 4, Parent: NoStream, Start: alloc.EndOfChain}
	left := Entry{Name: "aa", Type: TypeStream, Color: Red, Left: NoStream, Right: NoStream, Parent: NoStream, Start: alloc.EndOfChain}
	right := Entry{Name: "cc", Type: TypeStream, Color: Red, Left: NoStream, Right: NoStream, Parent: NoStream, Start: alloc.EndOfChain}

	entries := []Entry{root, storage, mid, left, right}
	sink := diag.NewCollectingSink()
	tree, err := Load(entries, sink)
	require.NoError(t, err)

	assert.NotNil(t, sink.Warnings())
	assert.True(t, tree.colorsValid(tree.Get(1).Child))

	names := make([]string, 0, 3)
	for _, id := range tree.Children(1) {
		names = append(names, tree.Get(id).Name)
	}
	assert.Equal(t, []string{"aa", "bb", "cc"}, names)
}

func TestLoadRejectsBrokenBSTOrder(t *testing.T) {
	root := Entry{Name: "Root Entry", Type: TypeRoot, Color: Black, Left: NoStream, Right: NoStream, Child: 1, Parent: NoStream}
	storage := Entry{Name: "S", Type: TypeStorage, Color: Black, Left: NoStream, Right: NoStream, Child: 2, Parent: NoStream}
	// "zz" in the left subtree of "bb" violates ordering outright.
	mid := Entry{Name: "bb", Type: TypeStream, Color: Black, Left: 3, Right: NoStream, Parent: NoStream, Start: alloc.EndOfChain}
	left := Entry{Name: "zz", Type: TypeStream, Color: Red, Left: NoStream, Right: NoStream, Parent: NoStream, Start: alloc.EndOfChain}

	entries := []Entry{root, storage, mid, left}
	_, err := Load(entries, nil)
	assert.ErrorIs(t, err, ErrBadOrder)
}
