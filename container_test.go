package cfb_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles"
	"github.com/warlomak/compoundfiles/internal/header"
	"github.com/warlomak/compoundfiles/testutil"
)

func newWriter(t *testing.T) (*cfb.Container, *testutil.GrowableDevice) {
	t.Helper()
	dev := testutil.NewGrowableDevice()
	c, err := cfb.CreateWriter(dev)
	require.NoError(t, err)
	return c, dev
}

func reopenAsEditor(t *testing.T, dev *testutil.GrowableDevice) *cfb.Container {
	t.Helper()
	c, err := cfb.OpenEditor(dev)
	require.NoError(t, err)
	return c
}

func TestCreateWriteSaveReopenRoundTrip(t *testing.T) {
	c, dev := newWriter(t)
	root := c.Root()

	streamEntry, err := c.CreateStream(root, "hello.txt", []byte("hello, compound file"))
	require.NoError(t, err)
	require.NoError(t, c.Save())

	reopened := reopenAsEditor(t, dev)
	found, err := reopened.OpenPath("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, streamEntry.Name(), found.Name())

	s, err := found.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello, compound file", string(data))
}

func TestCrossCutoffWriteThenReadBack(t *testing.T) {
	c, dev := newWriter(t)
	root := c.Root()

	entry, err := c.CreateStream(root, "big.bin", nil)
	require.NoError(t, err)
	s, err := entry.Open()
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xAB}, int(header.DefaultMiniCutoff)+1000)
	_, err = s.Write(payload)
	require.NoError(t, err)
	require.NoError(t, c.Save())

	reopened := reopenAsEditor(t, dev)
	found, err := reopened.OpenPath("big.bin")
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), found.Size())

	rs, err := found.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDeleteAndCompactReclaimsDirectorySlot(t *testing.T) {
	c, _ := newWriter(t)
	root := c.Root()

	a, err := c.CreateStream(root, "a", []byte("a"))
	require.NoError(t, err)
	_, err = c.CreateStream(root, "b", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, c.Delete(a))

	newEntry, err := c.CreateStream(root, "c", []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, a.ID, newEntry.ID, "the deleted entry's directory slot is reused")

	_, err = root.Lookup("a")
	assert.ErrorIs(t, err, cfb.ErrNotFound)

	found, err := root.Lookup("c")
	require.NoError(t, err)
	assert.Equal(t, newEntry.Name(), found.Name())
}

func TestRenameAcrossOrderIsVisibleAfterSave(t *testing.T) {
	c, dev := newWriter(t)
	root := c.Root()

	aa, err := c.CreateStream(root, "aa", []byte("1"))
	require.NoError(t, err)
	_, err = c.CreateStream(root, "bb", []byte("2"))
	require.NoError(t, err)

	renamed, err := c.Rename(aa, "zz")
	require.NoError(t, err)
	require.NoError(t, c.Save())

	reopened := reopenAsEditor(t, dev)
	names := make([]string, 0, 2)
	for _, child := range reopened.Root().Children() {
		names = append(names, child.Name())
	}
	assert.Equal(t, []string{"bb", "zz"}, names)
	assert.Equal(t, "zz", renamed.Name())
}

