package dirtree

import "errors"

var (
	// ErrNotFound is returned by Lookup/LookupPath when no entry matches.
	ErrNotFound = errors.New("dirtree: entry not found")
	// ErrNameCollision is returned by Insert/Rename when the target name
	// already exists in the storage.
	ErrNameCollision = errors.New("dirtree: name already exists in storage")
	// ErrNotStorage is returned when an operation that requires a storage
	// (or the root) is given a stream entry instead.
	ErrNotStorage = errors.New("dirtree: entry is not a storage")
	// ErrNotStream is returned when an operation that requires a stream is
	// given a storage entry instead.
	ErrNotStream = errors.New("dirtree: entry is not a stream")
	// ErrBadOrder is the fatal error raised when a storage's on-disk child
	// tree is not even a valid binary search tree under compareKey — a
	// deeper corruption than a red-black coloring mistake, which the
	// conservative repaint policy refuses to silently paper over.
	ErrBadOrder = errors.New("dirtree: directory subtree violates BST ordering")
)
