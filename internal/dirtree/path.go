package dirtree

import "strings"

// LookupPath resolves a slash-separated path against storage children,
// starting at root, per spec.md §6's open_path contract: empty segments
// are skipped and a leading "/" means start at the root storage.
func (t *Tree) LookupPath(path string) (DirID, error) {
	cur := Root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		next, err := t.Lookup(cur, seg)
		if err != nil {
			return NoStream, err
		}
		cur = next
	}
	return cur, nil
}
