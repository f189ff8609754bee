package dirtree

import (
	"unicode"
	"unicode/utf16"
)

// compareKey orders two names first by UTF-16 code-unit length, then by
// upper-cased UTF-16 code units, per spec.md §4.5. Ties are forbidden
// within a single storage.
func compareKey(a, b string) int {
	au := utf16.Encode([]rune(a))
	bu := utf16.Encode([]rune(b))
	if len(au) != len(bu) {
		if len(au) < len(bu) {
			return -1
		}
		return 1
	}
	for i := range au {
		ca := upperUnit(au[i])
		cb := upperUnit(bu[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// upperUnit upper-cases a single UTF-16 code unit. Surrogate halves are
// left as-is: names built from characters outside the basic multilingual
// plane are rare in practice and the format's 31-code-unit name limit
// discourages them anyway.
func upperUnit(u uint16) uint16 {
	r := unicode.ToUpper(rune(u))
	if r <= 0xFFFF {
		return uint16(r)
	}
	return u
}
