package header

import "errors"

// Fatal header errors, per spec.md §4.1 and §7.
var (
	ErrInvalidMagic = errors.New("invalid magic signature")
	ErrInvalidBom   = errors.New("invalid byte order mark")
	ErrBadVersion   = errors.New("unsupported major version")
)
