package alloc

import "errors"

// Fatal allocator errors, per spec.md §4.3 and §7. Each corresponds
// directly to a taxonomy entry in the error handling design.
var (
	ErrMasterLoop    = errors.New("DIFAT chain contains a loop")
	ErrNormalLoop    = errors.New("FAT chain contains a loop")
	ErrMiniLoop      = errors.New("MiniFAT chain contains a loop")
	ErrLargeNormalFat = errors.New("FAT entry names a sector outside the valid range")
	ErrLargeMiniFat   = errors.New("MiniFAT entry names a sector outside the valid range")
	ErrNoSpace        = errors.New("allocator exhausted available sectors")
	ErrNoMiniFat      = errors.New("no MiniFAT is present")
)
