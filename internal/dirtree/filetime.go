package dirtree

import "time"

// filetimeEpoch is 1601-01-01 00:00:00 UTC, the FILETIME epoch, expressed
// as the corresponding time.Time so the conversion is a plain duration
// subtraction/addition rather than hand-rolled calendar math.
var filetimeEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// filetimeToTime converts a Windows FILETIME (100-ns ticks since
// 1601-01-01 UTC) to time.Time, treating an all-zero FILETIME as the Go
// zero time, per spec.md's "creation and modification timestamps ... or
// zero".
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return filetimeEpoch.Add(time.Duration(ft) * 100)
}

// timeToFiletime converts t to a Windows FILETIME. The Go zero time maps
// back to 0, the inverse of filetimeToTime's zero handling.
func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Sub(filetimeEpoch) / 100)
}
