package alloc

import "github.com/warlomak/compoundfiles/internal/sectorio"

// SectorID aliases the sector-store identifier type so callers of this
// package don't need to import sectorio directly for the common case.
type SectorID = sectorio.SectorID

const (
	MaxRegSect = sectorio.MaxRegSect
	DifSect    = sectorio.DifSect
	FatSect    = sectorio.FatSect
	EndOfChain = sectorio.EndOfChain
	FreeSect   = sectorio.FreeSect
)

// Pool names which allocation table a chain lives in.
type Pool int

const (
	Normal Pool = iota
	Mini
)

func (p Pool) String() string {
	if p == Mini {
		return "mini"
	}
	return "normal"
}

// MiniSectorSize is fixed by the format at 64 bytes.
const MiniSectorSize = 64
