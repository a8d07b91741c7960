package data

type SectorState = byte

const (
	SectorErased SectorState = iota
	SectorActive
	SectorFull
	SectorForeign
)

func SectorStateName(s SectorState) string {
	switch s {
	case SectorErased:
		return "erased"
	case SectorActive:
		return "active"
	case SectorFull:
		return "full"
	case SectorForeign:
		return "foreign"
	default:
		return "unknown"
	}
}
