package fcb_go

import (
	"fcb-go/data"
	"fcb-go/flash"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// SectorRange 一个 flash 分区内连续、大小相同的若干逻辑扇区
type SectorRange struct {
	Area        *flash.Area
	Start       uint32 // 第一个扇区在分区内的偏移
	SectorSize  uint32
	SectorCount int
}

// SectorsFromAreas 每个分区作为一个逻辑扇区
func SectorsFromAreas(areas ...*flash.Area) []SectorRange {
	ranges := make([]SectorRange, 0, len(areas))
	for _, a := range areas {
		ranges = append(ranges, SectorRange{Area: a, SectorSize: a.Size, SectorCount: 1})
	}
	return ranges
}

// SectorDescriptor 逻辑扇区对应的物理位置及其状态
type SectorDescriptor struct {
	Index int
	Area  *flash.Area
	Off   uint32
	Size  uint32
	ID    uint16
	State data.SectorState
}

type sector struct {
	index int
	area  *flash.Area
	off   uint32
	size  uint32
}

func (s sector) read(off uint32, buf []byte) error {
	if err := s.area.Read(s.off+off, buf); err != nil {
		return &FlashError{Op: "read", Sector: s.index, Off: off, Err: err}
	}
	return nil
}

func (s sector) write(off uint32, buf []byte) error {
	if err := s.area.Write(s.off+off, buf); err != nil {
		return &FlashError{Op: "write", Sector: s.index, Off: off, Err: err}
	}
	return nil
}

func (s sector) erase() error {
	if err := s.area.Erase(s.off, s.size); err != nil {
		return &FlashError{Op: "erase", Sector: s.index, Err: err}
	}
	return nil
}

// 扇区范围在分区内的结束偏移
func (r SectorRange) end() uint64 {
	return uint64(r.Start) + uint64(r.SectorSize)*uint64(r.SectorCount)
}

func checkRanges(ranges []SectorRange) (int, error) {
	if len(ranges) == 0 {
		return 0, errors.Wrap(ErrInvalidArgs, "no sector ranges")
	}
	total := 0
	for i, r := range ranges {
		if r.Area == nil {
			return 0, errors.Wrapf(ErrInvalidArgs, "range %d has no flash area", i)
		}
		if r.SectorCount <= 0 {
			return 0, errors.Wrapf(ErrInvalidArgs, "range %d has no sectors", i)
		}
		es := r.Area.EraseSize()
		if r.SectorSize == 0 || r.SectorSize%es != 0 || r.Start%es != 0 {
			return 0, errors.Wrapf(ErrInvalidArgs, "range %d sector size %#x or start %#x not aligned to erase size %#x",
				i, r.SectorSize, r.Start, es)
		}
		if r.end() > uint64(r.Area.Size) {
			return 0, errors.Wrapf(ErrInvalidArgs, "range %d exceeds area %d", i, r.Area.ID)
		}
		minSize := alignUp(data.SectorHeaderSize, r.Area.Align()) + 1 + data.CRCSize
		if r.SectorSize < minSize {
			return 0, errors.Wrapf(ErrInvalidArgs, "range %d sector size %d too small", i, r.SectorSize)
		}
		for j, o := range ranges[:i] {
			if o.Area == r.Area && uint64(r.Start) < o.end() && uint64(o.Start) < r.end() {
				return 0, errors.Wrapf(ErrInvalidArgs, "range %d overlaps range %d in area %d", i, j, r.Area.ID)
			}
		}
		total += r.SectorCount
	}
	if total > 0xffff {
		return 0, errors.Wrapf(ErrInvalidArgs, "too many sectors %d", total)
	}
	return total, nil
}

// 记录每个 range 第一个扇区的逻辑下标，用于二分查找
func (f *FCB) initRanges() {
	f.firsts = make([]int, len(f.options.Ranges))
	first := 0
	f.align = 1
	for i, r := range f.options.Ranges {
		f.firsts[i] = first
		first += r.SectorCount
		if a := r.Area.Align(); a > f.align {
			f.align = a
		}
		if r.SectorSize > f.maxSectorSize {
			f.maxSectorSize = r.SectorSize
		}
	}
	f.sectorCount = first
}

// lookupSector 根据逻辑下标找到所在的 range 及物理偏移
func (f *FCB) lookupSector(idx int) (sector, error) {
	if idx < 0 || idx >= f.sectorCount {
		return sector{}, errors.Wrapf(ErrInvalidArgs, "sector %d out of range [0, %d)", idx, f.sectorCount)
	}
	i, found := slices.BinarySearchFunc(f.firsts, idx, func(first, target int) int {
		return first - target
	})
	if !found {
		i--
	}
	r := f.options.Ranges[i]
	return sector{
		index: idx,
		area:  r.Area,
		off:   r.Start + uint32(idx-f.firsts[i])*r.SectorSize,
		size:  r.SectorSize,
	}, nil
}

func (f *FCB) nextSector(idx int) int {
	return (idx + 1) % f.sectorCount
}

// SectorInfo 返回逻辑扇区的物理位置与当前状态
func (f *FCB) SectorInfo(idx int) (SectorDescriptor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sec, err := f.lookupSector(idx)
	if err != nil {
		return SectorDescriptor{}, err
	}
	desc := SectorDescriptor{
		Index: idx,
		Area:  sec.area,
		Off:   sec.off,
		Size:  sec.size,
	}
	switch {
	case f.foreign[idx]:
		desc.State = data.SectorForeign
	case f.seqs[idx] == 0:
		desc.State = data.SectorErased
	case idx == f.active:
		desc.State = data.SectorActive
		desc.ID = f.activeID
	default:
		desc.State = data.SectorFull
		if pos := f.index.Get(f.seqs[idx]); pos != nil {
			desc.ID = pos.ID
		}
	}
	return desc, nil
}

func alignUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
