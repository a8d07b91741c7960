package fcb_go

import (
	"fcb-go/data"

	"github.com/pkg/errors"
)

// Append 在活跃扇区中为长度为 n 的条目预留空间并写入长度头。
// 返回的位置需要先 Write 负载，再 Finish 封存后才对遍历可见
func (f *FCB) Append(n int) (data.EntryLocation, error) {
	hdr, err := data.EncodeLen(n)
	if err != nil {
		return data.EntryLocation{}, errors.Wrapf(ErrInvalidArgs, "entry length %d, max %d", n, data.MaxLen)
	}
	need := f.entrySize(n)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.firstElemOff()+need > f.maxSectorSize {
		return data.EntryLocation{}, errors.Wrapf(ErrEntryTooLarge, "entry of %d bytes", n)
	}
	sec, err := f.lookupSector(f.active)
	if err != nil {
		return data.EntryLocation{}, err
	}
	if f.writeOff+need > sec.size {
		next, ok := f.newArea(f.options.ScratchCount)
		if !ok {
			return data.EntryLocation{}, ErrNoSpace
		}
		if sec, err = f.lookupSector(next); err != nil {
			return data.EntryLocation{}, err
		}
		if f.firstElemOff()+need > sec.size {
			return data.EntryLocation{}, errors.Wrapf(ErrEntryTooLarge, "entry of %d bytes in sector %d", n, next)
		}
		if err := f.activate(next); err != nil {
			return data.EntryLocation{}, err
		}
	}

	loc := data.EntryLocation{
		Sector:   f.active,
		SectorID: f.activeID,
		ElemOff:  f.writeOff,
		DataOff:  f.writeOff + f.lenInFlash(len(hdr)),
		DataLen:  n,
		EntryNum: f.reserved,
	}
	if err := sec.write(loc.ElemOff, f.pad(hdr)); err != nil {
		return data.EntryLocation{}, err
	}
	f.writeOff += need
	f.reserved++
	return loc, nil
}

// Write 写入条目负载的一部分，可以多次调用
func (f *FCB) Write(loc data.EntryLocation, off int, p []byte) error {
	if off < 0 || off+len(p) > loc.DataLen {
		return errors.Wrapf(ErrInvalidArgs, "write [%d, %d) outside entry of %d bytes", off, off+len(p), loc.DataLen)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	sec, err := f.checkLocation(loc)
	if err != nil {
		return err
	}
	return sec.write(loc.DataOff+uint32(off), p)
}

// Finish 读回长度头与负载，计算 crc 并写在负载之后，条目从此对遍历可见
func (f *FCB) Finish(loc data.EntryLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sec, err := f.checkLocation(loc)
	if err != nil {
		return err
	}
	hdr := make([]byte, data.LenSize(loc.DataLen))
	if err := sec.read(loc.ElemOff, hdr); err != nil {
		return err
	}
	if n, _, err := data.DecodeLen(append(hdr, 0xff)); err != nil || n != loc.DataLen {
		return errors.Wrapf(ErrInvalidArgs, "no reserved entry at %s", loc)
	}
	payload := make([]byte, loc.DataLen)
	if err := sec.read(loc.DataOff, payload); err != nil {
		return err
	}
	crc := data.EncodeCRC(data.SealCRC(hdr, payload))

	crcOff := loc.DataOff + f.lenInFlash(loc.DataLen)
	stored := make([]byte, data.CRCSize)
	if err := sec.read(crcOff, stored); err != nil {
		return err
	}
	if stored[0] == crc[0] && stored[1] == crc[1] {
		// 已经封存过
		return nil
	}
	if err := sec.write(crcOff, f.pad(crc)); err != nil {
		return err
	}

	f.entries[loc.Sector]++
	f.metrics.appends.Inc()
	f.metrics.appendBytes.Add(float64(loc.DataLen))
	return nil
}

// AppendToScratch 立即启用下一个空闲扇区（包括保留的 scratch 扇区）作为活跃扇区
func (f *FCB) AppendToScratch() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, ok := f.newArea(0)
	if !ok {
		return errors.Wrap(ErrNoSpace, "no free sector left for scratch")
	}
	if err := f.activate(next); err != nil {
		return err
	}
	f.metrics.scratchPromotions.Inc()
	f.log.WithField("sector", next).Debug("scratch sector activated")
	return nil
}

// newArea 找到活跃扇区之后的下一个扇区，要求在到达最旧扇区之前至少还有 cnt+1 个空闲扇区
func (f *FCB) newArea(cnt int) (int, bool) {
	found := -1
	s := f.active
	for i := 0; i <= cnt; i++ {
		s = f.nextSector(s)
		if found < 0 {
			found = s
		}
		if s == f.oldest {
			return -1, false
		}
	}
	return found, true
}

// activate 写入扇区头并把扇区设置为活跃扇区
func (f *FCB) activate(idx int) error {
	id := f.activeID + 1
	seq := f.activeSeq + 1
	if err := f.sectorHdrInit(idx, id, seq); err != nil {
		return err
	}
	f.setActive(idx, id, seq)
	f.metrics.freeSectors.Set(float64(f.freeSectorCount()))
	return nil
}
