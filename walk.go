package fcb_go

import (
	"fcb-go/data"
	"fcb-go/index"

	"github.com/pkg/errors"
)

// WalkFunc 遍历时对每个有效条目调用，返回 false 结束遍历
type WalkFunc func(loc data.EntryLocation) bool

type cursor struct {
	sector int
	seq    uint64 // 游标创建时扇区的序号，扇区被擦除或重新启用后不再相等
	off    uint32
	num    int
}

// 指向 idx 扇区第一个条目的游标
func (f *FCB) cursorAt(idx int) cursor {
	return cursor{sector: idx, seq: f.seqs[idx], off: f.firstElemOff()}
}

// elemInfo 解析 off 处的条目并校验 crc。返回 errCRC 时 loc 仍然可用于跳过该条目
func (f *FCB) elemInfo(sec sector, off uint32) (data.EntryLocation, error) {
	if off+data.MaxLenSize > sec.size {
		return data.EntryLocation{}, errSectorEnd
	}
	lenBuf := make([]byte, data.MaxLenSize)
	if err := sec.read(off, lenBuf); err != nil {
		return data.EntryLocation{}, err
	}
	n, cnt, err := data.DecodeLen(lenBuf)
	if err != nil {
		if lenBuf[0] == 0xff && lenBuf[1] == 0xff {
			return data.EntryLocation{}, errSectorEnd
		}
		return data.EntryLocation{}, errTruncated
	}

	id, _ := f.sectorID(sec.index)
	loc := data.EntryLocation{
		Sector:   sec.index,
		SectorID: id,
		ElemOff:  off,
		DataOff:  off + f.lenInFlash(cnt),
		DataLen:  n,
	}
	crcOff := loc.DataOff + f.lenInFlash(n)
	if crcOff+data.CRCSize > sec.size {
		return loc, errTruncated
	}

	payload := make([]byte, n)
	if err := sec.read(loc.DataOff, payload); err != nil {
		return loc, err
	}
	stored := make([]byte, data.CRCSize)
	if err := sec.read(crcOff, stored); err != nil {
		return loc, err
	}
	if !data.VerifyCRC(stored, lenBuf[:cnt], payload) {
		return loc, errCRC
	}
	return loc, nil
}

// 活跃扇区只读到写入偏移为止
func (f *FCB) sectorLimit(sec sector) uint32 {
	if sec.index == f.active {
		return f.writeOff
	}
	return sec.size
}

// scanSector 顺序扫描扇区中偏移小于 limit 的条目，跳过 crc 错误的条目。
// 返回扫描停止的偏移、有效条目数，以及是否遇到了无法解析的数据
func (f *FCB) scanSector(idx int, limit uint32, fn WalkFunc) (uint32, int, bool, error) {
	sec, err := f.lookupSector(idx)
	if err != nil {
		return 0, 0, false, err
	}
	off := f.firstElemOff()
	count := 0
	for off < limit {
		loc, err := f.elemInfo(sec, off)
		switch {
		case err == nil:
			loc.EntryNum = count
			count++
			off = f.nextElemOff(loc)
			if fn != nil && !fn(loc) {
				return off, count, false, nil
			}
		case errors.Is(err, errCRC):
			f.metrics.corruptEntries.Inc()
			off = f.nextElemOff(loc)
		case errors.Is(err, errSectorEnd):
			return off, count, false, nil
		case errors.Is(err, errTruncated):
			return off, count, true, nil
		default:
			return off, count, false, err
		}
	}
	return off, count, false, nil
}

// next 从游标位置开始返回下一个有效条目，必要时进入下一个扇区
func (f *FCB) next(cur *cursor) (data.EntryLocation, error) {
	if seq := f.seqs[cur.sector]; seq == 0 || seq != cur.seq {
		// 游标所在扇区已被擦除（可能已经重新启用），从最旧的扇区继续
		*cur = f.cursorAt(f.oldest)
	}
	for {
		sec, err := f.lookupSector(cur.sector)
		if err != nil {
			return data.EntryLocation{}, err
		}
		limit := f.sectorLimit(sec)
	scan:
		for cur.off < limit {
			loc, err := f.elemInfo(sec, cur.off)
			switch {
			case err == nil:
				loc.EntryNum = cur.num
				cur.num++
				cur.off = f.nextElemOff(loc)
				return loc, nil
			case errors.Is(err, errCRC):
				f.metrics.corruptEntries.Inc()
				f.log.WithField("sector", sec.index).Debugf("skipping unsealed entry at %#x", cur.off)
				cur.off = f.nextElemOff(loc)
			case errors.Is(err, errSectorEnd), errors.Is(err, errTruncated):
				break scan
			default:
				return data.EntryLocation{}, err
			}
		}

		if cur.sector == f.active {
			return data.EntryLocation{}, ErrNoEntry
		}
		_, pos, ok := index.After(f.index, f.seqs[cur.sector])
		if !ok {
			return data.EntryLocation{}, ErrNoEntry
		}
		*cur = f.cursorAt(pos.Sector)
	}
}

// prev 返回 cur 之前的最后一个有效条目，cur 为 nil 时返回最新的条目
func (f *FCB) prev(cur *data.EntryLocation) (data.EntryLocation, error) {
	var idx int
	var bound uint32
	if cur == nil {
		idx = f.active
		bound = f.writeOff
	} else {
		if _, err := f.checkLocation(*cur); err != nil {
			return data.EntryLocation{}, err
		}
		idx = cur.Sector
		bound = cur.ElemOff
	}

	for {
		var last data.EntryLocation
		found := false
		_, _, _, err := f.scanSector(idx, bound, func(loc data.EntryLocation) bool {
			last = loc
			found = true
			return true
		})
		if err != nil {
			return data.EntryLocation{}, err
		}
		if found {
			return last, nil
		}

		_, pos, ok := index.Before(f.index, f.seqs[idx])
		if !ok {
			return data.EntryLocation{}, ErrNoPrev
		}
		sec, err := f.lookupSector(pos.Sector)
		if err != nil {
			return data.EntryLocation{}, err
		}
		idx = pos.Sector
		bound = f.sectorLimit(sec)
	}
}

// Walk 遍历有效条目。sector 为 Oldest 时从最旧的条目遍历整个缓冲区，否则只遍历该扇区。
// 回调执行期间不持有锁，回调中可以调用 Read
func (f *FCB) Walk(sector int, fn WalkFunc) error {
	f.mu.RLock()
	var cur cursor
	if sector == Oldest {
		cur = f.cursorAt(f.oldest)
	} else {
		if _, err := f.lookupSector(sector); err != nil {
			f.mu.RUnlock()
			return err
		}
		if f.seqs[sector] == 0 {
			f.mu.RUnlock()
			return nil
		}
		cur = f.cursorAt(sector)
	}
	seq := cur.seq
	f.mu.RUnlock()

	for {
		f.mu.RLock()
		if sector != Oldest && f.seqs[sector] != seq {
			// 扇区在回调期间被擦除或重新启用
			f.mu.RUnlock()
			return nil
		}
		loc, err := f.next(&cur)
		f.mu.RUnlock()
		if errors.Is(err, ErrNoEntry) {
			return nil
		}
		if err != nil {
			return err
		}
		if sector != Oldest && loc.Sector != sector {
			return nil
		}
		if !fn(loc) {
			return nil
		}
	}
}

// GetNext 返回 cur 之后的下一个有效条目，cur 为 nil 时返回最旧的条目
func (f *FCB) GetNext(cur *data.EntryLocation) (data.EntryLocation, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := f.cursorAt(f.oldest)
	if cur != nil {
		if _, err := f.checkLocation(*cur); err != nil {
			return data.EntryLocation{}, err
		}
		c = cursor{sector: cur.Sector, seq: f.seqs[cur.Sector], off: f.nextElemOff(*cur), num: cur.EntryNum + 1}
	}
	return f.next(&c)
}

// GetPrev 返回 cur 之前的有效条目，cur 为 nil 时返回最新的条目
func (f *FCB) GetPrev(cur *data.EntryLocation) (data.EntryLocation, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.prev(cur)
}

// Read 从条目负载的 off 处读取 len(buf) 个字节
func (f *FCB) Read(loc data.EntryLocation, off int, buf []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sec, err := f.checkLocation(loc)
	if err != nil {
		return err
	}
	if off < 0 || off+len(buf) > loc.DataLen {
		return errors.Wrapf(ErrInvalidArgs, "read [%d, %d) outside entry of %d bytes", off, off+len(buf), loc.DataLen)
	}
	return sec.read(loc.DataOff+uint32(off), buf)
}

// ReadEntry 读取条目的完整负载
func (f *FCB) ReadEntry(loc data.EntryLocation) ([]byte, error) {
	buf := make([]byte, loc.DataLen)
	if err := f.Read(loc, 0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
