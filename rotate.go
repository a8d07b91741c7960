package fcb_go

import (
	"fcb-go/data"
	"fcb-go/index"

	"github.com/pkg/errors"
)

// Rotate 擦除最旧的扇区。缓冲区为空时不做任何事
func (f *FCB) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rotate()
}

func (f *FCB) rotate() error {
	if f.isEmpty() {
		return nil
	}
	oldest := f.oldest
	if err := f.eraseSector(oldest); err != nil {
		return err
	}

	if oldest == f.active {
		// 擦除的是活跃扇区，需要启用一个新的扇区
		next := f.nextSector(oldest)
		if err := f.activate(next); err != nil {
			return err
		}
		f.oldest = next
	} else if _, pos, ok := index.First(f.index, false); ok {
		f.oldest = pos.Sector
	} else {
		f.oldest = f.active
	}

	f.metrics.rotations.Inc()
	f.metrics.freeSectors.Set(float64(f.freeSectorCount()))
	f.log.WithField("erased", oldest).WithField("oldest", f.oldest).Debug("fcb rotated")
	return nil
}

// Clear 不断擦除最旧的扇区直到缓冲区为空
func (f *FCB) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for !f.isEmpty() {
		if err := f.rotate(); err != nil {
			return err
		}
	}
	return nil
}

// AreaInfo 统计扇区中有效条目的数量与负载字节数，sector 为 Oldest 时统计最旧的扇区
func (f *FCB) AreaInfo(sector int) (int, int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if sector == Oldest {
		sector = f.oldest
	}
	sec, err := f.lookupSector(sector)
	if err != nil {
		return 0, 0, err
	}
	if f.seqs[sector] == 0 {
		return 0, 0, nil
	}
	bytes := 0
	_, count, _, err := f.scanSector(sector, f.sectorLimit(sec), func(loc data.EntryLocation) bool {
		bytes += loc.DataLen
		return true
	})
	if err != nil {
		return 0, 0, err
	}
	return count, bytes, nil
}

// OffsetLastN 返回倒数第 n 个有效条目，条目不足 n 个时返回最旧的条目
func (f *FCB) OffsetLastN(n int) (data.EntryLocation, error) {
	if n <= 0 {
		return data.EntryLocation{}, errors.Wrapf(ErrInvalidArgs, "last %d entries", n)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	loc, err := f.prev(nil)
	if errors.Is(err, ErrNoPrev) {
		return data.EntryLocation{}, ErrNoEntry
	}
	if err != nil {
		return data.EntryLocation{}, err
	}
	for i := 1; i < n; i++ {
		p, err := f.prev(&loc)
		if errors.Is(err, ErrNoPrev) {
			break
		}
		if err != nil {
			return data.EntryLocation{}, err
		}
		loc = p
	}
	return loc, nil
}
