package fcb_go

import (
	"fcb-go/data"
	"fcb-go/index"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type sectorHeader struct {
	sector int
	id     uint16
}

// 读取扇区头。扇区头为擦除状态时返回 nil
func (f *FCB) readSectorHeader(sec sector) (*data.SectorHeader, error) {
	buf := make([]byte, data.SectorHeaderSize)
	empty, err := sec.area.IsEmpty(sec.off, buf)
	if err != nil {
		return nil, &FlashError{Op: "read", Sector: sec.index, Err: err}
	}
	if empty {
		return nil, nil
	}
	hdr, err := data.DecodeSectorHeader(buf, f.options.Magic, f.options.Version)
	switch {
	case errors.Is(err, data.ErrHeaderMagic):
		return nil, errors.Wrapf(ErrBadMagic, "sector %d: %v", sec.index, err)
	case errors.Is(err, data.ErrHeaderVersion):
		return nil, errors.Wrapf(ErrBadVersion, "sector %d: %v", sec.index, err)
	case err != nil:
		return nil, err
	}
	return hdr, nil
}

// 挂载：读取所有扇区头，id 最新的扇区为活跃扇区，再扫描各扇区恢复条目数与写入偏移
func (f *FCB) mount() error {
	var valid []sectorHeader
	var foreign []int
	for i := 0; i < f.sectorCount; i++ {
		sec, err := f.lookupSector(i)
		if err != nil {
			return err
		}
		hdr, err := f.readSectorHeader(sec)
		if err != nil {
			if errors.Is(err, ErrBadMagic) {
				f.log.WithError(err).Warn("foreign sector, will be erased before reuse")
				foreign = append(foreign, i)
				f.foreign[i] = true
				continue
			}
			return err
		}
		if hdr == nil {
			continue
		}
		valid = append(valid, sectorHeader{sector: i, id: hdr.ID})
	}

	if len(valid) == 0 {
		if len(foreign) > 0 && foreign[0] == 0 {
			return errors.Wrap(ErrBadMagic, "no valid sector and sector 0 is foreign")
		}
		return f.format()
	}

	newest := valid[0]
	for _, v := range valid[1:] {
		if data.IDNewer(v.id, newest.id) {
			newest = v
		}
	}
	base := uint64(newest.id) + seqBase
	for _, v := range valid {
		seq := base - uint64(newest.id-v.id)
		f.seqs[v.sector] = seq
		f.index.Put(seq, &data.SectorPos{Sector: v.sector, ID: v.id})
	}
	f.active = newest.sector
	f.activeID = newest.id
	f.activeSeq = base
	_, pos, _ := index.First(f.index, false)
	f.oldest = pos.Sector

	for _, v := range valid {
		sec, err := f.lookupSector(v.sector)
		if err != nil {
			return err
		}
		end, count, truncated, err := f.scanSector(v.sector, sec.size, nil)
		if err != nil {
			return err
		}
		f.entries[v.sector] = count
		if v.sector != f.active {
			continue
		}
		f.writeOff = end
		f.reserved = count
		if truncated {
			// 不再向无法解析的位置写入
			f.log.WithField("sector", v.sector).Warnf("unreadable data at %#x, sealing sector", end)
			f.writeOff = sec.size
		}
	}

	f.metrics.freeSectors.Set(float64(f.freeSectorCount()))
	f.log.WithFields(logrus.Fields{
		"active":  f.active,
		"id":      f.activeID,
		"oldest":  f.oldest,
		"offset":  f.writeOff,
		"sectors": len(valid),
	}).Info("fcb mounted")
	return nil
}

// format 擦除所有扇区，并把扇区 0 作为 id 为 0 的活跃扇区
func (f *FCB) format() error {
	for i := 0; i < f.sectorCount; i++ {
		if err := f.eraseSector(i); err != nil {
			return err
		}
	}
	if err := f.sectorHdrInit(0, 0, seqBase); err != nil {
		return err
	}
	f.setActive(0, 0, seqBase)
	f.oldest = 0
	f.metrics.freeSectors.Set(float64(f.freeSectorCount()))
	f.log.WithField("sectors", f.sectorCount).Info("fcb formatted")
	return nil
}

func (f *FCB) eraseSector(idx int) error {
	sec, err := f.lookupSector(idx)
	if err != nil {
		return err
	}
	if err := sec.erase(); err != nil {
		return err
	}
	if seq := f.seqs[idx]; seq != 0 {
		f.index.Delete(seq)
	}
	f.seqs[idx] = 0
	f.entries[idx] = 0
	f.foreign[idx] = false
	return nil
}

// sectorHdrInit 写入扇区头，扇区不为空时先擦除
func (f *FCB) sectorHdrInit(idx int, id uint16, seq uint64) error {
	sec, err := f.lookupSector(idx)
	if err != nil {
		return err
	}
	empty, err := sec.area.IsEmpty(sec.off, make([]byte, f.firstElemOff()))
	if err != nil {
		return &FlashError{Op: "read", Sector: idx, Err: err}
	}
	if !empty {
		f.log.WithField("sector", idx).Warn("sector not erased, erasing before use")
		if err := f.eraseSector(idx); err != nil {
			return err
		}
	}

	hdr := &data.SectorHeader{Magic: f.options.Magic, Version: f.options.Version, ID: id}
	if err := sec.write(0, f.pad(hdr.Encode())); err != nil {
		return err
	}
	f.seqs[idx] = seq
	f.entries[idx] = 0
	f.foreign[idx] = false
	f.index.Put(seq, &data.SectorPos{Sector: idx, ID: id})
	return nil
}

func (f *FCB) setActive(idx int, id uint16, seq uint64) {
	f.active = idx
	f.activeID = id
	f.activeSeq = seq
	f.writeOff = f.firstElemOff()
	f.reserved = 0
}

// pad 把写入内容补齐到对齐长度，补齐部分为擦除值
func (f *FCB) pad(buf []byte) []byte {
	n := f.lenInFlash(len(buf))
	if int(n) == len(buf) {
		return buf
	}
	out := make([]byte, n)
	copy(out, buf)
	for i := len(buf); i < len(out); i++ {
		out[i] = 0xff
	}
	return out
}
