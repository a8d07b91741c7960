package data

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrInvalidLocation = errors.New("invalid entry location")

// EntryLocation 条目在 flash 中的位置，只在所在扇区被擦除前有效。
// SectorID 记录扇区头中的 id，扇区被擦除后再次启用时 id 会变化，旧的位置因此失效
type EntryLocation struct {
	Sector   int    // 逻辑扇区下标
	SectorID uint16 // 条目写入时扇区头中的 id
	ElemOff  uint32 // 长度头在扇区内的偏移
	DataOff  uint32 // 负载在扇区内的偏移
	DataLen  int    // 负载长度
	// EntryNum 条目在扇区内的序号。遍历返回的位置只统计已封存的条目；
	// Append 返回的位置按预留顺序编号，之前预留的条目全部封存后两者一致
	EntryNum int
}

// NewEntryLocation 构造并校验条目位置
func NewEntryLocation(sector int, sectorID uint16, elemOff, dataOff uint32, dataLen int) (EntryLocation, error) {
	loc := EntryLocation{
		Sector:   sector,
		SectorID: sectorID,
		ElemOff:  elemOff,
		DataOff:  dataOff,
		DataLen:  dataLen,
	}
	return loc, loc.Validate()
}

// Validate 校验位置是否自洽
func (l EntryLocation) Validate() error {
	switch {
	case l.Sector < 0:
		return errors.Wrapf(ErrInvalidLocation, "negative sector %d", l.Sector)
	case l.DataOff <= l.ElemOff:
		return errors.Wrapf(ErrInvalidLocation, "data offset %#x not after element %#x", l.DataOff, l.ElemOff)
	case l.DataOff-l.ElemOff < uint32(LenSize(l.DataLen)):
		return errors.Wrapf(ErrInvalidLocation, "no room for length header at %#x", l.ElemOff)
	case l.DataLen < 0 || l.DataLen > MaxLen:
		return errors.Wrapf(ErrInvalidLocation, "data length %d", l.DataLen)
	case l.EntryNum < 0:
		return errors.Wrapf(ErrInvalidLocation, "entry number %d", l.EntryNum)
	}
	return nil
}

func (l EntryLocation) String() string {
	return fmt.Sprintf("sector=%d id=%d off=%#x len=%d #%d", l.Sector, l.SectorID, l.ElemOff, l.DataLen, l.EntryNum)
}

// SectorPos 扇区索引中保存的扇区信息
type SectorPos struct {
	Sector int    // 逻辑扇区下标
	ID     uint16 // 扇区头中的 id
}
