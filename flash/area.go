package flash

import "github.com/pkg/errors"

// Area flash 分区，设备上一段连续、按擦除块对齐的区域。偏移都相对于分区起点
type Area struct {
	ID   uint8
	Dev  Device
	Off  uint32
	Size uint32
}

// NewArea 创建分区并校验边界与擦除块对齐
func NewArea(id uint8, dev Device, off, size uint32) (*Area, error) {
	if dev == nil {
		return nil, errors.New("flash: nil device")
	}
	if size == 0 {
		return nil, errors.Errorf("flash: area %d has zero size", id)
	}
	if err := checkErase(dev, off, size); err != nil {
		return nil, errors.Wrapf(err, "area %d", id)
	}
	return &Area{ID: id, Dev: dev, Off: off, Size: size}, nil
}

func (a *Area) check(off uint32, n int) error {
	if uint64(off)+uint64(n) > uint64(a.Size) {
		return errors.Wrapf(ErrOutOfBounds, "area %d off %#x len %d size %#x", a.ID, off, n, a.Size)
	}
	return nil
}

func (a *Area) Read(off uint32, buf []byte) error {
	if err := a.check(off, len(buf)); err != nil {
		return err
	}
	return a.Dev.ReadAt(a.Off+off, buf)
}

func (a *Area) Write(off uint32, buf []byte) error {
	if err := a.check(off, len(buf)); err != nil {
		return err
	}
	return a.Dev.WriteAt(a.Off+off, buf)
}

func (a *Area) Erase(off, size uint32) error {
	if err := a.check(off, int(size)); err != nil {
		return err
	}
	return a.Dev.Erase(a.Off+off, size)
}

// IsEmpty 读取 [off, off+len(buf)) 并判断是否全部为擦除值
func (a *Area) IsEmpty(off uint32, buf []byte) (bool, error) {
	if err := a.Read(off, buf); err != nil {
		return false, err
	}
	for _, b := range buf {
		if b != ErasedValue {
			return false, nil
		}
	}
	return true, nil
}

// SectorCount 分区包含的擦除块数量
func (a *Area) SectorCount() int {
	return int(a.Size / a.Dev.EraseSize())
}

// SectorInfo 返回第 i 个擦除块在分区内的偏移与大小
func (a *Area) SectorInfo(i int) (uint32, uint32, error) {
	if i < 0 || i >= a.SectorCount() {
		return 0, 0, errors.Wrapf(ErrOutOfBounds, "area %d sector %d", a.ID, i)
	}
	es := a.Dev.EraseSize()
	return uint32(i) * es, es, nil
}

func (a *Area) Align() uint32 {
	return a.Dev.Align()
}

func (a *Area) EraseSize() uint32 {
	return a.Dev.EraseSize()
}
