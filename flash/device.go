package flash

import "github.com/pkg/errors"

// ErasedValue 擦除后 flash 中每个字节的值
const ErasedValue = 0xff

var (
	ErrOutOfBounds = errors.New("flash: access out of bounds")
	ErrUnaligned   = errors.New("flash: offset or length not aligned")
	ErrDeviceBusy  = errors.New("flash: device image is locked by another process")
)

// Device 原始 flash 驱动。读按字节，写只能把 1 改为 0，擦除以擦除块为单位
type Device interface {
	// ReadAt 从设备绝对偏移 off 读取 len(buf) 个字节
	ReadAt(off uint32, buf []byte) error

	// WriteAt 在设备绝对偏移 off 写入 buf
	WriteAt(off uint32, buf []byte) error

	// Erase 擦除 [off, off+size)，必须按擦除块对齐
	Erase(off, size uint32) error

	// Size 设备总字节数
	Size() uint32

	// EraseSize 擦除块大小
	EraseSize() uint32

	// Align 最小写入单位
	Align() uint32
}

func checkRange(dev Device, off uint32, n int) error {
	if uint64(off)+uint64(n) > uint64(dev.Size()) {
		return errors.Wrapf(ErrOutOfBounds, "off %#x len %d size %#x", off, n, dev.Size())
	}
	return nil
}

func checkErase(dev Device, off, size uint32) error {
	if err := checkRange(dev, off, int(size)); err != nil {
		return err
	}
	es := dev.EraseSize()
	if off%es != 0 || size%es != 0 {
		return errors.Wrapf(ErrUnaligned, "erase off %#x size %#x erase size %#x", off, size, es)
	}
	return nil
}

// program 模拟 NOR flash 的写入：只能清除位
func program(dst, src []byte) {
	for i := range src {
		dst[i] &= src[i]
	}
}

func fillErased(buf []byte) {
	for i := range buf {
		buf[i] = ErasedValue
	}
}
