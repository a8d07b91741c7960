package flash

import "sync"

// MemDevice is a flash device backed by a byte slice.
type MemDevice struct {
	mu        sync.RWMutex
	memory    []byte
	eraseSize uint32
	align     uint32
}

func NewMemDevice(size, eraseSize, align uint32) *MemDevice {
	if align == 0 {
		align = 1
	}
	dev := &MemDevice{
		memory:    make([]byte, size),
		eraseSize: eraseSize,
		align:     align,
	}
	fillErased(dev.memory)
	return dev
}

func (d *MemDevice) ReadAt(off uint32, buf []byte) error {
	if err := checkRange(d, off, len(buf)); err != nil {
		return err
	}
	d.mu.RLock()
	copy(buf, d.memory[off:])
	d.mu.RUnlock()
	return nil
}

func (d *MemDevice) WriteAt(off uint32, buf []byte) error {
	if err := checkRange(d, off, len(buf)); err != nil {
		return err
	}
	d.mu.Lock()
	program(d.memory[off:], buf)
	d.mu.Unlock()
	return nil
}

func (d *MemDevice) Erase(off, size uint32) error {
	if err := checkErase(d, off, size); err != nil {
		return err
	}
	d.mu.Lock()
	fillErased(d.memory[off : off+size])
	d.mu.Unlock()
	return nil
}

func (d *MemDevice) Size() uint32      { return uint32(len(d.memory)) }
func (d *MemDevice) EraseSize() uint32 { return d.eraseSize }
func (d *MemDevice) Align() uint32     { return d.align }

// Bytes returns a copy of the whole image.
func (d *MemDevice) Bytes() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]byte, len(d.memory))
	copy(out, d.memory)
	return out
}
