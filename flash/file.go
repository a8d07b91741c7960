package flash

import (
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const lockFileSuffix = ".lock"

// FileDevice 使用宿主机上的一个镜像文件模拟 flash，同一时间只允许一个进程打开
type FileDevice struct {
	mu        sync.Mutex
	file      *os.File
	fileLock  *flock.Flock
	size      uint32
	eraseSize uint32
	align     uint32
}

// OpenFileDevice 打开或创建镜像文件，不足 size 的部分以擦除值填充
func OpenFileDevice(path string, size, eraseSize, align uint32) (*FileDevice, error) {
	if align == 0 {
		align = 1
	}
	fileLock := flock.New(path + lockFileSuffix)
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	if !hold {
		return nil, errors.Wrap(ErrDeviceBusy, path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		_ = fileLock.Unlock()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	dev := &FileDevice{
		file:      file,
		fileLock:  fileLock,
		size:      size,
		eraseSize: eraseSize,
		align:     align,
	}
	if err := dev.extend(); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return dev, nil
}

func (d *FileDevice) extend() error {
	info, err := d.file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat image")
	}
	if info.Size() >= int64(d.size) {
		return nil
	}
	blank := make([]byte, int64(d.size)-info.Size())
	fillErased(blank)
	if _, err := d.file.WriteAt(blank, info.Size()); err != nil {
		return errors.Wrap(err, "extend image")
	}
	return d.file.Sync()
}

func (d *FileDevice) ReadAt(off uint32, buf []byte) error {
	if err := checkRange(d, off, len(buf)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.ReadAt(buf, int64(off)); err != nil {
		return errors.Wrapf(err, "read %#x", off)
	}
	return nil
}

func (d *FileDevice) WriteAt(off uint32, buf []byte) error {
	if err := checkRange(d, off, len(buf)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := make([]byte, len(buf))
	if _, err := d.file.ReadAt(cur, int64(off)); err != nil {
		return errors.Wrapf(err, "read %#x", off)
	}
	program(cur, buf)
	if _, err := d.file.WriteAt(cur, int64(off)); err != nil {
		return errors.Wrapf(err, "write %#x", off)
	}
	return nil
}

func (d *FileDevice) Erase(off, size uint32) error {
	if err := checkErase(d, off, size); err != nil {
		return err
	}
	blank := make([]byte, size)
	fillErased(blank)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.WriteAt(blank, int64(off)); err != nil {
		return errors.Wrapf(err, "erase %#x", off)
	}
	return nil
}

func (d *FileDevice) Size() uint32      { return d.size }
func (d *FileDevice) EraseSize() uint32 { return d.eraseSize }
func (d *FileDevice) Align() uint32     { return d.align }

// Sync 持久化镜像文件
func (d *FileDevice) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Sync()
}

// Close 关闭镜像文件并释放文件锁
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.file != nil {
		if serr := d.file.Sync(); serr != nil {
			err = serr
		}
		if cerr := d.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.file = nil
	}
	if uerr := d.fileLock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
