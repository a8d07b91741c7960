package flash

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var blockBucket = []byte("flash-blocks")

// BoltDevice 把 flash 镜像保存在 bbolt 中，每个擦除块一个 key，不存在的块视为已擦除
type BoltDevice struct {
	db        *bolt.DB
	size      uint32
	eraseSize uint32
	align     uint32
}

func OpenBoltDevice(path string, size, eraseSize, align uint32) (*BoltDevice, error) {
	if eraseSize == 0 || size%eraseSize != 0 {
		return nil, errors.Wrapf(ErrUnaligned, "size %#x erase size %#x", size, eraseSize)
	}
	if align == 0 {
		align = 1
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.Wrap(ErrDeviceBusy, path)
		}
		return nil, errors.Wrapf(err, "open bolt image %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blockBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create block bucket")
	}
	return &BoltDevice{db: db, size: size, eraseSize: eraseSize, align: align}, nil
}

func blockKey(block uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, block)
	return key
}

// 遍历 [off, off+n) 覆盖到的每个擦除块
func (d *BoltDevice) eachBlock(off uint32, n int, fn func(block, blockOff uint32, lo, hi int) error) error {
	pos := 0
	for pos < n {
		abs := off + uint32(pos)
		block := abs / d.eraseSize
		blockOff := abs % d.eraseSize
		chunk := int(d.eraseSize - blockOff)
		if chunk > n-pos {
			chunk = n - pos
		}
		if err := fn(block, blockOff, pos, pos+chunk); err != nil {
			return err
		}
		pos += chunk
	}
	return nil
}

func (d *BoltDevice) ReadAt(off uint32, buf []byte) error {
	if err := checkRange(d, off, len(buf)); err != nil {
		return err
	}
	return d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(blockBucket)
		return d.eachBlock(off, len(buf), func(block, blockOff uint32, lo, hi int) error {
			v := b.Get(blockKey(block))
			if v == nil {
				fillErased(buf[lo:hi])
				return nil
			}
			copy(buf[lo:hi], v[blockOff:])
			return nil
		})
	})
}

func (d *BoltDevice) WriteAt(off uint32, buf []byte) error {
	if err := checkRange(d, off, len(buf)); err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(blockBucket)
		return d.eachBlock(off, len(buf), func(block, blockOff uint32, lo, hi int) error {
			key := blockKey(block)
			cur := make([]byte, d.eraseSize)
			if v := b.Get(key); v != nil {
				copy(cur, v)
			} else {
				fillErased(cur)
			}
			program(cur[blockOff:], buf[lo:hi])
			return b.Put(key, cur)
		})
	})
}

func (d *BoltDevice) Erase(off, size uint32) error {
	if err := checkErase(d, off, size); err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(blockBucket)
		for block := off / d.eraseSize; block < (off+size)/d.eraseSize; block++ {
			if err := b.Delete(blockKey(block)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *BoltDevice) Size() uint32      { return d.size }
func (d *BoltDevice) EraseSize() uint32 { return d.eraseSize }
func (d *BoltDevice) Align() uint32     { return d.align }

func (d *BoltDevice) Close() error {
	return d.db.Close()
}
