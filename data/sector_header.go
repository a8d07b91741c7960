package data

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// magic(4) + version(1) + pad(1) + id(2)
const SectorHeaderSize = 8

var (
	ErrHeaderMagic   = errors.New("sector header magic mismatch")
	ErrHeaderVersion = errors.New("sector header version mismatch")
)

// SectorHeader 扇区成为活跃扇区时写入的头部
type SectorHeader struct {
	Magic   uint32
	Version uint8
	ID      uint16 // 每次切换扇区递增，回绕
}

// Encode 编码扇区头
func (h *SectorHeader) Encode() []byte {
	buf := make([]byte, SectorHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = 0xff
	binary.LittleEndian.PutUint16(buf[6:8], h.ID)
	return buf
}

// DecodeSectorHeader 解码扇区头，并与期望的 magic、version 比较
func DecodeSectorHeader(buf []byte, magic uint32, version uint8) (*SectorHeader, error) {
	if len(buf) < SectorHeaderSize {
		return nil, errors.Errorf("sector header needs %d bytes, got %d", SectorHeaderSize, len(buf))
	}
	h := &SectorHeader{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Version: buf[4],
		ID:      binary.LittleEndian.Uint16(buf[6:8]),
	}
	if h.Magic != magic {
		return h, errors.Wrapf(ErrHeaderMagic, "got %#08x want %#08x", h.Magic, magic)
	}
	if h.Version != version {
		return h, errors.Wrapf(ErrHeaderVersion, "got %d want %d", h.Version, version)
	}
	return h, nil
}

// IDNewer 判断回绕的扇区 id a 是否比 b 新
func IDNewer(a, b uint16) bool {
	return int16(a-b) > 0
}
