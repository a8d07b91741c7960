package data

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sigurn/crc16"
)

// MaxLen 单个条目负载的最大长度 127 | 127<<7
const MaxLen = 0x7f | 0x7f<<7

// CRCSize 条目尾部校验值的字节数
const CRCSize = 2

// MaxLenSize 长度头最多占用的字节数
const MaxLenSize = 2

var (
	ErrInvalidLen = errors.New("entry length exceeds the maximum")
	// ErrNoLen 长度头仍处于擦除状态，说明该位置之后没有条目
	ErrNoLen = errors.New("no entry length at this offset")
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// LenSize 长度 n 编码后占用的字节数
func LenSize(n int) int {
	if n < 0x80 {
		return 1
	}
	return 2
}

// EncodeLen 编码条目长度头
//
//	n < 128:  | n |
//	n >= 128: | 0x80|n&0x7f | n>>7 |
func EncodeLen(n int) ([]byte, error) {
	if n < 0 || n > MaxLen {
		return nil, errors.Wrapf(ErrInvalidLen, "len %d", n)
	}
	if n < 0x80 {
		return []byte{byte(n)}, nil
	}
	return []byte{byte(n&0x7f) | 0x80, byte(n >> 7)}, nil
}

// DecodeLen 解码长度头，返回长度以及长度头占用的字节数
func DecodeLen(buf []byte) (int, int, error) {
	if len(buf) == 0 {
		return 0, 0, ErrNoLen
	}
	if buf[0]&0x80 == 0 {
		return int(buf[0]), 1, nil
	}
	if len(buf) < 2 {
		return 0, 0, errors.Wrap(ErrNoLen, "truncated length header")
	}
	if buf[0] == 0xff && buf[1] == 0xff {
		return 0, 0, ErrNoLen
	}
	return int(buf[0]&0x7f) | int(buf[1])<<7, 2, nil
}

// EntryCRC 计算长度头与负载的校验值
func EntryCRC(hdr []byte, payload ...[]byte) uint16 {
	crc := crc16.Init(crcTable)
	crc = crc16.Update(crc, hdr, crcTable)
	for _, p := range payload {
		crc = crc16.Update(crc, p, crcTable)
	}
	return crc16.Complete(crc, crcTable)
}

// 擦除状态的 crc 槽读出来是 0xffff，封存值不能与之相同
const erasedCRC, sealedErasedCRC = 0xffff, 0xfffe

// SealCRC 写入 flash 的封存值，与 EntryCRC 相同，只是把 0xffff 换成 0xfffe
func SealCRC(hdr []byte, payload ...[]byte) uint16 {
	crc := EntryCRC(hdr, payload...)
	if crc == erasedCRC {
		return sealedErasedCRC
	}
	return crc
}

func EncodeCRC(crc uint16) []byte {
	buf := make([]byte, CRCSize)
	binary.LittleEndian.PutUint16(buf, crc)
	return buf
}

func DecodeCRC(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

// VerifyCRC 校验 flash 中保存的 crc
func VerifyCRC(stored []byte, hdr []byte, payload ...[]byte) bool {
	if len(stored) < CRCSize {
		return false
	}
	return DecodeCRC(stored) == SealCRC(hdr, payload...)
}
