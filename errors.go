package fcb_go

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidArgs   = errors.New("fcb: invalid arguments")
	ErrNoSpace       = errors.New("fcb: no space left in the buffer")
	ErrEntryTooLarge = fmt.Errorf("%w: entry does not fit in a sector", ErrNoSpace)
	ErrNoEntry       = errors.New("fcb: no more entries")
	ErrNoPrev        = errors.New("fcb: no previous entry")
	ErrBadMagic      = errors.New("fcb: sector magic does not match")
	ErrBadVersion    = errors.New("fcb: sector version does not match")
	ErrFlash         = errors.New("fcb: flash operation failed")
)

// 内部信号，不会返回给调用方
var (
	errCRC       = errors.New("entry crc mismatch")
	errSectorEnd = errors.New("end of written data in sector")
	errTruncated = errors.New("unreadable entry at end of sector")
)

// FlashError 底层 flash 读写擦除失败
type FlashError struct {
	Op     string
	Sector int
	Off    uint32
	Err    error
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("fcb: flash %s sector %d off %#x: %v", e.Op, e.Sector, e.Off, e.Err)
}

func (e *FlashError) Unwrap() error {
	return e.Err
}

func (e *FlashError) Is(target error) bool {
	return target == ErrFlash
}
