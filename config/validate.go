package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Validate 只做声明式的校验，不修改配置
func Validate(cfg *Config) error {
	d := cfg.Device
	switch d.Type {
	case DeviceFile, DeviceBolt:
		if d.Path == "" {
			return errors.Errorf("device: %s device needs a path", d.Type)
		}
	case DeviceMem:
	default:
		return errors.Errorf("device: unknown type %q", d.Type)
	}
	if d.Size == 0 || d.EraseSize == 0 {
		return errors.New("device: size and erase_size must be set")
	}
	if d.Size%d.EraseSize != 0 {
		return errors.Errorf("device: size %#x not a multiple of erase_size %#x", d.Size, d.EraseSize)
	}

	ids := make(map[uint8]bool)
	for _, a := range cfg.Areas {
		if ids[a.ID] {
			return errors.Errorf("area %d: duplicate id", a.ID)
		}
		ids[a.ID] = true
		if a.Size == 0 || a.Offset%d.EraseSize != 0 || a.Size%d.EraseSize != 0 {
			return errors.Errorf("area %d: offset %#x size %#x must be non-empty and aligned to erase_size", a.ID, a.Offset, a.Size)
		}
		if uint64(a.Offset)+uint64(a.Size) > uint64(d.Size) {
			return errors.Errorf("area %d: exceeds device size %#x", a.ID, d.Size)
		}
	}

	f := cfg.FCB
	if f.Magic == 0xffffffff {
		return errors.New("fcb: magic must differ from erased flash")
	}
	if f.Index != "btree" && f.Index != "art" {
		return errors.Errorf("fcb: unknown index %q", f.Index)
	}
	if len(f.Ranges) == 0 {
		return errors.New("fcb: no sector ranges")
	}
	total := 0
	for i, r := range f.Ranges {
		a, ok := cfg.Area(r.Area)
		if !ok {
			return errors.Errorf("fcb range %d: unknown area %d", i, r.Area)
		}
		if r.SectorCount <= 0 {
			return errors.Errorf("fcb range %d: no sectors", i)
		}
		if rangeEnd(r) > uint64(a.Size) {
			return errors.Errorf("fcb range %d: exceeds area %d", i, r.Area)
		}
		for j, o := range f.Ranges[:i] {
			if o.Area == r.Area && uint64(r.Start) < rangeEnd(o) && uint64(o.Start) < rangeEnd(r) {
				return errors.Errorf("fcb range %d: overlaps range %d in area %d", i, j, r.Area)
			}
		}
		total += r.SectorCount
	}
	if f.Scratch < 0 || f.Scratch >= total {
		return errors.Errorf("fcb: scratch %d with %d sectors", f.Scratch, total)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

func rangeEnd(r RangeConfig) uint64 {
	return uint64(r.Start) + uint64(r.SectorSize)*uint64(r.SectorCount)
}
