package main

import (
	"io"

	fcb "fcb-go"
	"fcb-go/config"
	"fcb-go/flash"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// instance 按配置打开的设备与环形缓冲区
type instance struct {
	fcb *fcb.FCB
	dev flash.Device
}

func openDevice(cfg config.DeviceConfig) (flash.Device, error) {
	switch cfg.Type {
	case config.DeviceFile:
		return flash.OpenFileDevice(cfg.Path, cfg.Size, cfg.EraseSize, cfg.Align)
	case config.DeviceBolt:
		return flash.OpenBoltDevice(cfg.Path, cfg.Size, cfg.EraseSize, cfg.Align)
	case config.DeviceMem:
		return flash.NewMemDevice(cfg.Size, cfg.EraseSize, cfg.Align), nil
	}
	return nil, errors.Errorf("unknown device type %q", cfg.Type)
}

func buildOptions(cfg *config.Config, dev flash.Device) (fcb.Options, error) {
	areas := make(map[uint8]*flash.Area, len(cfg.Areas))
	for _, a := range cfg.Areas {
		area, err := flash.NewArea(a.ID, dev, a.Offset, a.Size)
		if err != nil {
			return fcb.Options{}, err
		}
		areas[a.ID] = area
	}

	opts := fcb.DefaultOptions
	opts.Name = cfg.FCB.Name
	opts.Magic = cfg.FCB.Magic
	opts.Version = cfg.FCB.Version
	opts.ScratchCount = cfg.FCB.Scratch
	if cfg.FCB.Index == "art" {
		opts.IndexType = fcb.ART
	}
	for _, r := range cfg.FCB.Ranges {
		opts.Ranges = append(opts.Ranges, fcb.SectorRange{
			Area:        areas[r.Area],
			Start:       r.Start,
			SectorSize:  r.SectorSize,
			SectorCount: r.SectorCount,
		})
	}
	return opts, nil
}

func openInstance(cfg *config.Config, logger logrus.FieldLogger, reg prometheus.Registerer) (*instance, error) {
	dev, err := openDevice(cfg.Device)
	if err != nil {
		return nil, errors.Wrap(err, "open device")
	}
	opts, err := buildOptions(cfg, dev)
	if err != nil {
		closeDevice(dev)
		return nil, err
	}
	opts.Logger = logger
	opts.Registerer = reg

	f, err := fcb.Open(opts)
	if err != nil {
		closeDevice(dev)
		return nil, errors.Wrap(err, "open fcb")
	}
	return &instance{fcb: f, dev: dev}, nil
}

func (i *instance) Close() error {
	if err := i.fcb.Close(); err != nil {
		return err
	}
	if fd, ok := i.dev.(*flash.FileDevice); ok {
		if err := fd.Sync(); err != nil {
			return err
		}
	}
	return closeDevice(i.dev)
}

func closeDevice(dev flash.Device) error {
	if c, ok := dev.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
