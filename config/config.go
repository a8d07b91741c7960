package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config fcbtool 使用的 flash 镜像布局
type Config struct {
	Device      DeviceConfig `yaml:"device"`
	Areas       []AreaConfig `yaml:"areas"`
	FCB         FCBConfig    `yaml:"fcb"`
	LogLevel    string       `yaml:"log_level"`
	RPCAddr     string       `yaml:"rpc_addr"`
	MetricsAddr string       `yaml:"metrics_addr"`
}

const (
	DeviceFile = "file"
	DeviceBolt = "bolt"
	DeviceMem  = "mem"
)

// ---- DEVICE ----

type DeviceConfig struct {
	Type      string `yaml:"type"` // file | bolt | mem
	Path      string `yaml:"path"`
	Size      uint32 `yaml:"size"`
	EraseSize uint32 `yaml:"erase_size"`
	Align     uint32 `yaml:"align"`
}

// ---- AREA ----

type AreaConfig struct {
	ID     uint8  `yaml:"id"`
	Offset uint32 `yaml:"offset"`
	Size   uint32 `yaml:"size"`
}

// ---- FCB ----

type FCBConfig struct {
	Name    string        `yaml:"name"`
	Magic   uint32        `yaml:"magic"`
	Version uint8         `yaml:"version"`
	Scratch int           `yaml:"scratch"`
	Index   string        `yaml:"index"` // btree | art
	Ranges  []RangeConfig `yaml:"ranges"`
}

type RangeConfig struct {
	Area        uint8  `yaml:"area"`
	Start       uint32 `yaml:"start"`
	SectorSize  uint32 `yaml:"sector_size"`
	SectorCount int    `yaml:"sector_count"`
}

// Load 读取 YAML 配置，补齐默认值并校验
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(buf)
}

// Parse 解析 YAML 配置，补齐默认值并校验
func Parse(buf []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.Normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Area 按 id 查找分区
func (c *Config) Area(id uint8) (AreaConfig, bool) {
	for _, a := range c.Areas {
		if a.ID == id {
			return a, true
		}
	}
	return AreaConfig{}, false
}
