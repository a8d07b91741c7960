package config

const (
	defaultEraseSize   = 4096
	defaultMagic       = 0xfcb0cafe
	defaultVersion     = 1
	defaultLogLevel    = "info"
	defaultIndex       = "btree"
	defaultRPCAddr     = "localhost:1234"
	defaultMetricsAddr = ":9100"
)

// Normalize 补齐未填写的字段
func (c *Config) Normalize() {
	if c.Device.Type == "" {
		c.Device.Type = DeviceFile
	}
	if c.Device.EraseSize == 0 {
		c.Device.EraseSize = defaultEraseSize
	}
	if c.Device.Align == 0 {
		c.Device.Align = 1
	}

	// 没有声明分区时整个设备作为一个分区
	if len(c.Areas) == 0 && c.Device.Size > 0 {
		c.Areas = []AreaConfig{{ID: 0, Offset: 0, Size: c.Device.Size}}
	}

	if c.FCB.Magic == 0 {
		c.FCB.Magic = defaultMagic
	}
	if c.FCB.Version == 0 {
		c.FCB.Version = defaultVersion
	}
	if c.FCB.Index == "" {
		c.FCB.Index = defaultIndex
	}
	// 没有声明扇区时每个分区按擦除块切分
	if len(c.FCB.Ranges) == 0 {
		for _, a := range c.Areas {
			c.FCB.Ranges = append(c.FCB.Ranges, RangeConfig{
				Area:        a.ID,
				SectorSize:  c.Device.EraseSize,
				SectorCount: int(a.Size / c.Device.EraseSize),
			})
		}
	}
	for i := range c.FCB.Ranges {
		r := &c.FCB.Ranges[i]
		if r.SectorSize == 0 {
			r.SectorSize = c.Device.EraseSize
		}
		if r.SectorCount == 0 {
			if a, ok := c.Area(r.Area); ok && a.Size > r.Start {
				r.SectorCount = int((a.Size - r.Start) / r.SectorSize)
			}
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.RPCAddr == "" {
		c.RPCAddr = defaultRPCAddr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = defaultMetricsAddr
	}
}
