package fcb_go

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type IndexType = int8

const (
	BTree IndexType = iota + 1 // Btree索引

	ART // Adaptive Radix Tree索引
)

type Options struct {
	Magic uint32 // 扇区头中的 magic

	Version uint8 // 磁盘格式版本

	Ranges []SectorRange // 组成环形缓冲区的扇区

	ScratchCount int // 保留为空的扇区数量

	IndexType IndexType // 扇区索引类型

	Name string // 日志与监控中使用的实例名，为空时生成 uuid

	Logger logrus.FieldLogger // 为空时使用 logrus 默认 logger

	Registerer prometheus.Registerer // 不为空时注册监控指标
}

var DefaultOptions = Options{
	Magic:        0xfcb0cafe,
	Version:      1,
	ScratchCount: 0,
	IndexType:    BTree,
}
