package index

import (
	"fcb-go/data"

	"github.com/google/btree"
)

// 扇区索引接口：按单调递增的序号记录正在使用的扇区，目前接入google的btree和ART
type Indexer interface {
	// Put 记录序号对应的扇区
	Put(seq uint64, pos *data.SectorPos) bool

	// Get 根据序号取出扇区信息
	Get(seq uint64) *data.SectorPos

	// Delete 删除序号对应的扇区
	Delete(seq uint64) bool

	// Size 索引中的扇区数量
	Size() int

	// Iterator 按序号顺序遍历的迭代器
	Iterator(reverse bool) Iterator
}

type IndexType = int8

const (
	Btree IndexType = iota + 1 // Btree索引

	ART // Adaptive Radix Tree索引
)

func NewIndexer(typ IndexType) Indexer {
	switch typ {
	case Btree:
		return NewBTree()
	case ART:
		return NewART()
	default:
		panic("unsupported index type")
	}
}

type Item struct {
	seq uint64
	pos *data.SectorPos
}

// Less 按序号排序，btree.Item 要求实现
func (ai *Item) Less(bi btree.Item) bool {
	return ai.seq < bi.(*Item).seq
}

// Iterator 通用索引迭代器
type Iterator interface {
	// Rewind 回到最小（reverse 时最大）的序号
	Rewind()

	// Seek 根据传入的序号查找到第一个大于（或小于）等于的目标序号，根据从这个序号开始遍历
	Seek(seq uint64)

	// Next 跳转到下一个序号
	Next()

	// Valid 是否有效，即是否已经遍历完了所有的序号，用于退出遍历
	Valid() bool

	// Key 当前遍历位置的序号
	Key() uint64

	// Value 当前遍历位置的扇区信息
	Value() *data.SectorPos

	// Close 释放迭代器持有的快照
	Close()
}

// First 返回最小（reverse 时最大）的扇区
func First(idx Indexer, reverse bool) (uint64, *data.SectorPos, bool) {
	it := idx.Iterator(reverse)
	defer it.Close()
	if !it.Valid() {
		return 0, nil, false
	}
	return it.Key(), it.Value(), true
}

// After 返回序号严格大于 seq 的第一个扇区
func After(idx Indexer, seq uint64) (uint64, *data.SectorPos, bool) {
	it := idx.Iterator(false)
	defer it.Close()
	it.Seek(seq + 1)
	if !it.Valid() {
		return 0, nil, false
	}
	return it.Key(), it.Value(), true
}

// Before 返回序号严格小于 seq 的最后一个扇区
func Before(idx Indexer, seq uint64) (uint64, *data.SectorPos, bool) {
	if seq == 0 {
		return 0, nil, false
	}
	it := idx.Iterator(true)
	defer it.Close()
	it.Seek(seq - 1)
	if !it.Valid() {
		return 0, nil, false
	}
	return it.Key(), it.Value(), true
}
