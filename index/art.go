package index

import (
	"encoding/binary"
	"sort"
	"sync"

	"fcb-go/data"

	goart "github.com/plar/go-adaptive-radix-tree"
)

// AdaptiveRadixTree 自适应基数树索引
// 主要封装了 https://github.com/plar/go-adaptive-radix-tree 库
// 序号按大端编码，字典序与数值序一致
type AdaptiveRadixTree struct {
	tree goart.Tree
	lock *sync.RWMutex
}

// NewART 初始化自适应基数树索引
func NewART() *AdaptiveRadixTree {
	return &AdaptiveRadixTree{
		tree: goart.New(),
		lock: new(sync.RWMutex),
	}
}

func encodeSeq(seq uint64) goart.Key {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (art *AdaptiveRadixTree) Put(seq uint64, pos *data.SectorPos) bool {
	art.lock.Lock()
	art.tree.Insert(encodeSeq(seq), pos)
	art.lock.Unlock()
	return true
}

func (art *AdaptiveRadixTree) Get(seq uint64) *data.SectorPos {
	art.lock.RLock()
	defer art.lock.RUnlock()
	value, found := art.tree.Search(encodeSeq(seq))
	if !found {
		return nil
	}
	return value.(*data.SectorPos)
}

func (art *AdaptiveRadixTree) Delete(seq uint64) bool {
	art.lock.Lock()
	_, deleted := art.tree.Delete(encodeSeq(seq))
	art.lock.Unlock()
	return deleted
}

func (art *AdaptiveRadixTree) Size() int {
	art.lock.RLock()
	size := art.tree.Size()
	art.lock.RUnlock()
	return size
}

func (art *AdaptiveRadixTree) Iterator(reverse bool) Iterator {
	art.lock.RLock()
	defer art.lock.RUnlock()
	return newARTIterator(art.tree, reverse)
}

// Art 索引迭代器
type artIterator struct {
	currIndex int     // 当前遍历的下标位置
	reverse   bool    // 是否是反向遍历
	values    []*Item // 序号+扇区信息
}

func newARTIterator(tree goart.Tree, reverse bool) *artIterator {
	var idx int
	if reverse {
		idx = tree.Size() - 1
	}
	values := make([]*Item, tree.Size())
	saveValues := func(node goart.Node) bool {
		item := &Item{
			seq: binary.BigEndian.Uint64(node.Key()),
			pos: node.Value().(*data.SectorPos),
		}
		values[idx] = item
		if reverse {
			idx--
		} else {
			idx++
		}
		return true
	}

	tree.ForEach(saveValues)

	return &artIterator{
		currIndex: 0,
		reverse:   reverse,
		values:    values,
	}
}

func (ai *artIterator) Rewind() {
	ai.currIndex = 0
}

func (ai *artIterator) Seek(seq uint64) {
	if ai.reverse {
		ai.currIndex = sort.Search(len(ai.values), func(i int) bool {
			return ai.values[i].seq <= seq
		})
	} else {
		ai.currIndex = sort.Search(len(ai.values), func(i int) bool {
			return ai.values[i].seq >= seq
		})
	}
}

func (ai *artIterator) Next() {
	ai.currIndex += 1
}

func (ai *artIterator) Valid() bool {
	return ai.currIndex < len(ai.values)
}

func (ai *artIterator) Key() uint64 {
	return ai.values[ai.currIndex].seq
}

func (ai *artIterator) Value() *data.SectorPos {
	return ai.values[ai.currIndex].pos
}

func (ai *artIterator) Close() {
	ai.values = nil
}
