package fcb_go

import (
	"sync"

	"fcb-go/data"
	"fcb-go/index"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// 序号的起点，保证由 16 位 id 推算出的序号不会下溢
const seqBase = 1 << 16

// Oldest 作为扇区参数时表示当前最旧的扇区
const Oldest = -1

// FCB flash 环形缓冲区实例
type FCB struct {
	options Options
	mu      *sync.RWMutex
	log     logrus.FieldLogger
	metrics *fcbMetrics

	firsts        []int  // 每个 range 第一个扇区的逻辑下标
	sectorCount   int    // 逻辑扇区总数
	align         uint32 // 所有分区中最大的写入对齐
	maxSectorSize uint32

	index   index.Indexer // 序号 -> 正在使用的扇区
	seqs    []uint64      // 每个扇区的序号，0 表示已擦除
	entries []int         // 每个扇区已封存的条目数
	foreign []bool        // 挂载时发现的外来扇区

	oldest    int    // 最旧的扇区
	active    int    // 当前活跃扇区，可以用于写入
	activeID  uint16 // 活跃扇区的 id
	activeSeq uint64 // 活跃扇区的序号
	writeOff  uint32 // 活跃扇区中下一个可写的偏移
	reserved  int    // 活跃扇区中已预留的条目数，包括尚未封存的
}

// State 运行时状态快照
type State struct {
	ActiveSector  int
	ActiveID      uint16
	OldestSector  int
	NextOffset    uint32
	ActiveEntries int
}

// Open 扫描所有扇区并恢复缓冲区状态
func Open(options Options) (*FCB, error) {
	// 校验
	if err := checkOptions(options); err != nil {
		return nil, err
	}
	if options.Name == "" {
		options.Name = uuid.NewString()
	}
	if options.Logger == nil {
		options.Logger = logrus.StandardLogger()
	}

	f := &FCB{
		options: options,
		mu:      &sync.RWMutex{},
		log:     options.Logger.WithField("fcb", options.Name),
		metrics: newMetrics(options.Name),
		index:   index.NewIndexer(index.IndexType(options.IndexType)),
	}
	f.initRanges()
	f.seqs = make([]uint64, f.sectorCount)
	f.entries = make([]int, f.sectorCount)
	f.foreign = make([]bool, f.sectorCount)

	if options.Registerer != nil {
		if err := f.metrics.register(options.Registerer); err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
	}

	f.mu.Lock()
	err := f.mount()
	f.mu.Unlock()
	if err != nil {
		f.metrics.unregister()
		return nil, err
	}
	return f, nil
}

// Close 注销监控指标，flash 设备由调用方关闭
func (f *FCB) Close() error {
	f.metrics.unregister()
	return nil
}

// IsEmpty 缓冲区中是否没有任何条目
func (f *FCB) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isEmpty()
}

func (f *FCB) isEmpty() bool {
	return f.active == f.oldest && f.writeOff == f.firstElemOff()
}

// TotalSize 所有扇区的字节数之和
func (f *FCB) TotalSize() uint64 {
	var total uint64
	for _, r := range f.options.Ranges {
		total += uint64(r.SectorSize) * uint64(r.SectorCount)
	}
	return total
}

// SectorCount 逻辑扇区数量
func (f *FCB) SectorCount() int {
	return f.sectorCount
}

// State 返回当前状态
func (f *FCB) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return State{
		ActiveSector:  f.active,
		ActiveID:      f.activeID,
		OldestSector:  f.oldest,
		NextOffset:    f.writeOff,
		ActiveEntries: f.entries[f.active],
	}
}

// FreeSectorCount 活跃扇区与最旧扇区之间的空闲扇区数
func (f *FCB) FreeSectorCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.freeSectorCount()
}

func (f *FCB) freeSectorCount() int {
	s := f.active
	i := 0
	for ; i < f.sectorCount; i++ {
		s = f.nextSector(s)
		if s == f.oldest {
			break
		}
	}
	return i
}

func (f *FCB) lenInFlash(n int) uint32 {
	return alignUp(uint32(n), f.align)
}

func (f *FCB) firstElemOff() uint32 {
	return f.lenInFlash(data.SectorHeaderSize)
}

// 长度头、负载、crc 各自对齐后的总长度
func (f *FCB) entrySize(n int) uint32 {
	return f.lenInFlash(data.LenSize(n)) + f.lenInFlash(n) + f.lenInFlash(data.CRCSize)
}

func (f *FCB) nextElemOff(loc data.EntryLocation) uint32 {
	return loc.DataOff + f.lenInFlash(loc.DataLen) + f.lenInFlash(data.CRCSize)
}

// 校验调用方传入的位置，返回所在扇区
func (f *FCB) checkLocation(loc data.EntryLocation) (sector, error) {
	if err := loc.Validate(); err != nil {
		return sector{}, errors.Wrap(ErrInvalidArgs, err.Error())
	}
	sec, err := f.lookupSector(loc.Sector)
	if err != nil {
		return sector{}, err
	}
	id, ok := f.sectorID(loc.Sector)
	if !ok {
		return sector{}, errors.Wrapf(ErrInvalidArgs, "sector %d has been erased", loc.Sector)
	}
	if id != loc.SectorID {
		return sector{}, errors.Wrapf(ErrInvalidArgs, "sector %d reused with id %d, location %s", loc.Sector, id, loc)
	}
	if loc.ElemOff < f.firstElemOff() || f.nextElemOff(loc) > sec.size {
		return sector{}, errors.Wrapf(ErrInvalidArgs, "location %s outside sector", loc)
	}
	return sec, nil
}

// sectorID 返回正在使用的扇区的 id，扇区已擦除时返回 false
func (f *FCB) sectorID(idx int) (uint16, bool) {
	seq := f.seqs[idx]
	if seq == 0 {
		return 0, false
	}
	pos := f.index.Get(seq)
	if pos == nil {
		return 0, false
	}
	return pos.ID, true
}

func checkOptions(options Options) error {
	if options.Magic == 0xffffffff {
		return errors.Wrap(ErrInvalidArgs, "magic equals erased flash")
	}
	total, err := checkRanges(options.Ranges)
	if err != nil {
		return err
	}
	if options.ScratchCount < 0 || total-options.ScratchCount < 1 {
		return errors.Wrapf(ErrInvalidArgs, "scratch count %d with %d sectors", options.ScratchCount, total)
	}
	if options.IndexType != BTree && options.IndexType != ART {
		return errors.Wrapf(ErrInvalidArgs, "unsupported index type %d", options.IndexType)
	}
	return nil
}
