package fcb_go

import (
	"path/filepath"
	"testing"

	"fcb-go/data"
	"fcb-go/flash"
	"fcb-go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRawSector 绕过 FCB 直接在 flash 上构造一个扇区（写入对齐为 1）
func writeRawSector(t *testing.T, dev flash.Device, sector int, id uint16, payloads ...[]byte) {
	off := uint32(sector) * testSectorSize
	hdr := &data.SectorHeader{Magic: DefaultOptions.Magic, Version: DefaultOptions.Version, ID: id}
	require.NoError(t, dev.WriteAt(off, hdr.Encode()))
	off += data.SectorHeaderSize
	for _, p := range payloads {
		lenBuf, err := data.EncodeLen(len(p))
		require.NoError(t, err)
		var buf []byte
		buf = append(buf, lenBuf...)
		buf = append(buf, p...)
		buf = append(buf, data.EncodeCRC(data.SealCRC(lenBuf, p))...)
		require.NoError(t, dev.WriteAt(off, buf))
		off += uint32(len(buf))
	}
}

func TestMount_Reopen(t *testing.T) {
	dev := newTestDevice()
	f := openTestFCB(t, dev, 4, 0)
	for i := 0; i < 200; i++ {
		appendEntry(t, f, utils.GetTestPayload(i, 128))
	}
	before := f.State()
	want := walkPayloads(t, f, Oldest)
	require.NoError(t, f.Close())

	f = openTestFCB(t, dev, 4, 0)
	assert.Equal(t, before, f.State())
	assert.Equal(t, want, walkPayloads(t, f, Oldest))

	loc := appendEntry(t, f, utils.GetTestPayload(200, 128))
	assert.Equal(t, 1, loc.Sector)
	assert.Equal(t, 76, loc.EntryNum)
}

func TestMount_ReopenAfterRotate(t *testing.T) {
	dev := newTestDevice()
	f := openTestFCB(t, dev, 2, 0)
	fillFCB(t, f, 128)
	require.NoError(t, f.Rotate())
	newest := appendEntry(t, f, []byte("newest"))
	before := f.State()
	require.NoError(t, f.Close())

	f = openTestFCB(t, dev, 2, 0)
	st := f.State()
	assert.Equal(t, before, st)
	assert.Equal(t, 0, st.ActiveSector)
	assert.Equal(t, 1, st.OldestSector)

	last, err := f.GetPrev(nil)
	require.NoError(t, err)
	buf, err := f.ReadEntry(last)
	require.NoError(t, err)
	assert.Equal(t, []byte("newest"), buf)

	// 扇区 id 保存在 flash 上，重新挂载后旧的位置仍然有效
	assert.Equal(t, newest, last)
	buf, err = f.ReadEntry(newest)
	require.NoError(t, err)
	assert.Equal(t, []byte("newest"), buf)
}

func TestMount_BadVersion(t *testing.T) {
	dev := newTestDevice()
	f := openTestFCB(t, dev, 2, 0)
	appendEntry(t, f, []byte("v1"))
	require.NoError(t, f.Close())

	opts := testOptions(t, dev, 2, 0)
	opts.Version = 2
	_, err := Open(opts)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestMount_ForeignSectorZero(t *testing.T) {
	dev := newTestDevice()
	require.NoError(t, dev.WriteAt(0, []byte{0x12, 0x34, 0x56, 0x78, 0x01, 0xff, 0x00, 0x00}))

	_, err := Open(testOptions(t, dev, 2, 0))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestMount_ForeignSectorReused(t *testing.T) {
	dev := newTestDevice()
	f := openTestFCB(t, dev, 4, 0)
	appendEntry(t, f, []byte("first"))
	require.NoError(t, f.Close())

	require.NoError(t, dev.WriteAt(3*testSectorSize, []byte("not an fcb sector")))
	f = openTestFCB(t, dev, 4, 0)
	desc, err := f.SectorInfo(3)
	require.NoError(t, err)
	assert.Equal(t, data.SectorForeign, desc.State)
	assert.Equal(t, [][]byte{[]byte("first")}, walkPayloads(t, f, Oldest))

	counts := fillFCB(t, f, 128)
	assert.Equal(t, 124, counts[3])
	desc, err = f.SectorInfo(3)
	require.NoError(t, err)
	assert.Equal(t, data.SectorActive, desc.State)
}

func TestMount_ForeignOnlyFormats(t *testing.T) {
	dev := newTestDevice()
	require.NoError(t, dev.WriteAt(2*testSectorSize, []byte("garbage")))

	f := openTestFCB(t, dev, 4, 0)
	assert.True(t, f.IsEmpty())
	desc, err := f.SectorInfo(2)
	require.NoError(t, err)
	assert.Equal(t, data.SectorErased, desc.State)
}

func TestMount_IDWrap(t *testing.T) {
	dev := newTestDevice()
	writeRawSector(t, dev, 0, 0xfffe, []byte("a0"), []byte("a1"))
	writeRawSector(t, dev, 1, 0xffff, []byte("b0"))
	writeRawSector(t, dev, 2, 0x0000, []byte("c0"), []byte("c1"))

	for _, typ := range []IndexType{BTree, ART} {
		opts := testOptions(t, dev, 4, 0)
		opts.IndexType = typ
		f, err := Open(opts)
		require.NoError(t, err)

		st := f.State()
		assert.Equal(t, 2, st.ActiveSector)
		assert.Equal(t, uint16(0), st.ActiveID)
		assert.Equal(t, 0, st.OldestSector)
		assert.Equal(t, 2, st.ActiveEntries)
		assert.Equal(t, 1, f.FreeSectorCount())

		got := walkPayloads(t, f, Oldest)
		assert.Equal(t, [][]byte{
			[]byte("a0"), []byte("a1"), []byte("b0"), []byte("c0"), []byte("c1"),
		}, got)

		last, err := f.OffsetLastN(4)
		require.NoError(t, err)
		assert.Equal(t, 0, last.Sector)
		assert.Equal(t, 1, last.EntryNum)
		require.NoError(t, f.Close())
	}

	f := openTestFCB(t, dev, 4, 0)
	require.NoError(t, f.AppendToScratch())
	st := f.State()
	assert.Equal(t, 3, st.ActiveSector)
	assert.Equal(t, uint16(1), st.ActiveID)

	require.NoError(t, f.Rotate())
	assert.Equal(t, 1, f.State().OldestSector)
	assert.Equal(t, [][]byte{[]byte("b0"), []byte("c0"), []byte("c1")}, walkPayloads(t, f, Oldest))
}

func TestMount_TruncatedTail(t *testing.T) {
	dev := newTestDevice()
	f := openTestFCB(t, dev, 2, 0)
	appendEntry(t, f, []byte("kept"))
	end := f.State().NextOffset
	require.NoError(t, f.Close())

	// 长度头指向扇区之外
	require.NoError(t, dev.WriteAt(end, []byte{0x85, 0xff}))

	f = openTestFCB(t, dev, 2, 0)
	st := f.State()
	assert.Equal(t, uint32(testSectorSize), st.NextOffset)
	assert.Equal(t, 1, st.ActiveEntries)
	assert.Equal(t, [][]byte{[]byte("kept")}, walkPayloads(t, f, Oldest))

	loc := appendEntry(t, f, []byte("moved on"))
	assert.Equal(t, 1, loc.Sector)
}

func TestMount_FileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcb.img")
	dev, err := flash.OpenFileDevice(path, 2*testSectorSize, testEraseSize, 1)
	require.NoError(t, err)

	f, err := Open(testOptions(t, dev, 2, 0))
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		appendEntry(t, f, utils.GetTestPayload(i, 128))
	}
	want := walkPayloads(t, f, Oldest)
	require.NoError(t, f.Close())
	require.NoError(t, dev.Close())

	dev, err = flash.OpenFileDevice(path, 2*testSectorSize, testEraseSize, 1)
	require.NoError(t, err)
	defer dev.Close()
	f, err = Open(testOptions(t, dev, 2, 0))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, want, walkPayloads(t, f, Oldest))
	assert.Equal(t, 1, f.State().ActiveSector)
}

func TestMount_BoltDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcb.bolt")
	dev, err := flash.OpenBoltDevice(path, 2*testSectorSize, testEraseSize, 1)
	require.NoError(t, err)

	f, err := Open(testOptions(t, dev, 2, 0))
	require.NoError(t, err)
	counts := fillFCB(t, f, 128)
	require.NoError(t, f.Rotate())
	require.NoError(t, f.Close())
	require.NoError(t, dev.Close())

	dev, err = flash.OpenBoltDevice(path, 2*testSectorSize, testEraseSize, 1)
	require.NoError(t, err)
	defer dev.Close()
	f, err = Open(testOptions(t, dev, 2, 0))
	require.NoError(t, err)
	defer f.Close()

	st := f.State()
	assert.Equal(t, 1, st.OldestSector)
	assert.Equal(t, 1, st.ActiveSector)
	assert.Len(t, walkPayloads(t, f, Oldest), counts[1])
}

func TestMount_AlignedDevice(t *testing.T) {
	dev := flash.NewMemDevice(2*testSectorSize, testEraseSize, 8)
	f := openTestFCB(t, dev, 2, 0)

	loc := appendEntry(t, f, []byte("abc"))
	assert.Equal(t, uint32(8), loc.ElemOff)
	assert.Equal(t, uint32(16), loc.DataOff)
	assert.Equal(t, uint32(32), f.State().NextOffset)
	appendEntry(t, f, utils.GetTestPayload(1, 200))
	require.NoError(t, f.Close())

	f = openTestFCB(t, dev, 2, 0)
	assert.Equal(t, [][]byte{[]byte("abc"), utils.GetTestPayload(1, 200)}, walkPayloads(t, f, Oldest))
}
