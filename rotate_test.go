package fcb_go

import (
	"testing"

	"fcb-go/data"
	"fcb-go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFCB_Rotate(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 2, 0)
	counts := fillFCB(t, f, 128)

	require.NoError(t, f.Rotate())

	n, size, err := f.AreaInfo(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, size)

	n, size, err = f.AreaInfo(1)
	require.NoError(t, err)
	assert.Equal(t, counts[1], n)
	assert.Equal(t, counts[1]*128, size)

	n, _, err = f.AreaInfo(Oldest)
	require.NoError(t, err)
	assert.Equal(t, counts[1], n)

	st := f.State()
	assert.Equal(t, 1, st.OldestSector)
	assert.Equal(t, 1, st.ActiveSector)

	// 轮转后新条目写入被擦除的扇区
	loc := appendEntry(t, f, utils.GetTestPayload(1000, 128))
	assert.Equal(t, 0, loc.Sector)
	assert.Equal(t, uint16(2), f.State().ActiveID)

	got := walkPayloads(t, f, 0)
	require.Len(t, got, 1)
	assert.Equal(t, utils.GetTestPayload(1000, 128), got[0])
	assert.Len(t, walkPayloads(t, f, 1), counts[1])

	all := walkPayloads(t, f, Oldest)
	require.Len(t, all, counts[1]+1)
	assert.Equal(t, utils.GetTestPayload(1000, 128), all[len(all)-1])
}

func TestFCB_RotateEmpty(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 2, 0)

	before := f.State()
	require.NoError(t, f.Rotate())
	require.NoError(t, f.Rotate())
	assert.Equal(t, before, f.State())
	assert.True(t, f.IsEmpty())
}

func TestFCB_RotateActive(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 3, 0)
	appendEntry(t, f, []byte("only"))

	require.NoError(t, f.Rotate())
	st := f.State()
	assert.Equal(t, 1, st.ActiveSector)
	assert.Equal(t, 1, st.OldestSector)
	assert.Equal(t, uint16(1), st.ActiveID)
	assert.True(t, f.IsEmpty())

	// 已经为空，不会再分配新的 id
	require.NoError(t, f.Rotate())
	assert.Equal(t, st, f.State())
}

func TestFCB_Clear(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 4, 0)
	for i := 0; i < 300; i++ {
		appendEntry(t, f, utils.GetTestPayload(i, 128))
	}
	require.NoError(t, f.Clear())
	assert.True(t, f.IsEmpty())
	assert.Empty(t, walkPayloads(t, f, Oldest))
	assert.Equal(t, 3, f.FreeSectorCount())

	for i := 0; i < f.SectorCount(); i++ {
		desc, err := f.SectorInfo(i)
		require.NoError(t, err)
		if i == f.State().ActiveSector {
			assert.Equal(t, data.SectorActive, desc.State)
		} else {
			assert.Equal(t, data.SectorErased, desc.State)
		}
	}

	appendEntry(t, f, []byte("after clear"))
	assert.Equal(t, [][]byte{[]byte("after clear")}, walkPayloads(t, f, Oldest))
}

func TestFCB_Scratch(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 4, 1)

	counts := fillFCB(t, f, 128)
	assert.Equal(t, map[int]int{0: 124, 1: 124, 2: 124}, counts)
	n, _, err := f.AreaInfo(3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.AppendToScratch())
	assert.Equal(t, 3, f.State().ActiveSector)
	assert.ErrorIs(t, f.AppendToScratch(), ErrNoSpace)

	loc := appendEntry(t, f, utils.GetTestPayload(7, 128))
	assert.Equal(t, 3, loc.Sector)
	more := fillFCB(t, f, 128)
	assert.Equal(t, map[int]int{3: 123}, more)

	require.NoError(t, f.Rotate())
	assert.Equal(t, 1, f.State().OldestSector)
	// 轮转后保留的扇区仍然不能被普通写入占用
	_, err = f.Append(128)
	assert.ErrorIs(t, err, ErrNoSpace)
	require.NoError(t, f.AppendToScratch())
	assert.Equal(t, 0, f.State().ActiveSector)
}

func TestFCB_OffsetLastN(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 2, 0)

	_, err := f.OffsetLastN(0)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	for i := 0; i < 10; i++ {
		appendEntry(t, f, utils.GetTestKey(i))
	}

	tests := []struct {
		n    int
		want int
	}{
		{1, 9},
		{3, 7},
		{10, 0},
		{11, 0},
		{100, 0},
	}
	for _, tt := range tests {
		loc, err := f.OffsetLastN(tt.n)
		require.NoError(t, err)
		buf, err := f.ReadEntry(loc)
		require.NoError(t, err)
		assert.Equal(t, utils.GetTestKey(tt.want), buf, "last %d", tt.n)
	}
}

func TestFCB_OffsetLastNAcrossSectors(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 2, 0)
	fillFCB(t, f, 128)

	loc, err := f.OffsetLastN(125)
	require.NoError(t, err)
	assert.Equal(t, 0, loc.Sector)
	assert.Equal(t, 123, loc.EntryNum)

	loc, err = f.OffsetLastN(124)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.Sector)
	assert.Equal(t, 0, loc.EntryNum)
}

func TestFCB_AreaInfo(t *testing.T) {
	f := openTestFCB(t, newTestDevice(), 2, 0)

	n, size, err := f.AreaInfo(Oldest)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, size)

	appendEntry(t, f, make([]byte, 10))
	appendEntry(t, f, make([]byte, 200))
	n, size, err = f.AreaInfo(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 210, size)

	n, _, err = f.AreaInfo(1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, _, err = f.AreaInfo(2)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}
