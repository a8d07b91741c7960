package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectorHeader(t *testing.T) {
	h := &SectorHeader{Magic: 0xdeadbeef, Version: 2, ID: 0x1234}
	buf := h.Encode()
	require.Len(t, buf, SectorHeaderSize)

	got, err := DecodeSectorHeader(buf, 0xdeadbeef, 2)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = DecodeSectorHeader(buf, 0xcafebabe, 2)
	assert.ErrorIs(t, err, ErrHeaderMagic)
	got, err = DecodeSectorHeader(buf, 0xdeadbeef, 1)
	assert.ErrorIs(t, err, ErrHeaderVersion)
	assert.Equal(t, uint16(0x1234), got.ID)

	_, err = DecodeSectorHeader(buf[:4], 0xdeadbeef, 2)
	assert.Error(t, err)
}

func TestIDNewer(t *testing.T) {
	assert.True(t, IDNewer(1, 0))
	assert.False(t, IDNewer(0, 1))
	assert.False(t, IDNewer(7, 7))
	assert.True(t, IDNewer(0, 0xffff))
	assert.True(t, IDNewer(3, 0xfffe))
	assert.False(t, IDNewer(0xfffe, 3))
}

func TestEntryLocation(t *testing.T) {
	loc, err := NewEntryLocation(1, 7, 8, 9, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.Sector)
	assert.Equal(t, uint16(7), loc.SectorID)
	assert.Equal(t, "sector=1 id=7 off=0x8 len=10 #0", loc.String())

	_, err = NewEntryLocation(-1, 0, 8, 9, 10)
	assert.ErrorIs(t, err, ErrInvalidLocation)
	_, err = NewEntryLocation(0, 0, 8, 8, 10)
	assert.ErrorIs(t, err, ErrInvalidLocation)
	_, err = NewEntryLocation(0, 0, 8, 9, 200)
	assert.ErrorIs(t, err, ErrInvalidLocation)
	_, err = NewEntryLocation(0, 0, 8, 10, MaxLen+1)
	assert.ErrorIs(t, err, ErrInvalidLocation)
}
