package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLen(t *testing.T) {
	for n := 0; n <= MaxLen; n++ {
		buf, err := EncodeLen(n)
		require.NoError(t, err)
		if n < 128 {
			require.Len(t, buf, 1)
		} else {
			require.Len(t, buf, 2)
		}
		require.Equal(t, LenSize(n), len(buf))

		// 补上擦除值，模拟从 flash 读出两个字节
		padded := append(append([]byte{}, buf...), 0xff)
		got, cnt, err := DecodeLen(padded)
		require.NoError(t, err)
		require.Equal(t, n, got)
		require.Equal(t, len(buf), cnt)
	}
}

func TestEncodeLenTooLarge(t *testing.T) {
	_, err := EncodeLen(MaxLen + 1)
	assert.ErrorIs(t, err, ErrInvalidLen)
	_, err = EncodeLen(-1)
	assert.ErrorIs(t, err, ErrInvalidLen)
}

func TestDecodeLenErased(t *testing.T) {
	_, _, err := DecodeLen([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrNoLen)
	_, _, err = DecodeLen([]byte{0x81})
	assert.ErrorIs(t, err, ErrNoLen)
	_, _, err = DecodeLen(nil)
	assert.ErrorIs(t, err, ErrNoLen)
}

func TestEntryCRC(t *testing.T) {
	// CRC-16/XMODEM check value
	assert.Equal(t, uint16(0x31c3), EntryCRC([]byte("123456789")))
	assert.Equal(t, EntryCRC([]byte("1234"), []byte("56789")), EntryCRC([]byte("123456789")))

	hdr, err := EncodeLen(5)
	require.NoError(t, err)
	payload := []byte("hello")
	stored := EncodeCRC(EntryCRC(hdr, payload))
	assert.True(t, VerifyCRC(stored, hdr, payload))
	assert.False(t, VerifyCRC(stored, hdr, []byte("hellO")))
	assert.False(t, VerifyCRC([]byte{0xff, 0xff}, hdr, payload))
	assert.False(t, VerifyCRC(nil, hdr, payload))
}

func TestSealCRC(t *testing.T) {
	hdr, err := EncodeLen(4)
	require.NoError(t, err)

	// 找到一个 crc 恰好是 0xffff 的 4 字节负载
	var payload []byte
	for i := uint32(0); i < 1<<24; i++ {
		p := []byte{byte(i), byte(i >> 8), byte(i >> 16), 0x5a}
		if EntryCRC(hdr, p) == 0xffff {
			payload = p
			break
		}
	}
	require.NotNil(t, payload)

	assert.Equal(t, uint16(0xfffe), SealCRC(hdr, payload))
	assert.False(t, VerifyCRC([]byte{0xff, 0xff}, hdr, payload))
	assert.True(t, VerifyCRC(EncodeCRC(SealCRC(hdr, payload)), hdr, payload))

	other := []byte("hello")
	assert.Equal(t, EntryCRC(hdr, other), SealCRC(hdr, other))
}
