package codec

import (
	"encoding/binary"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	"github.com/grafana/linemap/pkg/linemap"
)

// reseal recomputes the trailing checksum after a test tampers with a payload.
func reseal(b []byte) []byte {
	body := b[:len(b)-checksumSize]
	return binary.LittleEndian.AppendUint64(body[:len(body):len(body)], xxhash.Sum64(body))
}

func TestSerialize_Header(t *testing.T) {
	b := serialize(linemap.New())
	require.Equal(t, "LMAP", string(b[:4]))
	require.Equal(t, uint16(formatVersion), binary.LittleEndian.Uint16(b[4:6]))
	// three empty sections and the checksum
	require.Len(t, b, headerSize+3+checksumSize)
}

func TestDeserialize_Rejects(t *testing.T) {
	valid := serialize(testLineMap(3, 10))
	_, err := deserialize(valid)
	require.NoError(t, err)

	withNames := func(names ...string) []byte {
		m := linemap.New()
		m.Names = linemap.NewNameTable(names...)
		b := serialize(m)
		return b
	}

	for _, tc := range []struct {
		name  string
		input func() []byte
		err   error
	}{
		{name: "short", input: func() []byte { return valid[:5] }, err: errTruncated},
		{name: "magic", input: func() []byte {
			b := append([]byte(nil), valid...)
			b[0] = 'X'
			return reseal(b)
		}, err: errBadMagic},
		{name: "checksum", input: func() []byte {
			b := append([]byte(nil), valid...)
			b[len(b)-1] ^= 1
			return b
		}, err: errChecksum},
		{name: "version", input: func() []byte {
			b := append([]byte(nil), valid...)
			b[4] = 2
			return reseal(b)
		}},
		{name: "truncated body", input: func() []byte {
			b := append([]byte(nil), valid[:len(valid)-checksumSize-3]...)
			return reseal(append(b, make([]byte, checksumSize)...))
		}},
		{name: "trailing bytes", input: func() []byte {
			b := append([]byte(nil), valid[:len(valid)-checksumSize]...)
			b = append(b, 0)
			return reseal(append(b, make([]byte, checksumSize)...))
		}, err: errTrailingData},
		{name: "duplicate names", input: func() []byte {
			b := withNames("a", "b")
			// rewrite the second name in place
			b[len(b)-checksumSize-1] = 'a'
			return reseal(b)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := deserialize(tc.input())
			require.Nil(t, m)
			require.Error(t, err)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}
