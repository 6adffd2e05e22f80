package codec

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/grafana/linemap/pkg/linemap"
)

func testLineMap(symbols, lines int) *linemap.LineMap {
	m := linemap.New()
	for i := 0; i < symbols; i++ {
		token := uint64(0x06000001 + i)
		m.Symbols[token] = linemap.Symbol{Token: token, Name: fmt.Sprintf("Method%d", i), Address: uint64(i * 40)}
	}
	files := []string{`...\src\app\Program.cs`, `...\src\lib\Util.cs`, "main.go"}
	m.Names = linemap.NewNameTable(files...)
	for i := 0; i < lines; i++ {
		m.AddressToLine = append(m.AddressToLine, linemap.LineEntry{
			Address:    uint64(i*7 + i%3),
			Line:       uint32(10 + i),
			FileIndex:  uint32(i % len(files)),
			ObjectName: fmt.Sprintf("App.Type%d", i%4),
		})
	}
	return m
}

func newTestCodec(t testing.TB, mutate func(*Config)) *Codec {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

var equateEmpty = cmpopts.EquateEmpty()

func TestCodec_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    *linemap.LineMap
		cfg  func(*Config)
	}{
		{name: "empty", m: linemap.New()},
		{name: "symbols only", m: func() *linemap.LineMap {
			m := testLineMap(3, 0)
			m.Names = linemap.NameTable{}
			return m
		}()},
		{name: "small", m: testLineMap(4, 20)},
		{name: "large", m: testLineMap(500, 20000)},
		{name: "unencrypted", m: testLineMap(10, 100), cfg: func(c *Config) { c.Encryption = EncryptionNone }},
		{name: "best compression", m: testLineMap(10, 100), cfg: func(c *Config) { c.CompressionLevel = 9 }},
		{name: "huge values", m: func() *linemap.LineMap {
			m := linemap.New()
			m.Symbols[^uint64(0)] = linemap.Symbol{Token: ^uint64(0), Address: ^uint64(0) - 1, Name: "max"}
			m.Names = linemap.NewNameTable("")
			m.AddressToLine = []linemap.LineEntry{{Address: 0, Line: 1}, {Address: ^uint64(0), Line: ^uint32(0)}}
			return m
		}()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCodec(t, tc.cfg)
			b, err := c.Encode(tc.m)
			require.NoError(t, err)
			got, err := c.Decode(b)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.m, got, equateEmpty); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodec_Deterministic(t *testing.T) {
	c := newTestCodec(t, nil)
	a, err := c.Encode(testLineMap(50, 500))
	require.NoError(t, err)
	b, err := c.Encode(testLineMap(50, 500))
	require.NoError(t, err)
	require.Equal(t, a, b)

	other, err := newTestCodec(t, nil).Encode(testLineMap(50, 500))
	require.NoError(t, err)
	require.Equal(t, a, other)
}

func TestCodec_EncryptedLayout(t *testing.T) {
	b, err := newTestCodec(t, nil).Encode(testLineMap(5, 50))
	require.NoError(t, err)
	require.Zero(t, len(b)%blockSize)

	plain, err := newTestCodec(t, func(c *Config) { c.Encryption = EncryptionNone }).Encode(testLineMap(5, 50))
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f, 0x8b}, plain[:2])
	require.False(t, bytes.Contains(b, plain[:10]))
}

func TestCodec_DetectsEverySingleByteCorruption(t *testing.T) {
	c := newTestCodec(t, nil)
	b, err := c.Encode(testLineMap(8, 64))
	require.NoError(t, err)

	for i := range b {
		corrupted := bytes.Clone(b)
		corrupted[i] ^= 0x5a
		m, err := c.Decode(corrupted)
		require.Nil(t, m, "byte %d", i)
		var f *DecodeFailure
		require.ErrorAs(t, err, &f, "byte %d", i)
	}
}

func TestCodec_DecodeFailureStages(t *testing.T) {
	aes := newTestCodec(t, nil)
	plain := newTestCodec(t, func(c *Config) { c.Encryption = EncryptionNone })

	valid, err := plain.compressor.compress(serialize(testLineMap(2, 4)))
	require.NoError(t, err)
	_, err = plain.Decode(valid)
	require.NoError(t, err)

	otherKey := newTestCodec(t, func(c *Config) {
		c.Key = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	})
	foreign, err := otherKey.Encode(testLineMap(2, 4))
	require.NoError(t, err)

	notAMap, err := plain.compressor.compress([]byte("definitely not a line map payload"))
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		codec *Codec
		input []byte
		stage Stage
	}{
		{name: "empty", codec: aes, input: nil, stage: Decrypt},
		{name: "not block aligned", codec: aes, input: make([]byte, 17), stage: Decrypt},
		{name: "wrong key", codec: aes, input: foreign, stage: Decrypt},
		{name: "not gzip", codec: plain, input: []byte("hello"), stage: Decompress},
		{name: "truncated gzip", codec: plain, input: valid[:len(valid)-4], stage: Decompress},
		{name: "trailing gzip data", codec: plain, input: append(bytes.Clone(valid), 0), stage: Decompress},
		{name: "bad payload", codec: plain, input: notAMap, stage: Deserialize},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := tc.codec.Decode(tc.input)
			require.Nil(t, m)
			stage, ok := FailureStage(err)
			require.True(t, ok, "got %v", err)
			if tc.name == "wrong key" {
				// a foreign key almost always breaks the padding, otherwise gzip
				require.Contains(t, []Stage{Decrypt, Decompress}, stage)
				return
			}
			require.Equal(t, tc.stage, stage)
		})
	}
}

func TestCodec_EncodeRejectsInvalidMap(t *testing.T) {
	c := newTestCodec(t, nil)
	_, err := c.Encode(nil)
	require.Error(t, err)

	m := testLineMap(1, 3)
	m.AddressToLine[2].FileIndex = 99
	_, err = c.Encode(m)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "defaults", mutate: func(*Config) {}, valid: true},
		{name: "none ignores key", mutate: func(c *Config) { c.Encryption = EncryptionNone; c.Key = "zz" }, valid: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Encryption = "rot13" }},
		{name: "short key", mutate: func(c *Config) { c.Key = "00112233" }},
		{name: "bad hex iv", mutate: func(c *Config) { c.IV = "not hex" }},
		{name: "level too high", mutate: func(c *Config) { c.CompressionLevel = 10 }},
		{name: "level too low", mutate: func(c *Config) { c.CompressionLevel = -3 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			_, err = New(cfg)
			require.Error(t, err)
		})
	}
}
