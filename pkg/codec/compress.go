package codec

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// compressor produces gzip streams with an empty header, so equal input
// always gives equal output.
type compressor struct {
	level   int
	writers sync.Pool
}

func newCompressor(level int) *compressor {
	c := &compressor{level: level}
	c.writers.New = func() any {
		// level is validated by Config.Validate
		w, _ := gzip.NewWriterLevel(io.Discard, level)
		return w
	}
	return c
}

func (c *compressor) compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(p)/2 + 64)
	w := c.writers.Get().(*gzip.Writer)
	defer c.writers.Put(w)
	w.Reset(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

func decompress(p []byte) ([]byte, error) {
	br := bytes.NewReader(p)
	r, err := gzip.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	r.Multistream(false)
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// a single member must span the whole input
	if br.Len() != 0 {
		return nil, errTrailingData
	}
	return out, nil
}
