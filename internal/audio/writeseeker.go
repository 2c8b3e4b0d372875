package audio

import (
	"errors"
	"io"
)

// ErrInvalidSeek indicates a seek before the start of the buffer.
var ErrInvalidSeek = errors.New("seek before start of buffer")

// bufferWriteSeeker is an in-memory io.WriteSeeker. The wav encoder needs to
// seek back and patch the RIFF header sizes after writing sample data, which
// bytes.Buffer cannot do.
type bufferWriteSeeker struct {
	data []byte
	pos  int
}

func newBufferWriteSeeker() *bufferWriteSeeker {
	return &bufferWriteSeeker{data: nil, pos: 0}
}

func (b *bufferWriteSeeker) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}

	copy(b.data[b.pos:end], p)
	b.pos = end

	return len(p), nil
}

func (b *bufferWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(b.pos) + offset
	case io.SeekEnd:
		target = int64(len(b.data)) + offset
	}

	if target < 0 {
		return 0, ErrInvalidSeek
	}

	b.pos = int(target)

	return target, nil
}

// Bytes returns the written buffer.
func (b *bufferWriteSeeker) Bytes() []byte {
	return b.data
}
