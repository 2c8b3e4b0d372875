package storage

import (
	"bytes"

	"github.com/book-expert/narration-service/internal/core"
)

// progressReader wraps an upload payload and reports consumption as a
// monotonic percentage. The store reads the payload in chunks, so progress
// advances as the transfer proceeds rather than jumping straight to 100.
type progressReader struct {
	reader      *bytes.Reader
	total       int
	read        int
	lastPercent int
	onProgress  core.ProgressFunc
}

func newProgressReader(data []byte, onProgress core.ProgressFunc) *progressReader {
	return &progressReader{
		reader:      bytes.NewReader(data),
		total:       len(data),
		read:        0,
		lastPercent: -1,
		onProgress:  onProgress,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	p.read += n
	p.report()

	return n, err
}

// finish guarantees a terminal 100% callback even for empty payloads.
func (p *progressReader) finish() {
	p.read = p.total
	p.report()
}

func (p *progressReader) report() {
	if p.onProgress == nil {
		return
	}

	percent := 100
	if p.total > 0 {
		percent = p.read * 100 / p.total
	}

	if percent > p.lastPercent {
		p.lastPercent = percent
		p.onProgress(percent)
	}
}
