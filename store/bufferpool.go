package store

import (
	"bytes"
	"sync"
)

// BufferPool recycles *bytes.Buffer instances for use as staging scratch
// space. The number of pooled buffers is not bounded (NewBufferPool's size
// argument is unused); Put drops any buffer whose capacity exceeds 8 MiB.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() > 8<<20 {
		return // don't pool pathologically large buffers
	}
	p.pool.Put(buf)
}
