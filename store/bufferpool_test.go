package store

import "testing"

func TestBufferPoolGetIsReset(t *testing.T) {
	p := NewBufferPool(4)
	buf := p.Get()
	buf.WriteString("leftover")
	p.Put(buf)

	buf2 := p.Get()
	if buf2.Len() != 0 {
		t.Fatalf("buffer from pool should be reset, got len %d", buf2.Len())
	}
}

func TestBufferPoolDropsOversizedBuffers(t *testing.T) {
	p := NewBufferPool(1)
	buf := p.Get()
	buf.Grow(9 << 20) // over the 8MiB cap
	p.Put(buf)         // should be silently dropped, not pooled

	// Can't directly observe whether it was pooled since sync.Pool may
	// still return it or a fresh one; Put must not panic either way.
}
