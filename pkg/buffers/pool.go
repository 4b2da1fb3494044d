package buffers

import (
	"sync"
)

// BufferPool hands out fixed-size candidate image buffers so search workers
// do not allocate one per trial.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a pool of buffers of exactly size bytes.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
		size: size,
	}
}

// Size is the length of every buffer returned by Get.
func (p *BufferPool) Size() int { return p.size }

// Get retrieves a buffer from the pool. Its content is unspecified.
func (p *BufferPool) Get() []byte {
	buffer := *(p.pool.Get().(*[]byte))
	if cap(buffer) < p.size {
		buffer = make([]byte, p.size)
	}
	return buffer[:p.size]
}

// Put returns a buffer to the pool. Undersized buffers are dropped.
func (p *BufferPool) Put(buffer []byte) {
	if buffer == nil || cap(buffer) < p.size {
		return
	}
	buffer = buffer[:p.size]
	p.pool.Put(&buffer)
}
