package common

import (
	"fmt"
	"sync"
)

// BlockRing is a fixed-capacity ring of equally sized records (blocks)
// Each Push overwrites the oldest block once the ring is full
// Safe for one writer and any number of readers: a block becomes visible to
// readers only after it has been completely copied in
type BlockRing[T any] struct {
	mu        sync.RWMutex
	data      []T
	capacity  int
	blockSize int
	head      int // slot of the next write
	count     int
	version   uint64
}

// NewBlockRing creates a ring holding capacity blocks of blockSize elements
func NewBlockRing[T any](capacity, blockSize int) (*BlockRing[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be positive, got %d", capacity)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("ring block size must be positive, got %d", blockSize)
	}

	return &BlockRing[T]{
		data:      make([]T, capacity*blockSize),
		capacity:  capacity,
		blockSize: blockSize,
	}, nil
}

// Push copies block into the ring as the newest record
func (r *BlockRing[T]) Push(block []T) error {
	if len(block) != r.blockSize {
		return fmt.Errorf("block size (%d) doesn't match ring block size (%d)", len(block), r.blockSize)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.head * r.blockSize
	copy(r.data[start:start+r.blockSize], block)

	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
	r.version++

	return nil
}

// Snapshot returns copies of the stored blocks, oldest first
func (r *BlockRing[T]) Snapshot() [][]T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([][]T, r.count)
	oldest := (r.head - r.count + r.capacity) % r.capacity
	for i := range r.count {
		slot := (oldest + i) % r.capacity
		block := make([]T, r.blockSize)
		copy(block, r.data[slot*r.blockSize:(slot+1)*r.blockSize])
		out[i] = block
	}

	return out
}

// Latest copies the newest block into dst and reports whether one exists
func (r *BlockRing[T]) Latest(dst []T) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return false
	}

	slot := (r.head - 1 + r.capacity) % r.capacity
	copy(dst, r.data[slot*r.blockSize:(slot+1)*r.blockSize])
	return true
}

// Len returns the number of stored blocks
func (r *BlockRing[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity in blocks
func (r *BlockRing[T]) Cap() int {
	return r.capacity
}

// BlockSize returns the number of elements per block
func (r *BlockRing[T]) BlockSize() int {
	return r.blockSize
}

// Version returns the total number of pushes so far
func (r *BlockRing[T]) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Clear empties the ring without releasing its storage
func (r *BlockRing[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
	clear(r.data)
}

// SampleRing keeps the most recent PCM samples of a stream
// Written from an audio callback, read from the analysis tick
type SampleRing struct {
	mu       sync.Mutex
	buffer   []float64
	size     int
	writePos int
	count    int
	total    uint64
}

// NewSampleRing creates a ring holding the last size samples
func NewSampleRing(size int) *SampleRing {
	return &SampleRing{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Write appends samples, overwriting the oldest ones when full
func (sr *SampleRing) Write(samples []float64) int {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	for _, sample := range samples {
		sr.buffer[sr.writePos] = sample
		sr.writePos = (sr.writePos + 1) % sr.size
	}
	sr.count = min(sr.count+len(samples), sr.size)
	sr.total += uint64(len(samples))

	return len(samples)
}

// Latest copies the newest len(dst) samples into dst in chronological order
// Returns false, leaving dst untouched, until that many samples have been written
func (sr *SampleRing) Latest(dst []float64) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	n := len(dst)
	if n > sr.count {
		return false
	}

	start := (sr.writePos - n + sr.size) % sr.size
	for i := range n {
		dst[i] = sr.buffer[(start+i)%sr.size]
	}
	return true
}

// Available returns the number of valid samples held
func (sr *SampleRing) Available() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.count
}

// Total returns the number of samples written since creation or the last Clear
func (sr *SampleRing) Total() uint64 {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.total
}

// Clear forgets all samples
func (sr *SampleRing) Clear() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.writePos = 0
	sr.count = 0
	sr.total = 0
}
