package fixed

import "fmt"

// RingBuffer keeps the most recent capacity points. Index 0 is the latest.
type RingBuffer struct {
	buffer   []Point
	capacity int
	size     int
	tail     int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("capacity must be positive")
	}
	return &RingBuffer{
		buffer:   make([]Point, capacity),
		capacity: capacity,
	}
}

func (r *RingBuffer) Size() int     { return r.size }
func (r *RingBuffer) Capacity() int { return r.capacity }
func (r *RingBuffer) IsFull() bool  { return r.size == r.capacity }

func (r *RingBuffer) Add(p Point) {
	r.buffer[r.tail] = p
	r.tail = (r.tail + 1) % r.capacity

	if r.size < r.capacity {
		r.size++
	}
}

func (r *RingBuffer) Get(idx int) Point {
	if idx < 0 || idx >= r.size {
		panic(fmt.Sprintf("index %d out of range [0, %d)", idx, r.size))
	}
	return r.buffer[(r.tail-1-idx+r.capacity)%r.capacity]
}

// ToSliceFifo returns the points oldest first.
func (r *RingBuffer) ToSliceFifo() []Point {
	if r.size == 0 {
		return nil
	}

	result := make([]Point, r.size)
	for i := 0; i < r.size; i++ {
		result[i] = r.Get(r.size - 1 - i)
	}
	return result
}

func (r *RingBuffer) Mean() Point {
	return Mean(r.ToSliceFifo())
}

func (r *RingBuffer) SampleStdDev() Point {
	points := r.ToSliceFifo()
	return SampleStdDev(points, Mean(points))
}
