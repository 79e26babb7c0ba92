package util

import (
	"bytes"
	"sync"
)

// GoroutineSafeBuffer is a bytes.Buffer guarded by a mutex. Sinks write to it
// from the emitter goroutine while tests read it from another.
type GoroutineSafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewGoroutineSafeBuffer() *GoroutineSafeBuffer {
	return &GoroutineSafeBuffer{}
}

func (g *GoroutineSafeBuffer) Write(p []byte) (n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.Write(p)
}

func (g *GoroutineSafeBuffer) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.String()
}

func (g *GoroutineSafeBuffer) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.Len()
}
