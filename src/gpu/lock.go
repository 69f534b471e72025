// Package gpu serializes access to the graphics pipeline. Frame acquisition,
// bitmap conversion and draw calls all share driver state that is not safe
// under concurrent use from multiple threads, so every such call must run
// between Lock and Unlock.
package gpu

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// pipeline is process-wide: one lock for every capture thread and overlay
// surface. It is reentrant because a draw on one surface may nest a bitmap
// conversion that locks again on the same goroutine.
var pipeline reentrantLock

func Lock()   { pipeline.lock() }
func Unlock() { pipeline.unlock() }

type reentrantLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner int64
	depth int
}

func (l *reentrantLock) lock() {
	id := goroutineID()
	l.mu.Lock()
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
	for l.depth > 0 && l.owner != id {
		l.cond.Wait()
	}
	l.owner = id
	l.depth++
	l.mu.Unlock()
}

func (l *reentrantLock) unlock() {
	l.mu.Lock()
	if l.depth == 0 || l.owner != goroutineID() {
		l.mu.Unlock()
		panic("gpu: unlock without matching lock")
	}
	l.depth--
	if l.depth == 0 {
		l.owner = 0
		l.cond.Signal()
	}
	l.mu.Unlock()
}

// goroutineID parses the current goroutine id from the stack header
// ("goroutine 123 [running]:"). Called once per pipeline entry, which at the
// frame cadence used here is nowhere near hot.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
