// Package memlock pins the process address space into RAM so real-time
// threads never stall on a page fault.
package memlock

import (
	"errors"
	"sync"
)

// ErrUnsupported is returned on platforms without mlockall.
var ErrUnsupported = errors.New("memory locking is not supported on this platform")

// Locker locks and unlocks the whole process address space. Lock covers
// both current and future mappings.
type Locker interface {
	Lock() error
	Unlock() error
	Locked() bool
}

type locker struct {
	mu     sync.Mutex
	locked bool
}

// New returns the process-wide memory locker.
func New() Locker {
	return &locker{}
}

func (l *locker) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return nil
	}
	if err := lockAll(); err != nil {
		return err
	}
	l.locked = true
	return nil
}

func (l *locker) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked {
		return nil
	}
	if err := unlockAll(); err != nil {
		return err
	}
	l.locked = false
	return nil
}

func (l *locker) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}
