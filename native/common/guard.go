package common

import (
	"errors"
	"sync"
)

var (
	// ErrModulePaused is returned when a pause switch disables the module.
	ErrModulePaused = errors.New("module paused")
	// ErrReentrantCall is returned when an operation is attempted while
	// another operation is still in flight.
	ErrReentrantCall = errors.New("reentrant call")
)

// PauseView reports whether a named module is currently paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name always passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSwitches is a mutable PauseView keyed by module name. The daemon seeds
// it from configuration and the admin RPC surface flips it at runtime.
type PauseSwitches struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSwitches builds a switch set with the given modules paused.
func NewPauseSwitches(paused map[string]bool) *PauseSwitches {
	set := &PauseSwitches{paused: make(map[string]bool, len(paused))}
	for module, on := range paused {
		if on {
			set.paused[module] = true
		}
	}
	return set
}

// SetPaused flips the switch for one module.
func (p *PauseSwitches) SetPaused(module string, paused bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if paused {
		p.paused[module] = true
	} else {
		delete(p.paused, module)
	}
	p.mu.Unlock()
}

// IsPaused implements PauseView.
func (p *PauseSwitches) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// OpLock is the global advisory lock held for the duration of every
// state-mutating operation. Token and oracle collaborators are untrusted and
// may call back into the module during an in-flight operation; the busy flag
// turns such callbacks into a hard failure instead of a nested mutation.
type OpLock struct {
	mu   sync.Mutex
	busy bool
}

// Acquire marks an operation as in flight. It fails with ErrReentrantCall when
// another operation has not yet released the lock.
func (l *OpLock) Acquire() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return ErrReentrantCall
	}
	l.busy = true
	return nil
}

// Release clears the busy flag. Callers must release on every exit path.
func (l *OpLock) Release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.busy = false
	l.mu.Unlock()
}
