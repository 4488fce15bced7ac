package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuardPaused(t *testing.T) {
	if err := Guard(nil, "lending"); err != nil {
		t.Fatalf("nil view should pass: %v", err)
	}
	if err := Guard(pauseMap{"lending": false}, "lending"); err != nil {
		t.Fatalf("unpaused module should pass: %v", err)
	}
	if err := Guard(pauseMap{"lending": true}, "lending"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}

func TestPauseSwitches(t *testing.T) {
	switches := NewPauseSwitches(map[string]bool{"lending": true, "swap": false})
	if !switches.IsPaused("lending") {
		t.Fatal("seeded pause lost")
	}
	if switches.IsPaused("swap") {
		t.Fatal("false seed must not pause")
	}
	if err := Guard(switches, "lending"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	switches.SetPaused("lending", false)
	if err := Guard(switches, "lending"); err != nil {
		t.Fatalf("unpause did not take: %v", err)
	}
	switches.SetPaused("lending", true)
	if !switches.IsPaused("lending") {
		t.Fatal("repause did not take")
	}
}

func TestOpLockRejectsNestedAcquire(t *testing.T) {
	var lock OpLock
	if err := lock.Acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := lock.Acquire(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
	lock.Release()
	if err := lock.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	lock.Release()
}
