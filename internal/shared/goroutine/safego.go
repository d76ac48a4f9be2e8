// Package goroutine provides utilities for safely launching goroutines with panic recovery.
package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/orris-inc/triage/internal/shared/logger"
)

// SafeGo launches a goroutine with panic recovery. If the goroutine panics,
// the panic is caught and logged with stack trace instead of crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer recoverPanic(log, name)
		fn()
	}()
}

func recoverPanic(log logger.Interface, name string) {
	if r := recover(); r != nil {
		log.Errorw("goroutine panicked",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)
	}
}

// Launcher starts background tasks that outlive the request that triggered them.
type Launcher interface {
	Go(name string, fn func())
}

// Group is a Launcher that tracks every task it starts so shutdown can wait
// for in-flight work.
type Group struct {
	log logger.Interface
	wg  sync.WaitGroup
}

// NewGroup creates a new Group.
func NewGroup(log logger.Interface) *Group {
	return &Group{log: log}
}

// Go runs fn on its own goroutine with panic recovery.
func (g *Group) Go(name string, fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer recoverPanic(g.log, name)
		fn()
	}()
}

// Wait blocks until every started task returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
