package vault

import "sync/atomic"

// execGuard serialises state-mutating operations. A reentrant attempt to run
// a second mutating operation while one is in flight fails immediately with
// ErrReentrancyBlocked instead of interleaving. Read-only queries bypass the
// guard entirely.
type execGuard struct {
	busy atomic.Bool
}

func (g *execGuard) enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrancyBlocked
	}
	return nil
}

func (g *execGuard) exit() {
	g.busy.Store(false)
}

// do wraps fn in the exclusive-execution guard.
func (g *execGuard) do(fn func() error) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.exit()
	return fn()
}
