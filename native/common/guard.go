// Package common holds helpers shared across native modules. Guard is the
// operational circuit breaker the vault engine consults before every mutating
// operation; read-only queries never pass through it.
package common

import "errors"

// ErrModulePaused rejects mutating operations while a module's switch is set.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the pause switches installed by the host process.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when the named module is paused. A nil view
// or empty module name means no pause wiring and always passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
