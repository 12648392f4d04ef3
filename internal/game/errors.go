// internal/game/errors.go
package game

import "errors"

// Rule violations. Every one of these is recovered locally with no state
// mutation; none is fatal.
var (
	// ErrInvalidCombo marks a card selection that classifies to no shape.
	ErrInvalidCombo = errors.New("selected cards do not form a playable combo")
	// ErrIllegalBeat marks a valid combo that fails to out-rank the table.
	ErrIllegalBeat = errors.New("combo does not beat the current play")
	// ErrOutOfTurn marks an intent from a seat that is not the acting seat.
	// Callers drop it silently so turn information never leaks.
	ErrOutOfTurn = errors.New("not this seat's turn")
	// ErrBadPhase marks an operation issued in the wrong phase.
	ErrBadPhase = errors.New("operation not allowed in this phase")
	// ErrBadPass marks a pass with no outstanding combo to duck under, or a
	// pass by the seat that owns the outstanding combo.
	ErrBadPass = errors.New("cannot pass on a free lead")
)
