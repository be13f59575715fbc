package session

import "errors"

var (
	// ErrNodeIndex is returned when an action names a node that does not exist.
	ErrNodeIndex = errors.New("node index out of range")

	// ErrSameNode is returned when a node is connected to itself.
	ErrSameNode = errors.New("cannot connect a node to itself")

	// ErrGameOver is returned by mutating actions after a failed completion.
	ErrGameOver = errors.New("game over, restart to play again")

	// ErrTargetNotReached is returned by Complete when harmony is below target.
	ErrTargetNotReached = errors.New("target harmony not reached")

	// ErrNotFinite is returned for NaN or infinite numeric input.
	ErrNotFinite = errors.New("value must be a finite number")

	// ErrMalformedSnapshot is returned when a snapshot cannot be restored.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)
