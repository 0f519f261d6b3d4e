package skill

import "errors"

var (
	// ErrNotFound is returned when an operation references a node id that is
	// not in the graph. Ineligible operations return false instead.
	ErrNotFound = errors.New("skill: node not found")

	ErrDuplicateID      = errors.New("skill: duplicate node id")
	ErrInvalidAttribute = errors.New("skill: invalid attribute")
	ErrInvalidSnapshot  = errors.New("skill: invalid snapshot")
)
