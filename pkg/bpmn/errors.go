package bpmn

import "errors"

var (
	// ErrModelParse is returned when the BPMN document is malformed or
	// lacks required attributes.
	ErrModelParse = errors.New("bpmn: invalid process model")

	// ErrDuplicateActivityName is returned when two tasks carry the same
	// name. Names key the log-to-model resolution, so a collision would
	// silently misroute every event with that label.
	ErrDuplicateActivityName = errors.New("bpmn: duplicate activity name")
)
