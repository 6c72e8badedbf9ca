package core

import (
	"errors"
	"strings"
)

var (
	ErrValidation = errors.New("validation")
)

// ValidationError collects every problem found in one pass so the user can fix
// them all at once.
type ValidationError struct {
	Errors []string
}

func (v ValidationError) Error() string {
	return strings.Join(v.Errors, ", ")
}

func (v ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a message to the collection.
func (v *ValidationError) Add(message string) {
	v.Errors = append(v.Errors, message)
}

// Err returns nil when nothing was collected.
func (v ValidationError) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}

	return v
}
