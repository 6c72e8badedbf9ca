package resolver

import (
	"errors"
	"fmt"
)

var (
	ErrKindMismatch = errors.New("unexpected path type")
	ErrOutsideRoot  = errors.New("path escapes root")
	ErrRootNotDir   = errors.New("root is not a directory")
)

// DeletionError is fatal for the whole run. Err is the filesystem error as
// it was returned, so errors.Is(err, fs.ErrPermission) keeps working.
type DeletionError struct {
	Path string
	Err  error
}

func (d *DeletionError) Error() string {
	return fmt.Sprintf("deleting %s: %s", d.Path, d.Err.Error())
}

func (d *DeletionError) Unwrap() error {
	return d.Err
}
