package filesystem

import (
	"errors"
	"io/fs"
	"syscall"
)

// notFound treats a path whose parent is a regular file like a missing path.
func notFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || isNotDir(err)
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
