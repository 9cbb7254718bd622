// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations used by the filesystem backend
//
// # Implementations
//
//   - [LocalFS]: production implementation using the standard os package
//   - [FaultyFS]: test utility that injects errors for matching paths
//
// # Usage
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("secret", fs.Fault{FailOnRead: true, Err: os.ErrPermission})
//	svc, _ := filesystem.New(dir, filesystem.WithFileSystem(ffs))
//
// Operations do not take a context.Context: local syscalls are not
// interruptible.
package fs
