// Package fileio implements the FileIO adapter collaborator (spec.md §2.1,
// §4.6): the narrow seek/read/write surface the rest of the engine is built
// on, kept behind an interface so the layout and index-array packages never
// touch *os.File directly.
package fileio

import "time"

// FileIO is the abstract collaborator every on-disk component reads and
// writes through. An *os.File satisfies it via OSFile below; tests can
// substitute any other implementation (e.g. a fault-injecting one) without
// touching the layout or store packages.
type FileIO interface {
	// ReadAt reads len(buf) bytes starting at offset. It returns an error
	// if fewer bytes were available.
	ReadAt(buf []byte, offset int64) error

	// WriteAt writes buf at offset, extending the file if offset+len(buf)
	// is past the current end.
	WriteAt(buf []byte, offset int64) error

	// Append writes buf at the current end of file and returns the offset
	// it was written at.
	Append(buf []byte) (offset int64, err error)

	// Size returns the current file size in bytes.
	Size() (int64, error)

	// Truncate changes the file size, per os.File.Truncate semantics.
	Truncate(size int64) error

	// ModTime returns the file's last-modified timestamp.
	ModTime() (time.Time, error)

	// Sync flushes any buffered data to stable storage.
	Sync() error

	// Close releases the underlying file descriptor.
	Close() error
}

// Opener creates or opens the backing file for a FileIO. Kept as a free
// function rather than a constructor method so callers can plug in a
// different backing store without changing the FileIO interface.
type Opener func(name string, create bool) (FileIO, error)
