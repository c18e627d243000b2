package ports

import "io"

// FileSystem is the storage the sinks and the summary writer go through.
// Paths use the host separator.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces path with data in one step.
	WriteFile(path string, data []byte) error

	// Create truncates or creates path for streaming output such as an MP4
	// container. Data is durable once Close returns nil.
	Create(path string) (io.WriteCloser, error)

	MkdirAll(path string) error

	// Exists reports whether path names a file or directory.
	Exists(path string) (bool, error)

	// Remove deletes a file or an empty directory.
	Remove(path string) error
}
