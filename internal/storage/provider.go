// Package storage defines the mirror file-system abstraction. All reads and
// writes under the mirror base directory go through it.
package storage

import "time"

// FileInfo is a lightweight description of one mirrored file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for mirror file operations.
type Provider interface {
	// List returns metadata for every file under dir (relative to the root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Path resolves path against the root and returns its absolute location.
	Path(path string) (string, error)
}
