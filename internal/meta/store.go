package meta

import "sync"

// Store serializes read-modify-write cycles against one meta document.
// Fetch batches fold their results through Update so concurrent
// operations inside the process never interleave partial writes.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store for the meta document at path. The file need
// not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current document, empty if missing or malformed.
func (s *Store) Read() *Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Read(s.path)
}

// Update applies fn to the current document and persists the result
// atomically. fn runs under the store lock and must not call back into
// the store.
func (s *Store) Update(fn func(*Meta)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Read(s.path)
	fn(m)
	return Write(s.path, m)
}
