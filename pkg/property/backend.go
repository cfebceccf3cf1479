package property

import "context"

// Revision identifies one version of a backing object. Two equal revisions
// denote the same content; the zero value means nothing was loaded.
type Revision string

// Backend stores a whole properties document.
type Backend interface {
	// Revision returns the current revision without reading the content.
	// A missing object yields an error wrapping ErrNotExist.
	Revision(ctx context.Context) (Revision, error)

	// Load reads and parses the document.
	Load(ctx context.Context) (map[string]string, Revision, error)

	// Store replaces the whole document and returns the new revision.
	Store(ctx context.Context, props map[string]string) (Revision, error)
}
