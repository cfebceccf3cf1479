package feature

import (
	"context"
	"errors"
)

// Source stores and retrieves feature states. Implementations must be safe for
// concurrent use.
type Source interface {
	// Read returns the stored state of f. A feature that has no stored state
	// yields (nil, nil); an error always means the lookup itself failed.
	// The returned state is owned by the caller.
	Read(ctx context.Context, f Feature) (*State, error)

	// Write persists s synchronously. Once Write returns, every subsequent Read
	// of the same feature observes the new state.
	// Backend failures wrap ErrStorageUnavailable; sources without write
	// support return ErrUnsupported.
	Write(ctx context.Context, s *State) error
}

// Lister is implemented by sources that can enumerate the features they hold.
type Lister interface {
	Features(ctx context.Context) ([]Feature, error)
}

// ReadOnly wraps src so that every Write fails with ErrUnsupported.
func ReadOnly(src Source) Source {
	return readOnlySource{src: src}
}

type readOnlySource struct {
	src Source
}

func (r readOnlySource) Read(ctx context.Context, f Feature) (*State, error) {
	return r.src.Read(ctx, f)
}

func (r readOnlySource) Write(ctx context.Context, s *State) error {
	return errors.Join(ErrUnsupported, errors.New("source is read-only"))
}

// Unavailable wraps a backend error so callers can match it with ErrStorageUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStorageUnavailable, errors.New(op), err)
}
