package property_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/property"
)

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.properties")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return path
}

// rewrite replaces the file the way an operator's editor would and makes sure
// the modification time moves forward.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSource_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := property.NewFileSource(tempFile(t, ""))

	state, err := source.Read(ctx, "F1")
	require.NoError(t, err)
	assert.Nil(t, state, "missing file reads as empty")

	written := feature.NewState("F1").Enable().
		SetStrategyID(feature.StrategyReleaseDate).
		SetParameter(feature.ParamDate, "2030-01-01").
		SetParameter(feature.ParamTime, "12:00")
	require.NoError(t, source.Write(ctx, written))

	state, err = source.Read(ctx, "F1")
	require.NoError(t, err)
	assert.True(t, written.Equal(state), "got %s", state)

	// Removing the strategy and a parameter removes their keys.
	require.NoError(t, source.Write(ctx, feature.NewState("F1").Disable().SetParameter(feature.ParamDate, "2031-01-01")))
	state, err = source.Read(ctx, "F1")
	require.NoError(t, err)
	assert.False(t, state.Enabled())
	assert.Empty(t, state.StrategyID())
	assert.Equal(t, map[string]string{feature.ParamDate: "2031-01-01"}, state.Parameters())
}

func TestSource_RoundTripSpecialCharacters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		state *feature.State
	}{
		{"newline in value", feature.NewState("F1").Enable().SetParameter("msg", "line1\nline2")},
		{"colon in parameter name", feature.NewState("F2").Enable().SetParameter("a:b", "v")},
		{"equals in parameter name", feature.NewState("F3").Enable().SetParameter("a=b", "c=d")},
		{"surrounding space", feature.NewState("F4").Enable().SetParameter("pad", "  v  ")},
		{"backslash and tab", feature.NewState("F5").Enable().SetParameter("path", "C:\\tmp\tx\\")},
		{"comment marker in value", feature.NewState("F6").Enable().SetParameter("tag", "#beta")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := tempFile(t, "OTHER=true\n")
			require.NoError(t, property.NewFileSource(path).Write(ctx, tt.state))

			// A fresh source parses the document from scratch.
			fresh := property.NewFileSource(path)
			got, err := fresh.Read(ctx, tt.state.Feature())
			require.NoError(t, err)
			require.NotNil(t, got, "document:\n%s", readFile(t, path))
			assert.True(t, tt.state.Equal(got), "wrote %s, read %s", tt.state, got)

			other, err := fresh.Read(ctx, "OTHER")
			require.NoError(t, err)
			require.NotNil(t, other)
			assert.True(t, other.Enabled())
		})
	}
}

func TestSource_LayoutOnDisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := tempFile(t, "# managed by featurectl\nOTHER=yes\n")
	source := property.NewFileSource(path)

	require.NoError(t, source.Write(ctx, feature.NewState("F1").Enable().
		SetStrategyID(feature.StrategyUsername).
		SetParameter(feature.ParamUsers, "alice")))

	assert.Equal(t, "F1=true\nF1.param.users=alice\nF1.strategy=username\nOTHER=yes\n", readFile(t, path))
}

func TestSource_LegacyMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("read then write is idempotent", func(t *testing.T) {
		t.Parallel()
		path := tempFile(t, "F1=true\nF1.users=a,b\nF2=false\n")
		source := property.NewFileSource(path)

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.True(t, state.Enabled())
		assert.Equal(t, feature.StrategyUsername, state.StrategyID())
		users, _ := state.Parameter(feature.ParamUsers)
		assert.Equal(t, "a,b", users)

		require.NoError(t, source.Write(ctx, state))
		first := readFile(t, path)
		assert.Equal(t, "F1=true\nF1.param.users=a,b\nF1.strategy=username\nF2=false\n", first)
		assert.NotContains(t, first, "F1.users")

		state, err = source.Read(ctx, "F1")
		require.NoError(t, err)
		require.NoError(t, source.Write(ctx, state))
		assert.Equal(t, first, readFile(t, path))
	})

	t.Run("legacy users merge into parameter", func(t *testing.T) {
		t.Parallel()
		path := tempFile(t, "F1=true\nF1.strategy=username\nF1.param.users=a, b\nF1.users=b,c\n")
		source := property.NewFileSource(path)

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		users, _ := state.Parameter(feature.ParamUsers)
		assert.Equal(t, "a,b,c", users)
	})

	t.Run("explicit strategy is kept", func(t *testing.T) {
		t.Parallel()
		path := tempFile(t, "F1=true\nF1.strategy=gradual\nF1.param.percentage=10\nF1.users=a\n")
		source := property.NewFileSource(path)

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.Equal(t, feature.StrategyGradual, state.StrategyID())
		users, _ := state.Parameter(feature.ParamUsers)
		assert.Equal(t, "a", users)
	})

	t.Run("migration is lazy", func(t *testing.T) {
		t.Parallel()
		path := tempFile(t, "F1=true\nF1.users=a\nF2=true\nF2.users=b\n")
		source := property.NewFileSource(path)

		require.NoError(t, source.Write(ctx, feature.NewState("F1").Enable()))
		content := readFile(t, path)
		assert.NotContains(t, content, "F1.users")
		assert.Contains(t, content, "F2.users=b")
	})
}

func TestSource_BoolValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := property.NewFileSource(tempFile(t, "A=Yes\nB=enabled\nC=on\nD=ENABLE\nE=0\n"))

	want := map[feature.Feature]bool{"A": true, "B": true, "C": false, "D": true, "E": false}
	for f, enabled := range want {
		state, err := source.Read(ctx, f)
		require.NoError(t, err)
		require.NotNil(t, state, f)
		assert.Equal(t, enabled, state.Enabled(), f)
	}
}

func TestSource_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := tempFile(t, "")
	source := property.NewFileSource(path)

	const writers = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := feature.NewState(feature.Feature(fmt.Sprintf("F%02d", i))).
				SetEnabled(i%2 == 0).
				SetStrategyID(feature.StrategyUsername).
				SetParameter(feature.ParamUsers, fmt.Sprintf("user%d", i))
			errs <- source.Write(ctx, state)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// A fresh source sees exactly what every writer stored.
	fresh := property.NewFileSource(path)
	features, err := fresh.Features(ctx)
	require.NoError(t, err)
	assert.Len(t, features, writers)

	for i := range writers {
		state, err := fresh.Read(ctx, feature.Feature(fmt.Sprintf("F%02d", i)))
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, i%2 == 0, state.Enabled())
		users, _ := state.Parameter(feature.ParamUsers)
		assert.Equal(t, fmt.Sprintf("user%d", i), users)
	}
}

func TestSource_ExternalModification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := tempFile(t, "F1=false\n")
	source := property.NewFileSource(path)

	state, err := source.Read(ctx, "F1")
	require.NoError(t, err)
	assert.False(t, state.Enabled())

	rewrite(t, path, "F1=true\nF2=true\n")

	state, err = source.Read(ctx, "F1")
	require.NoError(t, err)
	assert.True(t, state.Enabled())

	// A write from another source is picked up as well.
	other := property.NewFileSource(path)
	require.NoError(t, other.Write(ctx, feature.NewState("F3").Enable()))
	future := time.Now().Add(2 * time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	state, err = source.Read(ctx, "F3")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Enabled())
}

func TestSource_ReloadFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := tempFile(t, "F1=true\n")

	var logs bytes.Buffer
	source := property.NewFileSource(path,
		property.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	state, err := source.Read(ctx, "F1")
	require.NoError(t, err)
	require.True(t, state.Enabled())

	t.Run("malformed", func(t *testing.T) {
		rewrite(t, path, "F1=false\nthis line is broken\n")

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.True(t, state.Enabled(), "previous snapshot is served")
		assert.Contains(t, logs.String(), "keeping previous snapshot")
		assert.Contains(t, logs.String(), "line 2")
	})

	t.Run("missing", func(t *testing.T) {
		require.NoError(t, os.Remove(path))

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.True(t, state.Enabled())
		assert.Contains(t, logs.String(), "properties disappeared")
	})

	t.Run("fixed", func(t *testing.T) {
		rewrite(t, path, "F1=false\n")

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.False(t, state.Enabled())
	})
}

func TestSource_Features(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := property.NewFileSource(tempFile(t,
		"B=true\nA.strategy=gradual\nA.param.percentage=5\nC.users=x\nD.param.users=y\n"))

	features, err := source.Features(ctx)
	require.NoError(t, err)
	assert.Equal(t, []feature.Feature{"A", "B", "C", "D"}, features)
}

func TestSource_WriteValidation(t *testing.T) {
	t.Parallel()
	source := property.NewFileSource(tempFile(t, ""))
	require.ErrorIs(t, source.Write(context.Background(), nil), feature.ErrInvalidState)
}

// stubBackend is an in-memory Backend with injectable failures.
type stubBackend struct {
	mu       sync.Mutex
	props    map[string]string
	revision int
	loads    int
	storeErr error
	revErr   error
}

func (b *stubBackend) Revision(ctx context.Context) (property.Revision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revErr != nil {
		return "", b.revErr
	}
	if b.props == nil {
		return "", property.ErrNotExist
	}
	return property.Revision(fmt.Sprint(b.revision)), nil
}

func (b *stubBackend) Load(ctx context.Context) (map[string]string, property.Revision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.props == nil {
		return nil, "", property.ErrNotExist
	}
	clone := make(map[string]string, len(b.props))
	for k, v := range b.props {
		clone[k] = v
	}
	return clone, property.Revision(fmt.Sprint(b.revision)), nil
}

func (b *stubBackend) Store(ctx context.Context, props map[string]string) (property.Revision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.storeErr != nil {
		return "", b.storeErr
	}
	b.props = props
	b.revision++
	return property.Revision(fmt.Sprint(b.revision)), nil
}

func TestSource_Backend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reloads only on revision change", func(t *testing.T) {
		t.Parallel()
		backend := &stubBackend{props: map[string]string{"F1": "true"}, revision: 1}
		source := property.NewSource(backend)

		for range 3 {
			_, err := source.Read(ctx, "F1")
			require.NoError(t, err)
		}
		assert.Equal(t, 1, backend.loads)

		require.NoError(t, source.Write(ctx, feature.NewState("F2").Enable()))
		_, err := source.Read(ctx, "F2")
		require.NoError(t, err)
		assert.Equal(t, 1, backend.loads, "own write does not trigger a reload")
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		backend := &stubBackend{props: map[string]string{"F1": "true"}, revision: 1, storeErr: errors.New("read-only file system")}
		source := property.NewSource(backend)

		err := source.Write(ctx, feature.NewState("F1").Disable())
		require.ErrorIs(t, err, feature.ErrStorageUnavailable)

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.True(t, state.Enabled(), "failed write leaves the snapshot untouched")
	})

	t.Run("revision failure serves snapshot", func(t *testing.T) {
		t.Parallel()
		backend := &stubBackend{props: map[string]string{"F1": "true"}, revision: 1}
		source := property.NewSource(backend)

		_, err := source.Read(ctx, "F1")
		require.NoError(t, err)

		backend.mu.Lock()
		backend.revErr = errors.New("connection refused")
		backend.mu.Unlock()

		state, err := source.Read(ctx, "F1")
		require.NoError(t, err)
		assert.True(t, state.Enabled())
	})

	t.Run("nil backend panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { property.NewSource(nil) })
	})
}

func TestSource_WithManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := tempFile(t, "BETA=true\nBETA.users=alice\n")

	manager := feature.NewManager(feature.NewCachingSource(property.NewFileSource(path)))

	active, err := manager.IsActive(ctx, "BETA", feature.User{Name: "alice"})
	require.NoError(t, err)
	assert.True(t, active)

	active, err = manager.IsActive(ctx, "BETA", feature.User{Name: "bob"})
	require.NoError(t, err)
	assert.False(t, active)
}
