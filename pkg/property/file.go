package property

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const defaultFileMode fs.FileMode = 0o644

// FileBackend keeps the document in a local file. Its revision is the file's
// modification time and size, so edits by other processes are noticed.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the file at path. The file does not
// have to exist until the first Store.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Revision(ctx context.Context) (Revision, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return "", b.statError(err)
	}
	return fileRevision(info), nil
}

func (b *FileBackend) Load(ctx context.Context) (map[string]string, Revision, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, "", b.statError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", b.path, err)
	}

	props, err := Parse(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", b.path, err)
	}
	return props, fileRevision(info), nil
}

// Store rewrites the file atomically: the document goes to a synced temporary
// file in the same directory which then replaces the original.
func (b *FileBackend) Store(ctx context.Context, props map[string]string) (Revision, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, props); err != nil {
		return "", err
	}

	mode := defaultFileMode
	if info, err := os.Stat(b.path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := writeFileAtomic(b.path, buf.Bytes(), mode); err != nil {
		return "", fmt.Errorf("write %s: %w", b.path, err)
	}

	return b.Revision(ctx)
}

func (b *FileBackend) statError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, b.path)
	}
	return fmt.Errorf("stat %s: %w", b.path, err)
}

func fileRevision(info fs.FileInfo) Revision {
	return Revision(strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10))
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
