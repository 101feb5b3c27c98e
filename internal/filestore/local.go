package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/filex"
)

const tmpPrefix = ".tmp-"

// LocalStore keeps blobs as files directly inside root.
type LocalStore struct {
	root    string
	limiter limiter
}

// NewLocalStore creates root if needed. maxInFlight bounds concurrent I/O.
func NewLocalStore(root string, maxInFlight int64) (*LocalStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	return &LocalStore{root: abs, limiter: newLimiter(maxInFlight)}, nil
}

// Root returns the absolute storage directory.
func (s *LocalStore) Root() string {
	return s.root
}

// resolve joins name to the root and verifies that the cleaned result is a
// direct child of the root.
func (s *LocalStore) resolve(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(s.root, name))
	if filepath.Dir(p) != s.root {
		return "", fmt.Errorf("%w: escapes root", common.ErrInvalidFileName)
	}
	return p, nil
}

// Locate implements Store.
func (s *LocalStore) Locate(name string) (string, error) {
	return s.resolve(name)
}

// checkPath validates a path previously returned by Write.
func (s *LocalStore) checkPath(path string) (string, error) {
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) || filepath.Dir(p) != s.root {
		return "", fmt.Errorf("%w: outside root", common.ErrInvalidFileName)
	}
	return s.resolve(filepath.Base(p))
}

// Write stores data via a temporary file and rename, so a reader never sees
// a half-written envelope and a retry with the same name overwrites.
func (s *LocalStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	p, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	err = s.limiter.do(ctx, func() error {
		tmp, err := os.CreateTemp(s.root, tmpPrefix+"*")
		if err != nil {
			return ioError("create temp", err)
		}
		tmpName := tmp.Name()
		defer os.Remove(tmpName)

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return ioError("write", err)
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return ioError("sync", err)
		}
		if err := tmp.Close(); err != nil {
			return ioError("close", err)
		}
		if err := os.Chmod(tmpName, 0o600); err != nil {
			return ioError("chmod", err)
		}
		if err := os.Rename(tmpName, p); err != nil {
			return ioError("rename", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return p, nil
}

// Read returns the file content. Only regular files are served: a symlink
// planted under the root is refused.
func (s *LocalStore) Read(ctx context.Context, path string) ([]byte, error) {
	p, err := s.checkPath(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.limiter.do(ctx, func() error {
		fi, err := os.Lstat(p)
		if err != nil {
			return ioError("stat", err)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("%w: not a regular file", common.ErrInvalidFileName)
		}
		data, err = os.ReadFile(p)
		if err != nil {
			return ioError("read", err)
		}
		return nil
	})
	return data, err
}

// Delete removes the file; a missing file is treated as already deleted.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	p, err := s.checkPath(path)
	if err != nil {
		return err
	}

	return s.limiter.do(ctx, func() error {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioError("remove", err)
		}
		return nil
	})
}

// List returns regular files under the root, skipping in-progress writes.
func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	var out []Object
	err := s.limiter.do(ctx, func() error {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			return ioError("readdir", err)
		}
		for _, e := range entries {
			// temp files and foreign dotfiles fail validation too
			if !e.Type().IsRegular() || ValidateName(e.Name()) != nil {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, Object{
				Path:    filepath.Join(s.root, e.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
		return nil
	})
	return out, err
}
