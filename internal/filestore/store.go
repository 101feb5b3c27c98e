// Package filestore persists envelope bytes under validated names inside a
// single configured root: a local directory or an S3 bucket prefix.
package filestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/papervault/internal/common"
	"golang.org/x/sync/semaphore"
)

// Store is the blob side of the vault. Paths returned by Write are opaque to
// callers and are only ever handed back to Read and Delete.
type Store interface {
	// Write stores data under name, replacing any previous content, and
	// returns the storage path.
	Write(ctx context.Context, name string, data []byte) (string, error)
	// Read returns the bytes stored at path.
	Read(ctx context.Context, path string) ([]byte, error)
	// Delete removes path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
	// List returns every stored object Write could have produced, used by
	// reconciliation. Entries with names ValidateName rejects are skipped.
	List(ctx context.Context) ([]Object, error)
	// Locate returns the path Write would use for name without touching
	// storage.
	Locate(name string) (string, error)
}

// Object describes a stored blob.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

const maxNameLength = 255

// ValidateName rejects names that could address anything other than a
// single entry directly under the root: empty or over-long names, names
// containing a separator or NUL, and names starting with a dot (which covers
// "." and ".." as well as hidden and temporary files).
func ValidateName(name string) error {
	switch {
	case name == "", len(name) > maxNameLength:
		return fmt.Errorf("%w: bad length", common.ErrInvalidFileName)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: contains separator", common.ErrInvalidFileName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: leading dot", common.ErrInvalidFileName)
	}
	return nil
}

// limiter bounds the number of blocking storage calls in flight so request
// goroutines queue instead of piling onto the disk or the network.
type limiter struct {
	sem *semaphore.Weighted
}

func newLimiter(n int64) limiter {
	if n <= 0 {
		n = 1
	}
	return limiter{sem: semaphore.NewWeighted(n)}
}

func (l limiter) do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn()
}

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, common.ErrStorageIO, err)
}
