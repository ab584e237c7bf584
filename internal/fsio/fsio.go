// Package fsio is the filesystem gateway: a small, uniform surface over
// text/structured reads and writes with atomic replace and a bounded retry
// policy for transient failures (spec.md §4.1).
package fsio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// retry policy constants (spec.md §4.1).
const (
	maxAttempts = 5
	baseBackoff = 20 * time.Millisecond
	maxBackoff  = 500 * time.Millisecond
)

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MkdirAll creates dir and all parents, retrying transient failures.
func MkdirAll(ctx context.Context, dir string) error {
	return withRetry(ctx, func() error {
		return os.MkdirAll(dir, 0o755)
	})
}

// ReadText reads the file at path as a string, retrying transient failures.
func ReadText(ctx context.Context, path string) (string, error) {
	contracts.RequireNotEmpty(path, "path")

	var data []byte
	err := withRetry(ctx, func() error {
		d, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteTextAtomic writes content to path by writing a sibling temp file and
// renaming it into place, so a crash or concurrent reader never observes a
// partial file. The parent directory is created first.
func WriteTextAtomic(ctx context.Context, path string, content string) error {
	contracts.RequireNotEmpty(path, "path")

	dir := filepath.Dir(path)
	if err := MkdirAll(ctx, dir); err != nil {
		return err
	}

	return withRetry(ctx, func() error {
		tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		defer os.Remove(tmpName) // no-op once renamed away

		if _, err := tmp.WriteString(content); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmpName, path)
	})
}

// ListDir returns the base names of entries directly inside dir.
// A missing directory yields an empty slice, not an error.
func ListDir(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := withRetry(ctx, func() error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				names = nil
				return nil
			}
			return err
		}
		names = make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return nil
	})
	return names, err
}

// Remove deletes path, retrying transient failures. Removing a path that
// does not exist is not an error.
func Remove(ctx context.Context, path string) error {
	return withRetry(ctx, func() error {
		err := os.Remove(path)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	})
}

// ReadStructured decodes the file at path into a value of type T, choosing
// a JSON/YAML/TOML decoder by file extension.
func ReadStructured[T any](ctx context.Context, path string) (T, error) {
	var zero T
	text, err := ReadText(ctx, path)
	if err != nil {
		return zero, err
	}

	var out T
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return zero, errs.Wrap(errs.FileSystemPermanent, err, "decoding JSON %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(text), &out); err != nil {
			return zero, errs.Wrap(errs.FileSystemPermanent, err, "decoding YAML %s", path)
		}
	case ".toml":
		if _, err := toml.Decode(text, &out); err != nil {
			return zero, errs.Wrap(errs.FileSystemPermanent, err, "decoding TOML %s", path)
		}
	default:
		return zero, errs.New(errs.FileSystemPermanent, "unsupported structured file extension %q", ext)
	}
	return out, nil
}

// WriteStructured encodes value and writes it atomically, choosing an
// encoder by the file extension of path.
func WriteStructured[T any](ctx context.Context, path string, value T) error {
	var buf bytes.Buffer

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			return errs.Wrap(errs.FileSystemPermanent, err, "encoding JSON %s", path)
		}
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return errs.Wrap(errs.FileSystemPermanent, err, "encoding YAML %s", path)
		}
		enc.Close()
	case ".toml":
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(value); err != nil {
			return errs.Wrap(errs.FileSystemPermanent, err, "encoding TOML %s", path)
		}
	default:
		return errs.New(errs.FileSystemPermanent, "unsupported structured file extension %q", filepath.Ext(path))
	}

	return WriteTextAtomic(ctx, path, buf.String())
}

// classify splits an OS-level error into transient (worth retrying) or
// permanent, per spec.md §4.1.
func classify(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		// A parent directory not existing yet is transient: a concurrent
		// writer may be about to create it.
		return true
	}
	if errors.Is(err, os.ErrPermission) {
		return false
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		msg := pathErr.Err.Error()
		if strings.Contains(msg, "resource temporarily unavailable") ||
			strings.Contains(msg, "text file busy") ||
			strings.Contains(msg, "device or resource busy") {
			return true
		}
	}
	return false
}

// withRetry runs op, retrying with bounded exponential backoff and jitter
// when the error is classified as transient, up to maxAttempts total tries.
func withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return errs.New(errs.Cancelled, "filesystem operation cancelled")
			default:
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !classify(err) {
			return errs.Wrap(errs.FileSystemPermanent, err, "filesystem operation failed")
		}
		if attempt == maxAttempts-1 {
			break
		}

		backoff := baseBackoff * time.Duration(1<<uint(attempt))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		time.Sleep(backoff + jitter)
	}
	return errs.Wrap(errs.FileSystemTransient, lastErr, "filesystem operation failed after %d attempts", maxAttempts)
}
