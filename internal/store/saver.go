package store

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Saved describes an attachment written to disk.
type Saved struct {
	Path string
	Size int64
	SHA1 string
	MD5  string
}

// Saver writes attachment payloads to the local filesystem.
type Saver struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// NewSaver returns a Saver creating directories 0755 and files 0644.
func NewSaver() *Saver {
	return &Saver{dirPerm: 0o755, filePerm: 0o644}
}

// Save streams content to path once, hashing it on the way, and returns the
// size read back from the filesystem together with hex SHA-1 and MD5
// digests. Parent directories are created as needed. An existing regular
// file is truncated when writable.
func (s *Saver) Save(content io.Reader, path string) (Saved, error) {
	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm); err != nil {
		return Saved{}, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if info, err := os.Lstat(path); err == nil && !info.Mode().IsRegular() {
		return Saved{}, fmt.Errorf("failed to save %s: destination exists and is not a regular file", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.filePerm)
	if err != nil {
		return Saved{}, fmt.Errorf("failed to open %s: %w", path, err)
	}

	sha := sha1.New()
	sum := md5.New()
	written, copyErr := io.Copy(io.MultiWriter(f, sha, sum), content)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return Saved{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Saved{}, fmt.Errorf("failed to read back %s: %w", path, err)
	}
	if info.Size() != written {
		return Saved{}, fmt.Errorf("failed to save %s: wrote %d bytes but file has %d", path, written, info.Size())
	}

	return Saved{
		Path: path,
		Size: info.Size(),
		SHA1: hex.EncodeToString(sha.Sum(nil)),
		MD5:  hex.EncodeToString(sum.Sum(nil)),
	}, nil
}

// Remove deletes a file saved earlier. A missing file is not an error.
func (s *Saver) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
