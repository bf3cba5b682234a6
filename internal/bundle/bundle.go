// Package bundle opens the zip archive that backs the running program and
// exposes its entries for indexing and streaming.
//
// A zipserve binary is distributed with its content appended as a zip
// archive (the archive's central directory sits at the end of the file, so
// the executable still runs and archive/zip still finds every entry). For
// development and tests an explicit archive path can be used instead.
package bundle

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotPackaged means the running executable has no zip archive
	// backing it. Construction cannot proceed; there is no degraded mode.
	ErrNotPackaged = errors.New("executable is not backed by a zip archive")

	// ErrArchiveRead means an archive was located but could not be
	// opened or enumerated.
	ErrArchiveRead = errors.New("archive cannot be read")
)

// Entry describes a single archive member.
type Entry struct {
	Name     string
	Dir      bool
	Size     int64
	Modified time.Time
}

// Archive is an open, read-only view of the backing zip. It is immutable
// after Open/FromExecutable returns and safe for concurrent use; per-entry
// streams returned by Open are single-use and not shared.
type Archive struct {
	path    string
	digest  string
	entries []Entry
	files   map[string]*zip.File
	f       *os.File
}

// FromExecutable opens the archive backing the currently running binary.
// Fails with ErrNotPackaged when the executable is not a zip container.
func FromExecutable() (*Archive, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: locating executable: %v", ErrNotPackaged, err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return open(exe, ErrNotPackaged)
}

// Open opens an explicit archive path, for deployments that ship content
// beside the binary instead of inside it.
func Open(path string) (*Archive, error) {
	return open(path, ErrArchiveRead)
}

func open(path string, notZip error) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveRead, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrArchiveRead, path, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: digest %s: %v", ErrArchiveRead, path, err)
	}

	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		f.Close()
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", notZip, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveRead, path, err)
	}

	a := &Archive{
		path:    path,
		digest:  hex.EncodeToString(h.Sum(nil)),
		entries: make([]Entry, 0, len(zr.File)),
		files:   make(map[string]*zip.File, len(zr.File)),
		f:       f,
	}
	for _, zf := range zr.File {
		dir := zf.FileInfo().IsDir()
		a.entries = append(a.entries, Entry{
			Name:     zf.Name,
			Dir:      dir,
			Size:     int64(zf.UncompressedSize64),
			Modified: zf.Modified,
		})
		if !dir {
			a.files[zf.Name] = zf
		}
	}
	return a, nil
}

// Path returns the filesystem path of the archive container.
func (a *Archive) Path() string { return a.path }

// Digest returns the hex sha256 of the archive file, computed once at open.
func (a *Archive) Digest() string { return a.digest }

// Entries returns the archive's member list in container order.
// Callers must not modify the returned slice.
func (a *Archive) Entries() []Entry { return a.entries }

// Open returns a fresh read stream over the named entry's bytes.
// The caller owns the stream and must close it.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	zf, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: no entry %q", ErrArchiveRead, name)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrArchiveRead, name, err)
	}
	return rc, nil
}

// Close releases the underlying file. Streams opened earlier stay usable
// until closed only if Close has not been called; call it at shutdown.
func (a *Archive) Close() error { return a.f.Close() }
