package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testStamp = time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		hdr := &zip.FileHeader{Name: name, Modified: testStamp}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.zip")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func testFiles() map[string]string {
	return map[string]string{
		"web/static/app.js":       "console.log('hi')",
		"web/static/css/site.css": "body{margin:0}",
		"web/static/empty.txt":    "",
		"other/readme.md":         "# other",
	}
}

func TestOpen_EnumeratesEntries(t *testing.T) {
	a, err := Open(writeArchive(t, zipBytes(t, testFiles())))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	byName := map[string]Entry{}
	for _, e := range a.Entries() {
		byName[e.Name] = e
	}
	e, ok := byName["web/static/app.js"]
	if !ok {
		t.Fatal("app.js not enumerated")
	}
	if e.Dir {
		t.Error("app.js marked as directory")
	}
	if e.Size != int64(len("console.log('hi')")) {
		t.Errorf("Size = %d", e.Size)
	}
	if !e.Modified.Equal(testStamp) {
		t.Errorf("Modified = %v, want %v", e.Modified, testStamp)
	}
}

func TestOpen_StreamsEntryBytes(t *testing.T) {
	a, err := Open(writeArchive(t, zipBytes(t, testFiles())))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	rc, err := a.Open("web/static/css/site.css")
	if err != nil {
		t.Fatalf("Open entry: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "body{margin:0}" {
		t.Errorf("body = %q", got)
	}

	if _, err := a.Open("web/static/missing.js"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestOpen_AppendedArchive(t *testing.T) {
	// simulates content appended to an executable: arbitrary leading
	// bytes, central directory at the end
	data := append([]byte("#!/bin/sh\nexec true\n"), zipBytes(t, testFiles())...)
	a, err := Open(writeArchive(t, data))
	if err != nil {
		t.Fatalf("Open appended archive: %v", err)
	}
	defer a.Close()

	rc, err := a.Open("web/static/app.js")
	if err != nil {
		t.Fatalf("Open entry: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "console.log('hi')" {
		t.Errorf("body = %q", got)
	}
}

func TestOpen_NotAZip(t *testing.T) {
	path := writeArchive(t, []byte("just some text, no central directory"))
	_, err := Open(path)
	if !errors.Is(err, ErrArchiveRead) {
		t.Fatalf("err = %v, want ErrArchiveRead", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.zip"))
	if !errors.Is(err, ErrArchiveRead) {
		t.Fatalf("err = %v, want ErrArchiveRead", err)
	}
}

func TestFromExecutable_TestBinaryNotPackaged(t *testing.T) {
	// the test binary carries no appended archive
	_, err := FromExecutable()
	if !errors.Is(err, ErrNotPackaged) {
		t.Fatalf("err = %v, want ErrNotPackaged", err)
	}
}

func TestDigest_StableAcrossOpens(t *testing.T) {
	path := writeArchive(t, zipBytes(t, testFiles()))
	a1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a1.Close()
	a2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a2.Close()

	if a1.Digest() == "" || a1.Digest() != a2.Digest() {
		t.Errorf("digests %q vs %q", a1.Digest(), a2.Digest())
	}
	if a1.Path() != path {
		t.Errorf("Path = %q", a1.Path())
	}
}
