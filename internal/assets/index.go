// Package assets builds the lookup table from bundled-resource names to
// metadata. The index is constructed once at startup and never mutated, so
// any number of concurrent requests can read it without locking.
package assets

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwhitford/zipserve/internal/bundle"
)

// Resource is one servable item: its name relative to the index base
// prefix, its exact byte length, and its archive modification time.
type Resource struct {
	Name     string
	Size     int64
	Modified time.Time
}

// LastModified is the modification time truncated to whole seconds.
// HTTP dates carry second resolution, so all conditional comparisons use
// this value rather than the raw archive timestamp.
func (r Resource) LastModified() time.Time {
	return r.Modified.Truncate(time.Second)
}

// ETag derives the weak validator from the modification time in epoch
// milliseconds. Two resources with the same timestamp but different
// content share a tag; the tag is only ever compared against the same
// index entry, so this stays within the validator's weakness contract.
func (r Resource) ETag() string {
	return fmt.Sprintf(`W/"%d"`, r.Modified.UnixMilli())
}

// EntrySource enumerates archive members. *bundle.Archive satisfies it.
type EntrySource interface {
	Entries() []bundle.Entry
}

// Index maps relative resource names to metadata for a single base prefix.
// Immutable after NewIndex returns.
type Index struct {
	base   string
	byName map[string]Resource
}

// NormalizeBase strips one leading slash and guarantees a trailing slash,
// so the prefix anchors at a path component boundary and works both as a
// prefix match and as the substring to strip.
func NormalizeBase(base string) string {
	base = strings.TrimPrefix(base, "/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// NewIndex scans every entry of src and retains the non-directory entries
// under base, keyed by their name with the normalized prefix removed.
func NewIndex(base string, src EntrySource) *Index {
	ix := &Index{
		base:   NormalizeBase(base),
		byName: make(map[string]Resource),
	}
	for _, e := range src.Entries() {
		if e.Dir || !strings.HasPrefix(e.Name, ix.base) {
			continue
		}
		rel := e.Name[len(ix.base):]
		if rel == "" {
			continue
		}
		ix.byName[rel] = Resource{Name: rel, Size: e.Size, Modified: e.Modified}
	}
	return ix
}

// Base returns the normalized archive prefix this index serves.
func (ix *Index) Base() string { return ix.base }

// Len returns the number of indexed resources.
func (ix *Index) Len() int { return len(ix.byName) }

// Lookup resolves a relative name. The name is used verbatim; a miss is
// the normal not-found outcome, including directory-like paths that only
// exist as namespace prefixes.
func (ix *Index) Lookup(name string) (Resource, bool) {
	r, ok := ix.byName[name]
	return r, ok
}

// ArchiveName re-prepends the base prefix, reproducing the original
// archive entry name for the given resource.
func (ix *Index) ArchiveName(r Resource) string { return ix.base + r.Name }
