package assethandler

import (
	"errors"
	"fmt"
	"io"

	"github.com/mwhitford/zipserve/internal/assets"
	"github.com/mwhitford/zipserve/internal/log"
)

var ErrInvalidOptions = errors.New("assethandler: invalid options")

// Source resolves an archive entry name to a byte stream.
// *bundle.Archive satisfies it.
type Source interface {
	Open(name string) (io.ReadCloser, error)
}

type Options struct {
	Logger log.Logger

	// Index is the immutable resource index this handler serves from.
	Index *assets.Index

	// Source opens archive entries by their full (base-prefixed) name.
	Source Source

	// CacheControl, when non-empty, is set on 200/206 responses.
	// The archive never changes under a running process, so callers
	// typically use a long-lived immutable policy here.
	CacheControl string

	// OnServe, when set, receives the terminal status and body byte
	// count of every request this handler finished. Used to feed metrics.
	OnServe func(status int, bytes int64)
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
}

func (o *Options) validate() error {
	if o.Index == nil {
		return fmt.Errorf("%w: Index is nil", ErrInvalidOptions)
	}
	if o.Source == nil {
		return fmt.Errorf("%w: Source is nil", ErrInvalidOptions)
	}
	return nil
}
