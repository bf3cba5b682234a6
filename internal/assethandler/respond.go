package assethandler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/mwhitford/zipserve/internal/assets"
	"github.com/mwhitford/zipserve/internal/httpcond"
	"github.com/mwhitford/zipserve/internal/xerrors"
)

const fallbackContentType = "application/octet-stream"

// respond runs the conditional-and-range decision procedure for an
// indexed resource and emits the terminal response.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res assets.Resource) {
	etag := res.ETag()
	lastMod := res.LastModified()

	rng := httpcond.ParseRange(r.Header.Get("Range"), res.Size)
	status := httpcond.Evaluate(r, lastMod, etag, rng != nil)

	if status == http.StatusPartialContent {
		if rng.Start >= res.Size {
			status = http.StatusRequestedRangeNotSatisfiable
		} else {
			// satisfiable partial reads share the full-read emission
			// path; the range argument is the only difference
			status = http.StatusOK
		}
	} else {
		rng = nil
	}

	hdr := w.Header()
	switch status {
	case http.StatusNotModified:
		hdr.Set("ETag", etag)
		hdr.Set("Vary", "Accept-Encoding")
		hdr.Set("Last-Modified", httpcond.FormatTime(lastMod))
		w.WriteHeader(http.StatusNotModified)
		h.observe(http.StatusNotModified, 0)

	case http.StatusPreconditionFailed:
		http.Error(w, http.StatusText(http.StatusPreconditionFailed), http.StatusPreconditionFailed)
		h.observe(http.StatusPreconditionFailed, 0)

	case http.StatusRequestedRangeNotSatisfiable:
		hdr.Set("Content-Range", fmt.Sprintf("bytes */%d", res.Size))
		http.Error(w, http.StatusText(http.StatusRequestedRangeNotSatisfiable), http.StatusRequestedRangeNotSatisfiable)
		h.observe(http.StatusRequestedRangeNotSatisfiable, 0)

	case http.StatusOK:
		h.sendContent(w, r, res, rng)

	default:
		// the evaluator contract allows no other candidate; this is an
		// internal bug, not client behavior
		h.opts.Logger.Error(r.Context(),
			xerrors.Newf("conditional evaluator returned %d", status),
			"unexpected conditional status",
			"resource", res.Name,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		h.observe(http.StatusInternalServerError, 0)
	}
}

// sendContent emits a 200 or, when rng is non-nil, a 206 with the
// requested sub-range. The entry stream is opened before any header is
// written so an open failure can still fail the request cleanly, and it
// is closed on every exit path.
func (h *Handler) sendContent(w http.ResponseWriter, r *http.Request, res assets.Resource, rng *httpcond.ByteRange) {
	ctx := r.Context()
	hdr := w.Header()

	status := http.StatusOK
	length := res.Size
	if rng != nil {
		status = http.StatusPartialContent
		length = rng.Length()
	}

	writeHeaders := func() {
		ct := mime.TypeByExtension(path.Ext(res.Name))
		if ct == "" {
			ct = fallbackContentType
		}
		hdr.Set("Content-Type", ct)
		hdr.Set("Content-Length", strconv.FormatInt(length, 10))
		hdr.Set("Last-Modified", httpcond.FormatTime(res.LastModified()))
		hdr.Set("ETag", res.ETag())
		hdr.Set("Vary", "Accept-Encoding")
		hdr.Set("Accept-Ranges", "bytes")
		if rng != nil {
			hdr.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, res.Size))
		}
		if cc := h.opts.CacheControl; cc != "" {
			hdr.Set("Cache-Control", cc)
		}
		w.WriteHeader(status)
	}

	if r.Method == http.MethodHead {
		writeHeaders()
		h.observe(status, 0)
		return
	}

	src, err := h.opts.Source.Open(h.opts.Index.ArchiveName(res))
	if err != nil {
		h.opts.Logger.Error(ctx, xerrors.EnsureTrace(err), "opening resource stream",
			"resource", res.Name,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		h.observe(http.StatusInternalServerError, 0)
		return
	}
	defer src.Close()

	writeHeaders()

	if rng != nil {
		if _, err := io.CopyN(io.Discard, src, rng.Start); err != nil {
			h.opts.Logger.Error(ctx, xerrors.EnsureTrace(err), "seeking resource stream",
				"resource", res.Name, "offset", rng.Start,
			)
			h.observe(status, 0)
			return
		}
	}

	n, err := io.CopyN(w, src, length)
	if err != nil {
		// headers are already on the wire; the connection is all that's
		// left to abort, which happens when the handler returns
		h.opts.Logger.Error(ctx, xerrors.EnsureTrace(err), "copying resource body",
			"resource", res.Name, "written", n, "length", length,
		)
	}
	h.observe(status, n)
}
