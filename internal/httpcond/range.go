package httpcond

import (
	"strconv"
	"strings"
)

// ByteRange is an inclusive byte interval within a resource of known size.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (br ByteRange) Length() int64 { return br.End - br.Start + 1 }

// ParseRange interprets a Range header value against a resource of the
// given size. It returns nil for headers it declines to treat as a valid
// sub-range request: an empty value, units other than bytes, multi-range
// sets, and malformed or contradictory specs. Declining means the caller
// serves the full representation.
//
// A well-formed range whose first-byte-pos is at or past the end of the
// resource is returned as parsed so the caller can answer 416; the end
// offset is otherwise clamped to the last byte of the resource.
func ParseRange(header string, size int64) *ByteRange {
	const prefix = "bytes="
	if header == "" || !strings.HasPrefix(header, prefix) {
		return nil
	}
	spec := strings.TrimSpace(header[len(prefix):])
	if spec == "" || strings.Contains(spec, ",") {
		return nil
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil
	}
	first, last := strings.TrimSpace(spec[:dash]), strings.TrimSpace(spec[dash+1:])

	if first == "" {
		// suffix form: last N bytes
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return nil
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return &ByteRange{Start: start, End: size - 1}
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return nil
		}
		if end > size-1 {
			end = size - 1
		}
	}
	if end < start {
		// open-ended range starting past the last byte: keep the start so
		// the caller reports 416 against the correct total length
		end = start
	}
	return &ByteRange{Start: start, End: end}
}
