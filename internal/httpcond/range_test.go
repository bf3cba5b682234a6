package httpcond

import "testing"

func TestParseRange(t *testing.T) {
	const size = 120
	cases := []struct {
		name   string
		header string
		want   *ByteRange
	}{
		{"absent", "", nil},
		{"closed", "bytes=0-99", &ByteRange{0, 99}},
		{"closed clamped to size", "bytes=100-200", &ByteRange{100, 119}},
		{"open ended", "bytes=100-", &ByteRange{100, 119}},
		{"single byte", "bytes=0-0", &ByteRange{0, 0}},
		{"suffix", "bytes=-20", &ByteRange{100, 119}},
		{"suffix larger than resource", "bytes=-500", &ByteRange{0, 119}},
		{"start past end kept for 416", "bytes=500-600", &ByteRange{500, 500}},
		{"open ended past end kept for 416", "bytes=500-", &ByteRange{500, 500}},
		{"zero suffix declined", "bytes=-0", nil},
		{"multi-range declined", "bytes=0-10,20-30", nil},
		{"other units declined", "items=0-10", nil},
		{"no spec", "bytes=", nil},
		{"no dash", "bytes=100", nil},
		{"inverted", "bytes=50-10", nil},
		{"negative start", "bytes=-5-10", nil},
		{"garbage", "bytes=a-b", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseRange(tc.header, size)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("ParseRange(%q) = %+v, want %+v", tc.header, got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("ParseRange(%q) = %+v, want %+v", tc.header, got, tc.want)
			}
		})
	}
}

func TestParseRange_EmptyResource(t *testing.T) {
	// any range against an empty resource is unsatisfiable; the parse
	// keeps the start so the caller can answer 416
	br := ParseRange("bytes=0-", 0)
	if br == nil || br.Start != 0 {
		t.Fatalf("ParseRange = %+v", br)
	}
}

func TestByteRange_Length(t *testing.T) {
	if got := (ByteRange{100, 119}).Length(); got != 20 {
		t.Errorf("Length = %d, want 20", got)
	}
	if got := (ByteRange{0, 0}).Length(); got != 1 {
		t.Errorf("Length = %d, want 1", got)
	}
}
