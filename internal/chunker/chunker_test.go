package chunker

import (
	"slices"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t \r\n ", ""},
		{"already normal", "a b c", "a b c"},
		{"newlines and tabs", "page one\n\nline\ttwo", "page one line two"},
		{"leading and trailing", "   hello world \n", "hello world"},
		{"unicode space", "a  b", "a b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tc.in)
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size, overlap, want int
	}{
		{1000, 150, 850},
		{1000, 0, 1000},
		{1000, -20, 1000},
		{100, 100, 1},
		{100, 500, 1},
		{1, 0, 1},
	}
	for _, tc := range tests {
		if got := Step(tc.size, tc.overlap); got != tc.want {
			t.Errorf("Step(%d, %d) = %d, want %d", tc.size, tc.overlap, got, tc.want)
		}
	}
}

func TestSplit_Example(t *testing.T) {
	t.Parallel()

	chunks := Split(strings.Repeat("a", 2500), 1000, 150)

	var lengths []int
	for _, c := range chunks {
		lengths = append(lengths, len(c))
	}
	if want := []int{1000, 1000, 650}; !slices.Equal(lengths, want) {
		t.Fatalf("chunk lengths = %v, want %v", lengths, want)
	}
	if chunks[0][850:1000] != chunks[1][0:150] {
		t.Error("chunk 0 tail does not match chunk 1 head")
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\n\t"} {
		if got := Split(in, DefaultSize, DefaultOverlap); len(got) != 0 {
			t.Errorf("Split(%q) returned %d chunks, want 0", in, len(got))
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog.\n", 120)
	first := Split(text, 300, 40)
	second := Split(text, 300, 40)
	if !slices.Equal(first, second) {
		t.Fatal("re-chunking identical input produced different chunks")
	}
}

func TestSplit_OverlapNotLessThanSize(t *testing.T) {
	t.Parallel()

	text := "abcdefghij"
	for _, overlap := range []int{5, 6, 10, 50} {
		chunks := Split(text, 5, overlap)
		if len(chunks) != len(text) {
			t.Errorf("overlap=%d: got %d chunks, want %d", overlap, len(chunks), len(text))
		}
		for i, c := range chunks {
			if c == "" {
				t.Errorf("overlap=%d: chunk %d is empty", overlap, i)
			}
		}
	}
}

func TestSplit_CoverageAndOverlap(t *testing.T) {
	t.Parallel()

	text := Normalize(strings.Repeat("lorem ipsum dolor sit amet, consectetur adipiscing elit ", 73))

	tests := []struct {
		size, overlap int
	}{
		{1000, 150},
		{100, 0},
		{64, 63},
		{37, 11},
		{5000, 150},
	}

	for _, tc := range tests {
		chunks := Split(text, tc.size, tc.overlap)
		if got := reconstruct(chunks, tc.size, tc.overlap); got != text {
			t.Errorf("size=%d overlap=%d: reconstruction mismatch (len %d vs %d)",
				tc.size, tc.overlap, len(got), len(text))
		}
		for i := 0; i+1 < len(chunks); i++ {
			a, b := []rune(chunks[i]), []rune(chunks[i+1])
			shared := min(tc.overlap, tc.size, len(b))
			if tc.overlap <= 0 || len(a) < Step(tc.size, tc.overlap)+shared {
				continue
			}
			if string(a[len(a)-shared:]) != string(b[:shared]) {
				t.Errorf("size=%d overlap=%d: chunks %d/%d do not share %d characters",
					tc.size, tc.overlap, i, i+1, shared)
			}
		}
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ğüşöç", 50)
	chunks := Split(text, 30, 5)
	for i, c := range chunks {
		if n := len([]rune(c)); n > 30 {
			t.Errorf("chunk %d has %d runes, want <= 30", i, n)
		}
	}
	if got := reconstruct(chunks, 30, 5); got != text {
		t.Error("reconstruction of multibyte text failed")
	}
}

// reconstruct stitches chunks back together by dropping the part of each
// chunk that the previous chunk already covered.
func reconstruct(chunks []string, size, overlap int) string {
	step := Step(size, overlap)
	var out []rune
	for i, c := range chunks {
		r := []rune(c)
		start := i * step
		if skip := len(out) - start; skip > 0 {
			if skip >= len(r) {
				continue
			}
			r = r[skip:]
		}
		out = append(out, r...)
	}
	return string(out)
}
