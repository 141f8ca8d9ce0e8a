package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  []Segment
	}{
		{
			name:  "empty query returns text unchanged",
			text:  "The Matrix",
			query: "",
			want:  []Segment{{Text: "The Matrix"}},
		},
		{
			name:  "empty text",
			text:  "",
			query: "a",
			want:  nil,
		},
		{
			name:  "case-insensitive prefix keeps original casing",
			text:  "Avatar",
			query: "AVA",
			want:  []Segment{{Text: "Ava", Match: true}, {Text: "tar"}},
		},
		{
			name:  "adjacent occurrences",
			text:  "aaa",
			query: "a",
			want: []Segment{
				{Text: "a", Match: true},
				{Text: "a", Match: true},
				{Text: "a", Match: true},
			},
		},
		{
			name:  "non-overlapping leftmost first",
			text:  "aaaa",
			query: "aa",
			want:  []Segment{{Text: "aa", Match: true}, {Text: "aa", Match: true}},
		},
		{
			name:  "odd remainder after non-overlapping matches",
			text:  "aaa",
			query: "aa",
			want:  []Segment{{Text: "aa", Match: true}, {Text: "a"}},
		},
		{
			name:  "query longer than text",
			text:  "Up",
			query: "Upgrade",
			want:  []Segment{{Text: "Up"}},
		},
		{
			name:  "query equals text",
			text:  "Heat",
			query: "heat",
			want:  []Segment{{Text: "Heat", Match: true}},
		},
		{
			name:  "match in the middle",
			text:  "The Dark Knight",
			query: "dark",
			want:  []Segment{{Text: "The "}, {Text: "Dark", Match: true}, {Text: " Knight"}},
		},
		{
			name:  "no match",
			text:  "Heat",
			query: "cold",
			want:  []Segment{{Text: "Heat"}},
		},
		{
			name:  "multibyte runes",
			text:  "Amélie et AMÉLIE",
			query: "amélie",
			want:  []Segment{{Text: "Amélie", Match: true}, {Text: " et "}, {Text: "AMÉLIE", Match: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Highlight(tt.text, tt.query)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, Join(got))
		})
	}
}

func TestHighlightReconstructsText(t *testing.T) {
	texts := []string{"", "a", "Star Wars", "star star STAR", "ß straße", "日本語の映画", "  padded  "}
	queries := []string{"", "a", "star", "S", "ß", "映画", " ", "zzzzzzzzzzzzzzzzzz"}

	for _, text := range texts {
		for _, q := range queries {
			assert.Equal(t, text, Join(Highlight(text, q)), "text=%q query=%q", text, q)
		}
	}
}

func TestHighlightAlternates(t *testing.T) {
	segs := Highlight("xax bab", "a")
	for i := 1; i < len(segs); i++ {
		if !segs[i].Match {
			assert.True(t, segs[i-1].Match, "two plain segments must never be adjacent")
		}
	}
}

func TestHasMatch(t *testing.T) {
	assert.True(t, HasMatch(Highlight("Matrix", "trix")))
	assert.False(t, HasMatch(Highlight("Matrix", "")))
	assert.False(t, HasMatch(nil))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "The [Mat]rix", Render("The Matrix", "mat", "[", "]"))
	assert.Equal(t, "The Matrix", Render("The Matrix", "", "[", "]"))
	assert.Equal(t, "<mark>a</mark><mark>a</mark>", Render("aa", "A", "<mark>", "</mark>"))
}
