// Package highlight splits a label into plain and matched segments for a
// search query, so titles can be rendered with the query emphasised.
package highlight

import (
	"strings"
	"unicode"
)

// Segment is a run of text that either matched the query or did not.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// Highlight scans text for every case-insensitive, non-overlapping occurrence of
// query, leftmost first, and returns the alternating plain and matched segments.
// Matched segments keep the casing of text. Joining the segments yields text.
//
// An empty query returns text unchanged as a single plain segment. Empty text
// yields no segments.
func Highlight(text, query string) []Segment {
	if text == "" {
		return nil
	}
	if query == "" {
		return []Segment{{Text: text}}
	}

	t := []rune(text)
	q := []rune(query)
	if len(q) > len(t) {
		return []Segment{{Text: text}}
	}

	var segs []Segment
	plainStart := 0
	for i := 0; i+len(q) <= len(t); {
		if !matchAt(t, q, i) {
			i++
			continue
		}
		if i > plainStart {
			segs = append(segs, Segment{Text: string(t[plainStart:i])})
		}
		segs = append(segs, Segment{Text: string(t[i : i+len(q)]), Match: true})
		i += len(q)
		plainStart = i
	}
	if plainStart < len(t) {
		segs = append(segs, Segment{Text: string(t[plainStart:])})
	}
	return segs
}

func matchAt(t, q []rune, at int) bool {
	for j, r := range q {
		if !equalFold(t[at+j], r) {
			return false
		}
	}
	return true
}

// equalFold reports whether a and b are equal under simple Unicode case folding.
func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}

// Join concatenates the segment texts.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// HasMatch reports whether any segment matched.
func HasMatch(segs []Segment) bool {
	for _, s := range segs {
		if s.Match {
			return true
		}
	}
	return false
}

// Render returns text with every match wrapped in open and close.
func Render(text, query, open, close string) string {
	var sb strings.Builder
	for _, s := range Highlight(text, query) {
		if s.Match {
			sb.WriteString(open)
			sb.WriteString(s.Text)
			sb.WriteString(close)
			continue
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}
