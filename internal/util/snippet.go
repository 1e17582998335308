package util

import (
	"strings"
)

// LineAt returns the 1-based line number of offset within content. Offsets
// past the end clamp to the last line.
func LineAt(content string, offset int) int {
	if offset <= 0 {
		return 1
	}
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

// BodyLine maps an offset inside a function body to a line in source. The body
// is searched for from the start of line lineStart, so identical bodies later
// in the file resolve to their own position. When it cannot be found the line
// is counted from lineStart instead.
func BodyLine(source, body string, lineStart, offset int) int {
	if body != "" {
		from := LineOffset(source, lineStart)
		if idx := strings.Index(source[from:], body); idx >= 0 {
			return LineAt(source, from+idx+offset)
		}
	}
	if lineStart < 1 {
		lineStart = 1
	}
	if offset > len(body) {
		offset = len(body)
	}
	if offset < 0 {
		offset = 0
	}
	return lineStart + strings.Count(body[:offset], "\n")
}

// LineOffset returns the byte offset where the 1-based line starts, or
// len(content) when content has fewer lines.
func LineOffset(content string, line int) int {
	off := 0
	for n := 1; n < line; n++ {
		i := strings.IndexByte(content[off:], '\n')
		if i < 0 {
			return len(content)
		}
		off += i + 1
	}
	return off
}

// ExtractSnippet returns up to maxLines lines around the [start,end] region.
func ExtractSnippet(content string, start, end, maxLines int) string {
	if content == "" {
		return ""
	}
	if maxLines <= 0 {
		maxLines = 8
	}
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	s := max(0, start-1-maxLines/2)
	e := min(len(lines)-1, end-1+maxLines/2)
	if s > e {
		return ""
	}
	return strings.Join(lines[s:e+1], "\n")
}

// Compact collapses whitespace runs so matched text reads well in evidence.
func Compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
