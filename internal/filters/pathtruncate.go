package filters

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis prefixes a path whose leading segments were elided.
const Ellipsis = "..."

// PathTruncate shortens path from the left so it fits in maxWidth runes.
// Whole leading segments are dropped until "..." plus the remaining tail fits.
// When only the final segment is left the separator before it is dropped too,
// so the shortest result is "..." plus the filename. The filename is never
// cut: when it cannot fit alongside the ellipsis the result is wider than
// maxWidth.
func PathTruncate(path string, maxWidth int) string {
	if utf8.RuneCountInString(path) <= maxWidth {
		return path
	}

	// Trailing separators belong to the final segment.
	last := strings.LastIndex(strings.TrimRight(path, "/"), "/")
	if last < 0 {
		return Ellipsis + path
	}

	budget := maxWidth - utf8.RuneCountInString(Ellipsis)
	tail := path
	for i := 0; i < last; {
		next := strings.IndexByte(path[i+1:], '/')
		if next < 0 {
			break
		}
		i += next + 1
		tail = path[i:]
		if utf8.RuneCountInString(tail) <= budget {
			break
		}
	}
	if utf8.RuneCountInString(tail) > budget {
		tail = path[last+1:]
	}
	return Ellipsis + tail
}
