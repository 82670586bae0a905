package suite

import (
	"regexp"
	"strings"
)

// globToRegexp translates a small glob dialect (`*`, `?`, `**`) into an
// anchored regexp. `**` matches across path separators, a bare `*` does
// not. There is no pack dependency that implements recursive-glob matching
// (`bmatcuk/doublestar` is not present anywhere in the retrieved examples),
// so this is a deliberate, narrowly-scoped stdlib implementation rather
// than a borrowed one.
func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
				// swallow an immediately following slash: "**/" matches zero dirs too
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.':
			b.WriteString(`\.`)
		case '/', '-', '_':
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// MatchAny reports whether relPath (slash-separated) matches any pattern.
func MatchAny(patterns []string, relPath string) bool {
	relPath = filepathToSlash(relPath)
	for _, p := range patterns {
		if globToRegexp(p).MatchString(relPath) {
			return true
		}
	}
	return false
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
