package publish

import (
	"strings"
)

// CleanPath validates filename as a repository-relative path and returns it
// with surrounding whitespace removed.
func CleanPath(filename string) (string, error) {
	p := strings.TrimSpace(filename)
	switch {
	case p == "":
		return "", &ValidationError{Filename: filename, Reason: "empty"}
	case strings.ContainsRune(p, 0):
		return "", &ValidationError{Filename: filename, Reason: "contains NUL byte"}
	case strings.Contains(p, `\`):
		return "", &ValidationError{Filename: filename, Reason: "contains backslash"}
	case strings.HasPrefix(p, "/"):
		return "", &ValidationError{Filename: filename, Reason: "absolute path"}
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return "", &ValidationError{Filename: filename, Reason: "empty path segment"}
		case ".", "..":
			return "", &ValidationError{Filename: filename, Reason: "dot segment"}
		}
	}
	return p, nil
}
