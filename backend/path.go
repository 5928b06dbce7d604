package backend

import (
	"strings"
)

// normalize splits a slash separated logical path into its canonical components.
// "." is dropped and ".." removes the previous component. A ".." at the root
// is ignored, so the result never points above the root.
func normalize(p string) []string {
	var components []string
	for _, c := range strings.Split(p, "/") {
		switch c {
		case "", ".":
		case "..":
			if len(components) > 0 {
				components = components[:len(components)-1]
			}
		default:
			components = append(components, c)
		}
	}
	return components
}

// Normalize returns the canonical absolute form of a logical path, e.g. "/a/b".
func Normalize(p string) string {
	return "/" + strings.Join(normalize(p), "/")
}

func isRoot(p string) bool {
	return len(normalize(p)) == 0
}
