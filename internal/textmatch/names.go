package textmatch

import (
	"strings"
	"unicode"
)

// NormalizeName normalizes an author name for comparison:
//   - Converts to lowercase
//   - Detects and reorders "Last, First" format to "First Last"
//   - Removes all non-letter, non-space characters (apostrophes, periods, hyphens, etc.)
//   - Collapses multiple spaces to a single space
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false

	for _, r := range name {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

// LastName returns the normalized last name of an author, or "" if none.
func LastName(name string) string {
	parts := strings.Fields(NormalizeName(name))
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// LastNames returns the set of normalized last names in names.
func LastNames(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if last := LastName(n); last != "" {
			set[last] = struct{}{}
		}
	}
	return set
}

// AuthorsIntersect reports whether the two author lists share at least one
// normalized last name. An empty source list always intersects.
func AuthorsIntersect(source, candidate []string) bool {
	src := LastNames(source)
	if len(src) == 0 {
		return true
	}
	for last := range LastNames(candidate) {
		if _, ok := src[last]; ok {
			return true
		}
	}
	return false
}
