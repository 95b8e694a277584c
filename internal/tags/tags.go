// Package tags turns free-text comma-separated input into the token sets the
// secondary indices are built from.
package tags

import "strings"

// ParseList splits comma-separated input, trims each token and drops empties.
// Original casing is preserved; this is the display form stored in metadata.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AllIndexTags expands display tags into the full normalized set indexed for
// a post. Every tag is lowercased; slash-delimited tags additionally
// contribute each path segment and each prefix path, so "Systems/Storage"
// can be found under "systems", "storage" and "systems/storage".
func AllIndexTags(displayTags []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tag := range displayTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		set[tag] = struct{}{}

		parts := strings.Split(tag, "/")
		if len(parts) < 2 {
			continue
		}
		var path strings.Builder
		for i, part := range parts {
			part = strings.TrimSpace(part)
			set[part] = struct{}{}
			if i > 0 {
				path.WriteByte('/')
			}
			path.WriteString(part)
			set[path.String()] = struct{}{}
		}
	}
	delete(set, "")
	return set
}

// IndexKeywords normalizes search keywords for indexing: lowercase, trimmed,
// empties dropped. No hierarchy expansion.
func IndexKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// NormalizeTag canonicalizes a single tag for the available-tag registry and
// for index lookups.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
