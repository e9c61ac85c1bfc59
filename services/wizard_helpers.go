package services

import "strings"

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// uniqueStrings drops blanks and case-insensitive duplicates, keeping the
// first spelling seen.
func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// mergeMedia appends extra to base without duplicates, stopping at max.
func mergeMedia(base, extra []string, max int) []string {
	out := append([]string{}, base...)
	seen := make(map[string]bool, len(base))
	for _, m := range base {
		seen[m] = true
	}
	for _, m := range extra {
		if len(out) >= max {
			break
		}
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
