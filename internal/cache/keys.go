package cache

import "strings"

// NormalizeKeys trims every key, drops empty ones and collapses duplicates,
// keeping first-seen order
func NormalizeKeys(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
