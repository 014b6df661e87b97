package schema

import "sort"

// UnionLabels merges label sets into one sorted slice without duplicates or empty names.
func UnionLabels(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, name := range set {
			if name == "" {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasLabel reports whether a sorted label set contains name.
func HasLabel(labels []string, name string) bool {
	i := sort.SearchStrings(labels, name)
	return i < len(labels) && labels[i] == name
}
