package canonical

// Keyed is an item identified by a URL that can be rebuilt around a new one.
type Keyed[T any] interface {
	URL() string
	WithURL(u string) T
}

// Dedupe keeps the first item per canonical URL, in input order, with its
// URL rewritten to canonical form. Later duplicates are dropped.
func Dedupe[T Keyed[T]](items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key := Canonicalize(item.URL())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item.WithURL(key))
	}
	return out
}
