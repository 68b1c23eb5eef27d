package feed

import "strings"

// ProviderSet is the configured provider allow-list in priority order. The
// first entry is the primary odds provider; identity fields of a merged
// match come from the highest-priority provider present in a merge group.
type ProviderSet struct {
	ordered []string
	index   map[string]int
}

func NewProviderSet(names []string) ProviderSet {
	ordered := make([]string, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, exists := index[name]; exists {
			continue
		}
		index[name] = len(ordered)
		ordered = append(ordered, name)
	}

	return ProviderSet{ordered: ordered, index: index}
}

func (s ProviderSet) Contains(provider string) bool {
	_, ok := s.index[strings.ToLower(strings.TrimSpace(provider))]
	return ok
}

// Priority returns the provider's rank, lower is higher priority. Unknown
// providers sort after every known one.
func (s ProviderSet) Priority(provider string) int {
	if rank, ok := s.index[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return rank
	}
	return len(s.ordered)
}

func (s ProviderSet) Primary() string {
	if len(s.ordered) == 0 {
		return ""
	}
	return s.ordered[0]
}

func (s ProviderSet) Names() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s ProviderSet) Len() int {
	return len(s.ordered)
}
