// Package filter decides which volumes are protected from cleanup.
package filter

import (
	"sort"
)

// Whitelist protects any volume carrying at least one of its tag keys.
type Whitelist struct {
	keys map[string]bool
}

// New creates a Whitelist from the given tag keys.
func New(keys []string) *Whitelist {
	keyMap := make(map[string]bool, len(keys))
	for _, k := range keys {
		keyMap[k] = true
	}
	return &Whitelist{keys: keyMap}
}

// IsWhitelisted returns true if any tag key is in the whitelist.
// Tag values are ignored; nil or empty tags are never whitelisted.
func (w *Whitelist) IsWhitelisted(tags map[string]string) bool {
	if w == nil || len(tags) == 0 {
		return false
	}
	for k := range tags {
		if w.keys[k] {
			return true
		}
	}
	return false
}

// MatchedKey returns the first whitelisted key found in tags, in sorted order.
func (w *Whitelist) MatchedKey(tags map[string]string) (string, bool) {
	if !w.IsWhitelisted(tags) {
		return "", false
	}
	for _, k := range w.Keys() {
		if _, ok := tags[k]; ok {
			return k, true
		}
	}
	return "", false
}

// Keys returns the whitelisted tag keys, sorted.
func (w *Whitelist) Keys() []string {
	if w == nil {
		return nil
	}
	keys := make([]string, 0, len(w.keys))
	for k := range w.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
