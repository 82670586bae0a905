package interpolate

import "sync"

// cacheEntry holds a resolved template string plus the variable/registry
// names it referenced, so a write can invalidate only the templates it
// actually affects (spec.md §9 design note on the interpolation cache).
type cacheEntry struct {
	resolved string
	refs     []string
}

// templateCache maps raw template text to its last resolved value. It is
// intentionally simple (entries are dropped wholesale when their refs
// overlap a written name) rather than a full dependency-tracked
// invalidation graph, since suite templates are small and short-lived.
type templateCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newTemplateCache() *templateCache {
	return &templateCache{entries: make(map[string]cacheEntry)}
}

func (c *templateCache) get(template string) (string, []string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[template]
	if !ok {
		return "", nil, false
	}
	return e.resolved, e.refs, true
}

func (c *templateCache) set(template, resolved string, refs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[template] = cacheEntry{resolved: resolved, refs: refs}
}

// invalidate drops every cache entry whose referenced names include name,
// or any name sharing name as a dotted prefix (so writing "setup.token"
// also invalidates a template that read "setup.token.nested").
func (c *templateCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for template, e := range c.entries {
		for _, ref := range e.refs {
			if ref == name || hasDotPrefix(ref, name) || hasDotPrefix(name, ref) {
				delete(c.entries, template)
				break
			}
		}
	}
}

func hasDotPrefix(s, prefix string) bool {
	return len(s) > len(prefix) && s[:len(prefix)] == prefix && s[len(prefix)] == '.'
}
