package suite

import "strings"

// priorityKeywords maps case-insensitive substrings of a suite name to an
// inferred priority, in the evaluation order given by spec.md §4.1.
var priorityKeywords = []struct {
	substrings []string
	priority   Priority
}{
	{[]string{"critical", "smoke", "health"}, PriorityCritical},
	{[]string{"auth", "login", "core"}, PriorityHigh},
	{[]string{"edge", "optional", "experimental"}, PriorityLow},
}

// InferPriority infers a suite's priority from its name when no explicit
// priority was set. Falls back to PriorityMedium.
func InferPriority(suiteName string) Priority {
	lower := strings.ToLower(suiteName)
	for _, rule := range priorityKeywords {
		for _, kw := range rule.substrings {
			if strings.Contains(lower, kw) {
				return rule.priority
			}
		}
	}
	return PriorityMedium
}

// EstimatedDurationMs returns the suite's explicit estimate, or a default
// of 500ms per step.
func EstimatedDurationMs(s Suite) int64 {
	if s.Metadata.EstimatedDurationMs > 0 {
		return s.Metadata.EstimatedDurationMs
	}
	return int64(len(s.Steps)) * 500
}

// Normalize mutates s in place: infers priority, normalizes/dedupes
// depends, and fills in derived estimated duration.
func Normalize(s *Suite) {
	if s.Metadata.Priority == "" {
		s.Metadata.Priority = InferPriority(s.SuiteName)
	}
	s.Metadata.EstimatedDurationMs = EstimatedDurationMs(*s)
	s.Depends = NormalizeDependencies(s.Depends)
}

// NormalizeDependencies trims whitespace, drops entries lacking both
// node_id and path, and deduplicates by node_id (or by normalized path
// when only a path is given).
func NormalizeDependencies(deps []Dependency) []Dependency {
	seenNodeIDs := make(map[string]bool)
	seenPaths := make(map[string]bool)
	out := make([]Dependency, 0, len(deps))

	for _, d := range deps {
		d.NodeID = strings.TrimSpace(d.NodeID)
		d.Path = strings.TrimSpace(d.Path)
		if d.Empty() {
			continue
		}
		if d.NodeID != "" {
			if seenNodeIDs[d.NodeID] {
				continue
			}
			seenNodeIDs[d.NodeID] = true
			out = append(out, d)
			continue
		}
		normPath := normalizePathKey(d.Path)
		if seenPaths[normPath] {
			continue
		}
		seenPaths[normPath] = true
		out = append(out, d)
	}
	return out
}

func normalizePathKey(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return strings.ToLower(p)
}
