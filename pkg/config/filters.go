package config

import "github.com/flowtestdev/flowtest/pkg/suite"

// RuntimeFilters is the selector predicate applied to discovered suites
// before graph construction (spec.md §6).
type RuntimeFilters struct {
	Priority     []string
	SuiteNames   []string
	NodeIDs      []string
	Tags         []string
	FilePatterns []string
	StepIDs      []string
}

// Matches reports whether s passes every non-empty suite-level filter
// dimension. StepIDs is not checked here; it is applied per step by the
// step executor.
func (f RuntimeFilters) Matches(s suite.Suite) bool {
	if len(f.Priority) > 0 && !containsStr(f.Priority, string(s.Metadata.Priority)) {
		return false
	}
	if len(f.SuiteNames) > 0 && !containsStr(f.SuiteNames, s.SuiteName) {
		return false
	}
	if len(f.NodeIDs) > 0 && !containsStr(f.NodeIDs, s.NodeID) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, s.Metadata.Tags) {
		return false
	}
	if len(f.FilePatterns) > 0 && !suite.MatchAny(f.FilePatterns, s.FilePath) {
		return false
	}
	return true
}

func containsStr(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if containsStr(b, x) {
			return true
		}
	}
	return false
}
