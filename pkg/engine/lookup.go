package engine

import (
	"path/filepath"

	"github.com/flowtestdev/flowtest/pkg/suite"
)

// suiteLookup implements step.SuiteLookup by resolving a call's relative
// path against the suite file paths discovered for this run.
type suiteLookup struct {
	byPath map[string]suite.Suite // cleaned absolute-ish path -> suite
}

func newSuiteLookup(suites []suite.Suite) *suiteLookup {
	l := &suiteLookup{byPath: make(map[string]suite.Suite, len(suites))}
	for _, s := range suites {
		l.byPath[filepath.Clean(s.FilePath)] = s
	}
	return l
}

// ResolveByRelativePath joins relPath against the directory containing
// fromFilePath and looks up the resulting suite (spec.md §4.8).
func (l *suiteLookup) ResolveByRelativePath(fromFilePath, relPath string) (suite.Suite, bool) {
	dir := filepath.Dir(fromFilePath)
	joined := filepath.Clean(filepath.Join(dir, relPath))
	s, ok := l.byPath[joined]
	return s, ok
}
