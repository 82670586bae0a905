package suite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultIncludePatterns and DefaultExcludePatterns mirror the suite
// discovery defaults from the configuration table.
var (
	DefaultIncludePatterns = []string{"**/*.test.yml", "**/*.test.yaml"}
	DefaultExcludePatterns = []string{"**/node_modules/**", "**/drafts/**", "**/draft/**"}
)

// DiscoveryOptions configures a Discover call.
type DiscoveryOptions struct {
	Roots   []string
	Include []string
	Exclude []string
	Logger  zerolog.Logger
}

// DiscoveryResult is the outcome of one Discover call.
type DiscoveryResult struct {
	Suites   []Suite
	Warnings []error
}

// Discover scans the configured roots, parses every matched file, and
// returns normalized suites. Parse failures and malformed suites are
// collected as warnings rather than aborting (spec.md §4.1, §7).
func Discover(opts DiscoveryOptions) DiscoveryResult {
	include := opts.Include
	if len(include) == 0 {
		include = DefaultIncludePatterns
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = DefaultExcludePatterns
	}

	var result DiscoveryResult
	seenFiles := make(map[string]bool)

	for _, root := range opts.Roots {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if info.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			if MatchAny(exclude, rel) {
				return nil
			}
			if !MatchAny(include, rel) {
				return nil
			}
			abs, _ := filepath.Abs(path)
			if seenFiles[abs] {
				return nil
			}
			seenFiles[abs] = true

			raw, err := os.ReadFile(path)
			if err != nil {
				result.Warnings = append(result.Warnings, &errs.DiscoveryParseError{FilePath: path, Err: err})
				return nil
			}

			doc, parseErr := parseDocument(path, raw)
			if parseErr != nil {
				result.Warnings = append(result.Warnings, &errs.DiscoveryParseError{FilePath: path, Err: parseErr})
				return nil
			}

			if strings.TrimSpace(doc.NodeID) == "" || strings.TrimSpace(doc.SuiteName) == "" {
				result.Warnings = append(result.Warnings, &errs.DiscoveryParseError{
					FilePath: path,
					Err:      errMissingIdentity,
				})
				return nil
			}

			doc.FilePath = abs
			Normalize(&doc)
			result.Suites = append(result.Suites, doc)
			return nil
		})
	}

	return result
}

var errMissingIdentity = missingIdentityErr{}

type missingIdentityErr struct{}

func (missingIdentityErr) Error() string { return "suite missing required node_id or suite_name" }

// parseDocument parses a suite file as YAML or JSON based on its extension.
func parseDocument(path string, raw []byte) (Suite, error) {
	var s Suite
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(raw, &s); err != nil {
			return s, err
		}
	default:
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return s, err
		}
	}
	return s, nil
}
