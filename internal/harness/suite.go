package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteResult summarizes every scenario run from a directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure describes one failed scenario.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool {
	return r.Failed == 0
}

// FindScenarios returns the .yaml and .yml files under dir, sorted by path.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario file in paths. A scenario that
// fails to load or run counts as a failure; the suite keeps going.
func RunSuite(ctx context.Context, paths []string) *SuiteResult {
	res := &SuiteResult{}
	for _, path := range paths {
		res.Total++

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		fail := func(errs ...string) {
			res.Failed++
			res.Failures = append(res.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail(err.Error())
			continue
		}
		name = scenario.Name

		result, err := RunContext(ctx, scenario)
		if err != nil {
			fail(err.Error())
			continue
		}
		if !result.Pass {
			fail(result.Errors...)
			continue
		}
		res.Passed++
	}
	return res
}
