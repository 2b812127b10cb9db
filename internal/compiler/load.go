package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadValue evaluates the CUE source of a model. path is either one .cue
// file or a directory whose .cue files form a single package.
func LoadValue(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("model path: %w", err)
	}

	dir, arg := path, "."
	if !info.IsDir() {
		dir, arg = filepath.Dir(path), filepath.Base(path)
	}

	insts := load.Instances([]string{arg}, &load.Config{Dir: dir})
	if len(insts) == 0 {
		return cue.Value{}, fmt.Errorf("model path %s: no CUE package found", path)
	}
	if err := insts[0].Err; err != nil {
		return cue.Value{}, fromCUE(err)
	}

	v := cuecontext.New().BuildInstance(insts[0])
	if err := v.Err(); err != nil {
		return cue.Value{}, fromCUE(err)
	}
	return v, nil
}

// Load evaluates and compiles the model at path.
func Load(path string) (*Model, error) {
	v, err := LoadValue(path)
	if err != nil {
		return nil, err
	}
	return Compile(v)
}

// ModelFiles lists the .cue files LoadValue reads for path, sorted.
// Subdirectories are not part of the package and are skipped.
func ModelFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("model path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("model path: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}
