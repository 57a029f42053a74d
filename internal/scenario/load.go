package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stepwise/internal/compiler"
)

// LoadFile reads and validates one scenario file. YAML (.yaml, .yml) is
// decoded directly; CUE (.cue) is evaluated and exported to JSON first.
// Unknown fields are rejected in both cases.
func LoadFile(path string) (*Scenario, error) {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".cue":
		data, err = compiler.CompileFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported scenario file extension", path)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Source = path
	return s, nil
}

// Parse decodes and validates a scenario document. JSON input is accepted
// because it is valid YAML.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// FindFiles returns every scenario file under the given paths. Directories
// are walked recursively; files are taken as given. The result is sorted so
// load order does not depend on the filesystem.
func FindFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("scenario path not found: %s", root)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if path != root && info.Name() == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}
			switch filepath.Ext(path) {
			case ".yaml", ".yml", ".cue":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadAll loads every scenario under paths and enforces unique names.
// It collects all load errors instead of stopping at the first one.
func LoadAll(paths []string) ([]*Scenario, []error) {
	files, err := FindFiles(paths)
	if err != nil {
		return nil, []error{err}
	}

	var scenarios []*Scenario
	var errs []error
	seen := make(map[string]string)
	for _, f := range files {
		s, err := LoadFile(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[s.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate scenario name %q (first defined in %s)", f, s.Name, prev))
			continue
		}
		seen[s.Name] = f
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}
