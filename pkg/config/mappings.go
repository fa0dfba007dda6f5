package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/protomock/pkg/stub"
)

// MappingsDir is the directory below the root dir that holds stub files.
const MappingsDir = "mappings"

// mappingPattern selects stub files anywhere below the mappings directory.
const mappingPattern = "**/*.{json,yaml,yml}"

// LoadError describes a mapping file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// mappingFile is either a single stub or a list of stubs.
type mappingFile struct {
	Mappings  []*stub.Stub `json:"mappings" yaml:"mappings"`
	stub.Stub `yaml:",inline"`
}

// MappingsPath returns the mappings directory for rootDir.
func MappingsPath(rootDir string) string {
	return filepath.Join(rootDir, MappingsDir)
}

// LoadMappings reads every stub file below rootDir/mappings in lexical path
// order. A missing directory yields no stubs.
func LoadMappings(rootDir string) ([]*stub.Stub, error) {
	dir := MappingsPath(rootDir)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: access mappings directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config: %s is not a directory", dir)
	}

	files, err := doublestar.Glob(os.DirFS(dir), mappingPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("config: expand mappings: %w", err)
	}
	sort.Strings(files)

	var stubs []*stub.Stub
	for _, rel := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		loaded, err := LoadMappingFile(path)
		if err != nil {
			return nil, err
		}
		stubs = append(stubs, loaded...)
	}
	return stubs, nil
}

// LoadMappingFile reads the stubs in one JSON or YAML file. Every stub is validated.
func LoadMappingFile(path string) ([]*stub.Stub, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var file mappingFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	stubs := file.Mappings
	if len(stubs) == 0 {
		if reflect.ValueOf(file.Stub).IsZero() {
			return nil, nil
		}
		single := file.Stub
		stubs = []*stub.Stub{&single}
	}

	for i, st := range stubs {
		if err := st.Validate(); err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("mapping %d: %w", i, err)}
		}
		if st.ID == "" {
			st.ID = fileStubID(path, i)
		}
	}
	return stubs, nil
}

// fileStubID derives a stable ID so reloading a file replaces its stubs
// instead of duplicating them.
func fileStubID(path string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "file://%s#%d", filepath.ToSlash(path), index)).String()
}
