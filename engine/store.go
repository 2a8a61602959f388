package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Store holds the currently loaded project. Playback reads the current
// pointer; edits and loads swap in a whole replacement project, so the
// scheduler can never observe a half-written edit.
type Store struct {
	current atomic.Pointer[Project]
}

// NewStore creates a store holding an empty project
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewProject(""))
	return s
}

// Current returns the current project snapshot
func (s *Store) Current() *Project {
	return s.current.Load()
}

// Replace validates p and swaps it in as the current project. A
// rejected edit reports its violations directly; ErrMalformedProject is
// reserved for the file load path (DecodeProject).
func (s *Store) Replace(p *Project) error {
	if errs := p.Validate(); len(errs) > 0 {
		return errors.Wrapf(errs[0], "invalid project (%d problems)", len(errs))
	}
	s.current.Store(p)
	return nil
}

// projectsDirFunc is swapped out by tests
var projectsDirFunc = defaultProjectsDir

func defaultProjectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "snapmorph", "projects"), nil
}

// ProjectsDir returns the projects directory path
func ProjectsDir() (string, error) {
	return projectsDirFunc()
}

// ListProjects returns the names of all saved projects
func ListProjects() ([]string, error) {
	dir, err := ProjectsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func projectPath(name string) (string, error) {
	dir, err := ProjectsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".json"), nil
}

// LoadProject reads a project file. Schema violations are reported as
// ErrMalformedProject and leave the store untouched.
func LoadProject(name string) (*Project, error) {
	path, err := projectPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "project %q", name)
		}
		return nil, err
	}

	return DecodeProject(data)
}

// DecodeProject parses project JSON and validates it
func DecodeProject(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(ErrMalformedProject, err.Error())
	}
	if errs := p.Validate(); len(errs) > 0 {
		return nil, errors.Wrap(ErrMalformedProject, errs[0].Error())
	}
	return &p, nil
}

// SaveProject writes a project to disk under its name
func SaveProject(name string, p *Project) error {
	dir, err := ProjectsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	path, err := projectPath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DeleteProject removes a saved project file
func DeleteProject(name string) error {
	path, err := projectPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "project %q", name)
		}
		return err
	}
	return nil
}
