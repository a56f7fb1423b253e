package project

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/switchyard-ai/switchyard/core"
)

// manifestName is the per-project config file discovery looks for
const manifestName = "project.yaml"

// Directories that never contain projects
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
	"testdata":     true,
	"tmp":          true,
}

// Registry holds discovered projects and their enabled state.
// Metadata is immutable after discovery; only the enabled flag changes.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Project
	logger   core.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger core.Logger) *Registry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Registry{
		projects: make(map[string]*Project),
		logger:   logger,
	}
}

// Discover scans the given directories for project manifests. Each
// immediate subdirectory containing a project.yaml becomes a project.
// Bad directories are logged and skipped; discovery never aborts
// wholesale. Returns the projects loaded by this call.
func (r *Registry) Discover(dirs ...string) []*Project {
	var loaded []*Project

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			r.logger.Warn("Project directory not readable", map[string]interface{}{
				"operation": "project_discovery",
				"directory": dir,
				"error":     err.Error(),
			})
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if name[0] == '.' || skipDirs[name] {
				continue
			}

			project, err := r.loadManifest(filepath.Join(dir, name, manifestName))
			if err != nil {
				r.logger.Warn("Skipping project directory", map[string]interface{}{
					"operation": "project_discovery",
					"directory": filepath.Join(dir, name),
					"error":     err.Error(),
				})
				continue
			}

			r.mu.Lock()
			if _, exists := r.projects[project.Name]; exists {
				r.mu.Unlock()
				r.logger.Warn("Duplicate project name, keeping first", map[string]interface{}{
					"operation": "project_discovery",
					"project":   project.Name,
					"directory": filepath.Join(dir, name),
				})
				continue
			}
			r.projects[project.Name] = project
			r.mu.Unlock()

			loaded = append(loaded, project)
		}
	}

	r.logger.Info("Project discovery completed", map[string]interface{}{
		"operation":      "project_discovery",
		"projects_found": len(loaded),
	})

	return loaded
}

func (r *Registry) loadManifest(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var project Project
	if err := yaml.Unmarshal([]byte(core.ExpandEnvVars(string(data))), &project); err != nil {
		return nil, &core.CoreError{
			Op:      "registry.loadManifest",
			Kind:    "config",
			Message: "invalid project manifest",
			Err:     err,
		}
	}
	if project.Name == "" {
		return nil, &core.CoreError{
			Op:      "registry.loadManifest",
			Kind:    "config",
			Message: "project manifest missing name",
			Err:     core.ErrInvalidConfiguration,
		}
	}

	project.enabled = true
	return &project, nil
}

// Add registers a pre-built project. Used by tests and by hosts that
// construct projects programmatically instead of from disk.
func (r *Registry) Add(p *Project) error {
	if p == nil || p.Name == "" {
		return &core.CoreError{
			Op:      "registry.Add",
			Kind:    "config",
			Message: "project must have a name",
			Err:     core.ErrInvalidConfiguration,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[p.Name]; exists {
		return &core.CoreError{
			Op:   "registry.Add",
			Kind: "config",
			ID:   p.Name,
			Err:  core.ErrInvalidConfiguration,
		}
	}
	p.enabled = true
	r.projects[p.Name] = p
	return nil
}

// Get returns the project with the given name
func (r *Registry) Get(name string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.projects[name]
	if !exists {
		return nil, &core.CoreError{
			Op:   "registry.Get",
			Kind: "routing",
			ID:   name,
			Err:  core.ErrProjectNotFound,
		}
	}
	return p, nil
}

// ListEnabled returns all enabled projects sorted by name
func (r *Registry) ListEnabled() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var enabled []*Project
	for _, p := range r.projects {
		if p.enabled {
			enabled = append(enabled, p)
		}
	}
	sort.Slice(enabled, func(i, j int) bool {
		return enabled[i].Name < enabled[j].Name
	})
	return enabled
}

// ListAll returns every registered project sorted by name
func (r *Registry) ListAll() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all
}

// Enable marks a project as available for routing
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable removes a project from routing consideration
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.projects[name]
	if !exists {
		return &core.CoreError{
			Op:   "registry.setEnabled",
			Kind: "routing",
			ID:   name,
			Err:  core.ErrProjectNotFound,
		}
	}
	p.enabled = enabled
	return nil
}

// IsEnabled reports whether the named project is enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.projects[name]
	return exists && p.enabled
}
