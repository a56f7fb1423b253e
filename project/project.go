// Package project defines the project model and the registry that
// discovers projects on disk and tracks their enabled state.
package project

import "context"

// Capability describes one named behavior a project exposes.
// Capability names double as cache-invalidation dependencies.
type Capability struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Executor runs a query end-to-end against one project.
// Implementations live outside this module.
type Executor interface {
	Execute(ctx context.Context, query string) (string, error)
}

// Project is a self-contained agent the router selects among.
// Metadata is immutable after discovery except for the enabled flag,
// which the registry guards.
type Project struct {
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description" json:"description"`
	Version      string       `yaml:"version" json:"version"`
	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`

	executor Executor
	enabled  bool
}

// Executor returns the project's execution engine, which may be nil for
// projects discovered without one attached.
func (p *Project) Executor() Executor {
	return p.executor
}

// SetExecutor attaches an execution engine. Called once during wiring,
// before the registry is shared across goroutines.
func (p *Project) SetExecutor(e Executor) {
	p.executor = e
}

// CapabilityNames returns the names of all capabilities
func (p *Project) CapabilityNames() []string {
	names := make([]string, 0, len(p.Capabilities))
	for _, c := range p.Capabilities {
		names = append(names, c.Name)
	}
	return names
}
