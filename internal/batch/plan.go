// Package batch runs a plan of package operations through a bounded worker pool.
package batch

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"unipkg/pkg/manager"
)

// Plan is a list of independent steps loaded from TOML:
//
//	jobs = 2
//
//	[[step]]
//	id = "tools"
//	operation = "install"
//	packages = ["git", "vim>=9"]
//	backend = ["pacman"]
type Plan struct {
	Jobs  int    `toml:"jobs"`
	Steps []Step `toml:"step"`
}

// Step is one operation against one backend.
type Step struct {
	ID        string   `toml:"id"`
	Operation string   `toml:"operation"`
	Packages  []string `toml:"packages"`
	Backend   []string `toml:"backend"`
	Reinstall bool     `toml:"reinstall"`

	op    manager.Operation
	specs []manager.PackageSpec
}

// Kind returns the parsed operation. Valid after Validate.
func (s Step) Kind() manager.Operation { return s.op }

// Specs returns the parsed packages. Valid after Validate.
func (s Step) Specs() []manager.PackageSpec { return s.specs }

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates a plan.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown plan key %q", manager.ErrInvalidRequest, undecoded[0].String())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate parses every step and assigns ids to steps without one.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan has no steps", manager.ErrInvalidRequest)
	}
	if p.Jobs < 0 {
		return fmt.Errorf("%w: jobs must not be negative", manager.ErrInvalidRequest)
	}

	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.ID == "" {
			s.ID = uuid.NewString()[:8]
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate step id %q", manager.ErrInvalidRequest, s.ID)
		}
		seen[s.ID] = true

		op, err := manager.ParseOperation(s.Operation)
		if err != nil {
			return fmt.Errorf("step %s: %w", s.ID, err)
		}
		specs, err := manager.ParsePackageSpecs(s.Packages)
		if err != nil {
			return fmt.Errorf("step %s: %w", s.ID, err)
		}
		req := manager.OperationRequest{Kind: op, Packages: specs}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("step %s: %w", s.ID, err)
		}
		s.op = op
		s.specs = specs
	}
	return nil
}
