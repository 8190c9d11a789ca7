package model

import (
	"fmt"
)

// Process describes one approval configuration: the set of approval levels a
// record has to pass and the topology in which they are evaluated. A process
// definition is immutable at runtime; saga instances reference it by ID.
type Process struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name,omitempty" json:"name,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Sequential  bool     `yaml:"sequential" json:"sequential"`
	Levels      []*Level `yaml:"levels" json:"levels"`
}

// Level is a single approval checkpoint within a process. For sequential
// processes the slice order in Process.Levels is the approval order.
type Level struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Validate returns all issues found in the definition. Topology is data, not
// behaviour: both sequential and parallel processes share one shape.
func (p *Process) Validate() []error {
	var issues []error
	if p.ID == "" {
		issues = append(issues, fmt.Errorf("process id is required"))
	}
	if len(p.Levels) == 0 {
		issues = append(issues, fmt.Errorf("process %q has no levels", p.ID))
	}
	seen := make(map[string]bool, len(p.Levels))
	for i, level := range p.Levels {
		if level == nil || level.ID == "" {
			issues = append(issues, fmt.Errorf("process %q: level %d has no id", p.ID, i))
			continue
		}
		if seen[level.ID] {
			issues = append(issues, fmt.Errorf("process %q: duplicate level id %q", p.ID, level.ID))
		}
		seen[level.ID] = true
	}
	return issues
}

// Level returns the level with the supplied id or nil.
func (p *Process) Level(id string) *Level {
	for _, level := range p.Levels {
		if level.ID == id {
			return level
		}
	}
	return nil
}

// First returns the first level of the process or nil when undefined.
func (p *Process) First() *Level {
	if len(p.Levels) == 0 {
		return nil
	}
	return p.Levels[0]
}

// Next returns the level following the supplied one in definition order, or
// nil when levelID is the last level (or unknown).
func (p *Process) Next(levelID string) *Level {
	for i, level := range p.Levels {
		if level.ID == levelID && i+1 < len(p.Levels) {
			return p.Levels[i+1]
		}
	}
	return nil
}

// LevelIDs returns all level ids in definition order.
func (p *Process) LevelIDs() []string {
	ids := make([]string, 0, len(p.Levels))
	for _, level := range p.Levels {
		ids = append(ids, level.ID)
	}
	return ids
}
