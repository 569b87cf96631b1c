package scheduler

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// JobSpec is one declarative row of the job table: a name, a cadence, and
// whether it is enabled. Loaded from YAML (preferred) or TOML, mirroring
// the teacher's split between its chain config.toml and the deploy
// manifests it renders in YAML.
type JobSpec struct {
	Name     string        `yaml:"name" toml:"name"`
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
}

type jobTableFile struct {
	Jobs []JobSpec `yaml:"jobs" toml:"jobs"`
}

// LoadJobTableYAML reads a declarative job table from a YAML file.
func LoadJobTableYAML(path string) ([]JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job table %s: %w", path, err)
	}
	var file jobTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse job table %s: %w", path, err)
	}
	return file.Jobs, nil
}

// LoadJobTableTOML reads a declarative job table from a TOML file, used when
// operators prefer the same format as the daemon's static config.
func LoadJobTableTOML(path string) ([]JobSpec, error) {
	var file jobTableFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parse job table %s: %w", path, err)
	}
	return file.Jobs, nil
}

// Filter keeps only the enabled specs whose name has a registered
// implementation, logging nothing itself; callers combine this with a
// name->Job.Run registry built at daemon startup.
func Filter(specs []JobSpec, implemented map[string]func() Job) []Job {
	jobs := make([]Job, 0, len(specs))
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		factory, ok := implemented[spec.Name]
		if !ok {
			continue
		}
		job := factory()
		job.Interval = spec.Interval
		jobs = append(jobs, job)
	}
	return jobs
}
