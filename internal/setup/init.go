// Package setup handles wildloop project initialization.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/wildloop/internal/model"
	"github.com/msageha/wildloop/internal/store"
	atomicyaml "github.com/msageha/wildloop/internal/yaml"
)

// StateDirName is the per-project directory wildloop keeps all state in.
const StateDirName = ".wildloop"

// Run initializes the .wildloop/ directory structure in the given project
// directory. projectName overrides the auto-detected name (defaults to the
// directory basename if empty).
func Run(projectDir, projectName string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, StateDirName)

	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	dirs := []string{
		"state",
		"events",
		"events/archive",
		"locks",
		"logs",
		"quarantine",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg := generateConfig(absDir, projectName)
	if err := atomicyaml.AtomicWrite(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}

	stores := map[string]string{
		store.TasksFile:    atomicyaml.FileTypeTaskList,
		store.BarriersFile: atomicyaml.FileTypeBarrierList,
		store.InputsFile:   atomicyaml.FileTypeInputQueue,
		store.PolicyFile:   atomicyaml.FileTypePolicy,
	}
	for name, fileType := range stores {
		path := filepath.Join(base, "state", name)
		if err := atomicyaml.AtomicWrite(path, atomicyaml.SkeletonForType(fileType)); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	// Empty alert log so a fold before the first append sees a valid file.
	alertLog := filepath.Join(base, "events", "alerts.jsonl")
	if err := os.WriteFile(alertLog, nil, 0644); err != nil {
		return fmt.Errorf("create alert log: %w", err)
	}

	if err := os.WriteFile(filepath.Join(base, "locks", "daemon.lock"), nil, 0600); err != nil {
		return fmt.Errorf("create daemon.lock: %w", err)
	}

	return nil
}

func generateConfig(projectDir, projectName string) model.Config {
	var cfg model.Config
	cfg.ApplyDefaults()
	if projectName != "" {
		cfg.Project.Name = projectName
	} else {
		cfg.Project.Name = filepath.Base(projectDir)
	}
	return cfg
}

// LoadConfig reads <base>/config.yaml and applies defaults. A missing file
// yields the default configuration.
func LoadConfig(base string) (model.Config, error) {
	var cfg model.Config
	path := filepath.Join(base, "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
