// Package store persists the declarative state collections: the task list,
// barrier list, human-input queue, and policy document. Each collection is
// one YAML file rewritten whole and atomically on every mutation, so
// concurrent readers (driver, monitor, CLI) never observe a partial write.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/wildloop/internal/lock"
	"github.com/msageha/wildloop/internal/model"
	yamlutil "github.com/msageha/wildloop/internal/yaml"
)

const (
	TasksFile    = "tasks.yaml"
	BarriersFile = "barriers.yaml"
	InputsFile   = "inputs.yaml"
	PolicyFile   = "policy.yaml"
)

// Store reads and rewrites the state files under <root>/state/.
type Store struct {
	root    string
	lockMap *lock.MutexMap
}

// New creates a store rooted at the wildloop directory. The MutexMap is
// shared with every other in-process writer so each file has one serializer.
func New(root string, lockMap *lock.MutexMap) *Store {
	if lockMap == nil {
		lockMap = lock.NewMutexMap()
	}
	return &Store{root: root, lockMap: lockMap}
}

// StateDir returns the directory holding the state files.
func (s *Store) StateDir() string {
	return filepath.Join(s.root, "state")
}

func (s *Store) path(name string) string {
	return filepath.Join(s.StateDir(), name)
}

// load reads one store file into out. A missing file is not an error; out
// keeps its zero value and the caller gets an empty collection. A corrupt
// file is quarantined, restored from .bak or regenerated as a skeleton, and
// re-read once.
func (s *Store) load(name, fileType string, out any) error {
	s.lockMap.Lock(name)
	defer s.lockMap.Unlock(name)
	return s.loadLocked(name, fileType, out)
}

func (s *Store) loadLocked(name, fileType string, out any) error {
	path := s.path(name)

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := yamlutil.ValidateSchemaHeaderFromBytes(content, fileType); err == nil {
		if err := yamlv3.Unmarshal(content, out); err == nil {
			return nil
		}
	}

	// Corrupt or wrong-typed file: quarantine, recover, re-read once.
	if err := yamlutil.RecoverCorruptedFile(s.root, path, fileType); err != nil {
		return fmt.Errorf("recover %s: %w", name, err)
	}
	content, err = os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("re-read %s after recovery: %w", name, err)
	}
	if err := yamlv3.Unmarshal(content, out); err != nil {
		return fmt.Errorf("parse %s after recovery: %w", name, err)
	}
	return nil
}

func (s *Store) save(name string, doc any) error {
	s.lockMap.Lock(name)
	defer s.lockMap.Unlock(name)

	if err := os.MkdirAll(s.StateDir(), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return yamlutil.AtomicWrite(s.path(name), doc)
}

// LoadTasks returns the task list; empty (never nil) when the file is absent.
func (s *Store) LoadTasks() (*model.TaskList, error) {
	tl := &model.TaskList{}
	if err := s.load(TasksFile, yamlutil.FileTypeTaskList, tl); err != nil {
		return nil, err
	}
	tl.SchemaVersion = yamlutil.CurrentSchemaVersion
	tl.FileType = yamlutil.FileTypeTaskList
	return tl, nil
}

func (s *Store) SaveTasks(tl *model.TaskList) error {
	tl.SchemaVersion = yamlutil.CurrentSchemaVersion
	tl.FileType = yamlutil.FileTypeTaskList
	return s.save(TasksFile, tl)
}

func (s *Store) LoadBarriers() (*model.BarrierList, error) {
	bl := &model.BarrierList{}
	if err := s.load(BarriersFile, yamlutil.FileTypeBarrierList, bl); err != nil {
		return nil, err
	}
	bl.SchemaVersion = yamlutil.CurrentSchemaVersion
	bl.FileType = yamlutil.FileTypeBarrierList
	return bl, nil
}

func (s *Store) SaveBarriers(bl *model.BarrierList) error {
	bl.SchemaVersion = yamlutil.CurrentSchemaVersion
	bl.FileType = yamlutil.FileTypeBarrierList
	return s.save(BarriersFile, bl)
}

// UpdateBarrier applies fn to the barrier with the given ID under the file
// lock and rewrites the whole list. Used by the monitor so a concurrent CLI
// edit between its load and save cannot be lost.
func (s *Store) UpdateBarrier(id string, fn func(*model.Barrier) error) error {
	s.lockMap.Lock(BarriersFile)
	defer s.lockMap.Unlock(BarriersFile)

	bl := &model.BarrierList{}
	if err := s.loadLocked(BarriersFile, yamlutil.FileTypeBarrierList, bl); err != nil {
		return err
	}

	b := bl.FindBarrier(id)
	if b == nil {
		return fmt.Errorf("barrier %q not found", id)
	}
	if err := fn(b); err != nil {
		return err
	}

	bl.SchemaVersion = yamlutil.CurrentSchemaVersion
	bl.FileType = yamlutil.FileTypeBarrierList
	if err := os.MkdirAll(s.StateDir(), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return yamlutil.AtomicWrite(s.path(BarriersFile), bl)
}

func (s *Store) LoadInputs() (*model.InputQueue, error) {
	iq := &model.InputQueue{}
	if err := s.load(InputsFile, yamlutil.FileTypeInputQueue, iq); err != nil {
		return nil, err
	}
	iq.SchemaVersion = yamlutil.CurrentSchemaVersion
	iq.FileType = yamlutil.FileTypeInputQueue
	return iq, nil
}

func (s *Store) SaveInputs(iq *model.InputQueue) error {
	iq.SchemaVersion = yamlutil.CurrentSchemaVersion
	iq.FileType = yamlutil.FileTypeInputQueue
	return s.save(InputsFile, iq)
}

// LoadPolicy returns the current policy, falling back to the default policy
// when no policy file exists yet.
func (s *Store) LoadPolicy() (model.HumanPolicy, error) {
	pf := &model.PolicyFile{}
	if err := s.load(PolicyFile, yamlutil.FileTypePolicy, pf); err != nil {
		return model.HumanPolicy{}, err
	}
	if pf.FileType == "" {
		return model.DefaultPolicy(), nil
	}
	return pf.Policy, nil
}

func (s *Store) SavePolicy(p model.HumanPolicy) error {
	pf := &model.PolicyFile{
		SchemaVersion: yamlutil.CurrentSchemaVersion,
		FileType:      yamlutil.FileTypePolicy,
		Policy:        p,
	}
	return s.save(PolicyFile, pf)
}
