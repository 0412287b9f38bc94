package promptstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/types"
)

// YAMLStore persists prompts as one YAML file per prompt with atomic
// writes. Writers in different processes are serialized by a flock on the
// directory's lock file.
type YAMLStore struct {
	dir string
	now func() time.Time
}

var _ Store = (*YAMLStore)(nil)

// NewYAMLStore creates a store rooted at dir.
func NewYAMLStore(dir string) (*YAMLStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating prompts dir: %w", err)
	}

	if err := recoverInterruptedWrites(dir); err != nil {
		return nil, fmt.Errorf("recovering interrupted writes: %w", err)
	}

	return &YAMLStore{dir: dir, now: time.Now}, nil
}

// recoverInterruptedWrites handles .tmp files left from crashed writes.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".yaml.tmp") {
			continue
		}

		tmpPath := filepath.Join(dir, entry.Name())
		mainPath := strings.TrimSuffix(tmpPath, ".tmp")

		if _, err := os.Stat(mainPath); err == nil {
			os.Remove(tmpPath)
		} else {
			os.Rename(tmpPath, mainPath)
		}
	}
	return nil
}

// withLock runs fn holding an exclusive flock on the store directory.
func (s *YAMLStore) withLock(fn func() error) error {
	lockPath := filepath.Join(s.dir, ".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("locking prompts dir: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

func (s *YAMLStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", chainerr.PromptInvalid(id, "id must be a plain file name")
	}
	return filepath.Join(s.dir, id+".yaml"), nil
}

// Get retrieves a prompt by ID.
func (s *YAMLStore) Get(_ context.Context, id string) (*types.ChainPrompt, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chainerr.PromptNotFound(id)
		}
		return nil, chainerr.IOReadError(path, err)
	}

	var p types.ChainPrompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, chainerr.PromptInvalid(id, err.Error())
	}
	return &p, nil
}

// List returns all prompts matching filter.
func (s *YAMLStore) List(ctx context.Context, filter Filter) ([]*types.ChainPrompt, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	prompts := []*types.ChainPrompt{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") || strings.HasPrefix(name, ".") {
			continue
		}

		p, err := s.Get(ctx, strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue // Skip invalid files
		}
		if filter.Matches(p) {
			prompts = append(prompts, p)
		}
	}
	sortPrompts(prompts)
	return prompts, nil
}

// Create persists a new prompt. An empty ID is assigned; a taken ID fails.
func (s *YAMLStore) Create(_ context.Context, prompt *types.ChainPrompt) (*types.ChainPrompt, error) {
	p := prompt.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	assignStepIDs(p)
	if err := p.Validate(); err != nil {
		return nil, chainerr.PromptInvalid(p.ID, err.Error())
	}
	path, err := s.path(p.ID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	err = s.withLock(func() error {
		if _, err := os.Stat(path); err == nil {
			return chainerr.PromptAlreadyExists(p.ID)
		}
		return s.save(path, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces an existing prompt, keeping its creation time.
func (s *YAMLStore) Update(ctx context.Context, prompt *types.ChainPrompt) (*types.ChainPrompt, error) {
	p := prompt.Clone()
	assignStepIDs(p)
	if err := p.Validate(); err != nil {
		return nil, chainerr.PromptInvalid(p.ID, err.Error())
	}
	path, err := s.path(p.ID)
	if err != nil {
		return nil, err
	}

	err = s.withLock(func() error {
		existing, err := s.Get(ctx, p.ID)
		if err != nil {
			return err
		}
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = s.now().UTC()
		return s.save(path, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a prompt.
func (s *YAMLStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	return s.withLock(func() error {
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return chainerr.PromptNotFound(id)
			}
			return chainerr.IOWriteError(path, err)
		}
		return nil
	})
}

// Duplicate copies a prompt under a fresh ID with "(copy)" appended to
// its name.
func (s *YAMLStore) Duplicate(ctx context.Context, id string) (*types.ChainPrompt, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := src.Clone()
	dup.ID = ""
	dup.Name = src.Name + " (copy)"
	for i := range dup.Steps {
		dup.Steps[i].ID = ""
	}
	return s.Create(ctx, dup)
}

// save writes p atomically (write-then-rename).
func (s *YAMLStore) save(path string, p *types.ChainPrompt) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling prompt: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return chainerr.IOWriteError(tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return chainerr.IOWriteError(path, err)
	}
	return nil
}

func assignStepIDs(p *types.ChainPrompt) {
	for i := range p.Steps {
		if p.Steps[i].ID == "" {
			p.Steps[i].ID = uuid.NewString()
		}
	}
}
