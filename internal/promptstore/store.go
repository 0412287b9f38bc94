// Package promptstore persists chain prompts.
package promptstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/types"
)

// Store provides keyed persistence for chain prompts.
type Store interface {
	// List returns prompts matching filter, most recently updated first.
	List(ctx context.Context, filter Filter) ([]*types.ChainPrompt, error)

	// Get retrieves a prompt by ID.
	Get(ctx context.Context, id string) (*types.ChainPrompt, error)

	// Create persists a new prompt, assigning IDs and timestamps.
	Create(ctx context.Context, prompt *types.ChainPrompt) (*types.ChainPrompt, error)

	// Update replaces an existing prompt.
	Update(ctx context.Context, prompt *types.ChainPrompt) (*types.ChainPrompt, error)

	// Delete removes a prompt.
	Delete(ctx context.Context, id string) error

	// Duplicate copies a prompt under a new ID.
	Duplicate(ctx context.Context, id string) (*types.ChainPrompt, error)
}

// Filter for listing prompts.
type Filter struct {
	Query string // Case-insensitive match on name or description (empty = all)
}

// Matches reports whether p passes the filter.
func (f Filter) Matches(p *types.ChainPrompt) bool {
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}

func sortPrompts(prompts []*types.ChainPrompt) {
	sort.SliceStable(prompts, func(i, j int) bool {
		if !prompts[i].UpdatedAt.Equal(prompts[j].UpdatedAt) {
			return prompts[i].UpdatedAt.After(prompts[j].UpdatedAt)
		}
		return prompts[i].Name < prompts[j].Name
	})
}

// ParseFile reads a chain prompt definition from a YAML file. IDs and
// timestamps may be omitted; the store assigns them on Create.
func ParseFile(path string) (*types.ChainPrompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chainerr.IOFileNotFound(path)
		}
		return nil, chainerr.IOReadError(path, err)
	}
	return Parse(data)
}

// Parse decodes a chain prompt definition from YAML.
func Parse(data []byte) (*types.ChainPrompt, error) {
	var p types.ChainPrompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing chain prompt: %w", err)
	}
	return &p, nil
}
