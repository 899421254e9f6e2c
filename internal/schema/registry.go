// Package schema resolves credential schemas and validates credential
// subjects against them.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"

	"github.com/xeipuuv/gojsonschema"
)

// Registry is an in-memory schema store. Schemas are checked to compile
// when registered.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]models.Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]models.Schema)}
}

// Register adds or replaces a schema.
func (r *Registry) Register(s models.Schema) error {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return fmt.Errorf("schema id is required")
	}
	if len(s.Definition) == 0 {
		return fmt.Errorf("schema %s: definition is required", s.ID)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(s.Definition)); err != nil {
		return fmt.Errorf("schema %s: %w", s.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.ID] = s
	return nil
}

func (r *Registry) Load(_ context.Context, schemaID string) (*models.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[schemaID]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", schemaID, sentinel.ErrNotFound)
	}
	return &s, nil
}

// LoadDir registers every *.json file in dir. Each file holds a
// {"id", "title", "definition"} document.
func (r *Registry) LoadDir(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return 0, fmt.Errorf("read schema file: %w", err)
		}
		var s models.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("decode %s: %w", filepath.Base(f), err)
		}
		if err := r.Register(s); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}
