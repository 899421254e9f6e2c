package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"anchorcred/internal/credential/models"
	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/sentinel"

	"github.com/stretchr/testify/suite"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"id":   {"type": "string"},
		"name": {"type": "string"},
		"age":  {"type": "integer", "minimum": 0}
	},
	"required": ["id", "name"]
}`

type countingLoader struct {
	next  *Registry
	loads int
}

func (c *countingLoader) Load(ctx context.Context, id string) (*models.Schema, error) {
	c.loads++
	return c.next.Load(ctx, id)
}

type SchemaSuite struct {
	suite.Suite
	ctx      context.Context
	registry *Registry
}

func TestSchemaSuite(t *testing.T) {
	suite.Run(t, new(SchemaSuite))
}

func (s *SchemaSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = NewRegistry()
	s.Require().NoError(s.registry.Register(models.Schema{
		ID:         "schema:person:v1",
		Title:      "Person",
		Definition: json.RawMessage(personSchema),
	}))
}

func (s *SchemaSuite) TestRegistry() {
	s.Run("load registered", func() {
		got, err := s.registry.Load(s.ctx, "schema:person:v1")
		s.Require().NoError(err)
		s.Equal("Person", got.Title)
	})
	s.Run("unknown schema", func() {
		_, err := s.registry.Load(s.ctx, "schema:nope")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
	s.Run("rejects broken definition", func() {
		err := s.registry.Register(models.Schema{ID: "bad", Definition: json.RawMessage(`{"type": 12}`)})
		s.Error(err)
	})
	s.Run("rejects missing id", func() {
		s.Error(s.registry.Register(models.Schema{Definition: json.RawMessage(personSchema)}))
	})
}

func (s *SchemaSuite) TestLoadDir() {
	dir := s.T().TempDir()
	doc := `{"id": "schema:degree:v1", "definition": {"type": "object"}}`
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "degree.json"), []byte(doc), 0o600))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	n, err := s.registry.LoadDir(dir)
	s.Require().NoError(err)
	s.Equal(1, n)
	_, err = s.registry.Load(s.ctx, "schema:degree:v1")
	s.NoError(err)
}

func (s *SchemaSuite) TestCachedLoader() {
	counting := &countingLoader{next: s.registry}
	cached := NewCachedLoader(counting, 8, time.Minute)

	for range 3 {
		_, err := cached.Load(s.ctx, "schema:person:v1")
		s.Require().NoError(err)
	}
	s.Equal(1, counting.loads)

	_, err := cached.Load(s.ctx, "schema:missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = cached.Load(s.ctx, "schema:missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(3, counting.loads, "misses are not cached")

	cached.Purge()
	_, err = cached.Load(s.ctx, "schema:person:v1")
	s.Require().NoError(err)
	s.Equal(4, counting.loads)
}

func (s *SchemaSuite) TestValidator() {
	v := NewValidator(s.registry)

	s.Run("conforming subject", func() {
		err := v.Validate(s.ctx, "schema:person:v1", map[string]any{"id": "did:example:alice", "name": "Alice", "age": 30})
		s.NoError(err)
	})
	s.Run("missing required claim", func() {
		err := v.Validate(s.ctx, "schema:person:v1", map[string]any{"id": "did:example:alice"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "name")
	})
	s.Run("wrong type", func() {
		err := v.Validate(s.ctx, "schema:person:v1", map[string]any{"id": "x", "name": "A", "age": "thirty"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown schema", func() {
		err := v.Validate(s.ctx, "schema:nope", map[string]any{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
