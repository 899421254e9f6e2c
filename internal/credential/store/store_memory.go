package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]models.IssuedCredential
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[string]models.IssuedCredential)}
}

func (s *InMemoryStore) Save(_ context.Context, issued models.IssuedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[issued.Credential.ID]; exists {
		return sentinel.ErrConflict
	}
	issued.Credential = issued.Credential.Clone()
	s.credentials[issued.Credential.ID] = issued
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (models.IssuedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issued, ok := s.credentials[id]
	if !ok {
		return models.IssuedCredential{}, sentinel.ErrNotFound
	}
	issued.Credential = issued.Credential.Clone()
	return issued, nil
}

// ListByIssuer returns the issuer's credentials, newest first.
func (s *InMemoryStore) ListByIssuer(_ context.Context, issuer string) ([]models.IssuedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.IssuedCredential
	for _, issued := range s.credentials {
		if issued.Credential.Issuer == issuer {
			issued.Credential = issued.Credential.Clone()
			out = append(out, issued)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (s *InMemoryStore) MarkRevoked(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.credentials[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if issued.RevokedAt == nil {
		issued.RevokedAt = &at
		s.credentials[id] = issued
	}
	return nil
}
