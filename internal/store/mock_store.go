// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject directory failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory PrincipalStore and AuditLogger for testing.
type MockStore struct {
	mu         sync.RWMutex
	principals map[string]*DelegatedPrincipal // keyed by principal ID
	audit      []AuditEntry

	// Err, when set, is returned by every read to simulate an unavailable directory.
	Err error
}

var (
	_ PrincipalStore = (*MockStore)(nil)
	_ AuditLogger    = (*MockStore)(nil)
)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		principals: make(map[string]*DelegatedPrincipal),
	}
}

// CreateDelegatedPrincipal stores a copy of the principal.
func (m *MockStore) CreateDelegatedPrincipal(ctx context.Context, p *DelegatedPrincipal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PrincipalStatusActive
	}
	for _, existing := range m.principals {
		if normalizeEmail(existing.Email) == normalizeEmail(p.Email) {
			return ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	m.principals[p.ID] = copyPrincipal(p)
	return nil
}

// GetDelegatedPrincipal retrieves a principal by ID.
func (m *MockStore) GetDelegatedPrincipal(ctx context.Context, id string) (*DelegatedPrincipal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPrincipal(p), nil
}

// GetDelegatedPrincipalByEmail retrieves a principal by case-insensitive email.
func (m *MockStore) GetDelegatedPrincipalByEmail(ctx context.Context, email string) (*DelegatedPrincipal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	want := normalizeEmail(email)
	for _, p := range m.principals {
		if normalizeEmail(p.Email) == want {
			return copyPrincipal(p), nil
		}
	}
	return nil, ErrNotFound
}

// ListDelegatedPrincipals returns principals ordered by creation time.
func (m *MockStore) ListDelegatedPrincipals(ctx context.Context, parentAccountID string) ([]*DelegatedPrincipal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := []*DelegatedPrincipal{}
	for _, p := range m.principals {
		if parentAccountID == "" || p.ParentAccountID == parentAccountID {
			result = append(result, copyPrincipal(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateDelegatedPrincipalStatus changes a principal's status.
func (m *MockStore) UpdateDelegatedPrincipalStatus(ctx context.Context, id string, status PrincipalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteDelegatedPrincipal removes a principal.
func (m *MockStore) DeleteDelegatedPrincipal(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.principals[id]; !ok {
		return ErrNotFound
	}
	delete(m.principals, id)
	return nil
}

// AppendAuditLog records an audit entry in memory.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.audit = append(m.audit, *e)
	return nil
}

// AuditEntries returns a copy of the recorded audit entries, oldest first.
func (m *MockStore) AuditEntries() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]AuditEntry, len(m.audit))
	copy(result, m.audit)
	return result
}

func copyPrincipal(p *DelegatedPrincipal) *DelegatedPrincipal {
	c := *p
	c.Permissions = append([]string{}, p.Permissions...)
	return &c
}
