package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type mockUserRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.Username == u.Username {
			return apperr.Validation("username", "username %q is already taken", u.Username)
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("user", id.String())
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user", username)
}

func (m *mockUserRepo) GetOrCreate(ctx context.Context, u *User) (*User, bool, error) {
	if existing, err := m.GetByUsername(ctx, u.Username); err == nil {
		return existing, false, nil
	}
	if err := m.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (m *mockUserRepo) IDsByRole(_ context.Context, role Role) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, u := range m.store {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockUserRepo) List(_ context.Context, role Role, limit, offset int) ([]*User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*User
	for _, u := range m.store {
		if role == "" || u.Role == role {
			items = append(items, u)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Username < items[j].Username })
	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total, nil
}
