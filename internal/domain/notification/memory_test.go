package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type mockNotificationRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Notification
	clock time.Time
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		store: make(map[uuid.UUID]*Notification),
		clock: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *Notification) error {
	// notifications.title is VARCHAR(100).
	if utf8.RuneCountInString(n.Title) > MaxTitleLen {
		return fmt.Errorf("value too long for type character varying(%d)", MaxTitleLen)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	n.CreatedAt = m.clock
	cp := *n
	m.store[n.ID] = &cp
	return nil
}

func (m *mockNotificationRepo) forUser(userID uuid.UUID, unreadOnly bool) []*Notification {
	var out []*Notification
	for _, n := range m.store {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.forUser(userID, unreadOnly)
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.forUser(userID, true)), nil
}

func (m *mockNotificationRepo) GetForUser(_ context.Context, id, userID uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok || n.UserID != userID {
		return nil, apperr.NotFound("notification", id.String())
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok || n.UserID != userID {
		return apperr.NotFound("notification", id.String())
	}
	n.IsRead = true
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.store {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) MarkReadForConsultation(_ context.Context, userID, consultationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.store {
		if n.UserID == userID && n.RelatedConsultation != nil && *n.RelatedConsultation == consultationID {
			n.IsRead = true
		}
	}
	return nil
}

type stubDirectory map[account.Role][]uuid.UUID

func (d stubDirectory) IDsByRole(_ context.Context, role account.Role) ([]uuid.UUID, error) {
	return d[role], nil
}
