package notification

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

// UserDirectory resolves the recipients of a role-wide fan-out.
type UserDirectory interface {
	IDsByRole(ctx context.Context, role account.Role) ([]uuid.UUID, error)
}

type Service struct {
	repo  Repository
	users UserDirectory
}

func NewService(repo Repository, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

// Message is a notification body before its recipient is known.
type Message struct {
	Type                Type
	Title               string
	Message             string
	RelatedConsultation *uuid.UUID
	RelatedTPARequest   *uuid.UUID
	RelatedURL          string
}

// MaxTitleLen is the width of notifications.title in runes.
const MaxTitleLen = 100

// TitleFor joins prefix and subject, shortening subject so the result fits
// MaxTitleLen. The prefix is kept whole.
func TitleFor(prefix, subject string) string {
	room := MaxTitleLen - utf8.RuneCountInString(prefix)
	if room <= 0 {
		return clampTitle(prefix)
	}
	if r := []rune(subject); len(r) > room {
		subject = string(r[:room-1]) + "…"
	}
	return prefix + subject
}

func clampTitle(title string) string {
	if r := []rune(title); len(r) > MaxTitleLen {
		return string(r[:MaxTitleLen-1]) + "…"
	}
	return title
}

func (m Message) to(userID uuid.UUID) *Notification {
	n := &Notification{
		UserID:              userID,
		Type:                m.Type,
		Title:               clampTitle(m.Title),
		Message:             m.Message,
		RelatedConsultation: m.RelatedConsultation,
		RelatedTPARequest:   m.RelatedTPARequest,
	}
	if m.RelatedURL != "" {
		url := m.RelatedURL
		n.RelatedURL = &url
	}
	return n
}

// Notify writes m to one recipient.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, m Message) error {
	if userID == uuid.Nil {
		return nil
	}
	if err := s.repo.Create(ctx, m.to(userID)); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	db.AfterCommit(ctx, func() {
		metrics.NotificationsCreated.WithLabelValues(string(m.Type)).Inc()
	})
	return nil
}

// NotifyRole writes m to every user holding role and returns how many
// notifications were written.
func (s *Service) NotifyRole(ctx context.Context, role account.Role, m Message) (int, error) {
	ids, err := s.users.IDsByRole(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("list %s recipients: %w", role, err)
	}
	for _, id := range ids {
		if err := s.Notify(ctx, id, m); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func requireUser(actor auth.Actor) error {
	if !actor.Authenticated() {
		return apperr.PermissionDenied("authentication required")
	}
	return nil
}

// List returns the actor's own notifications, newest first. Listing does not
// mark anything as read.
func (s *Service) List(ctx context.Context, actor auth.Actor, unreadOnly bool, limit, offset int) (*Inbox, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	items, total, err := s.repo.ListByUser(ctx, actor.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return &Inbox{Items: items, Total: total, UnreadCount: unread}, nil
}

// Get returns one of the actor's notifications and marks it read.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Notification, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	n, err := s.repo.GetForUser(ctx, id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
			return nil, err
		}
		n.IsRead = true
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id, actor.UserID)
}

func (s *Service) MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, actor.UserID)
}

// MarkConsultationRead clears the actor's unread notifications about one
// consultation, as happens when the consultation is opened.
func (s *Service) MarkConsultationRead(ctx context.Context, actor auth.Actor, consultationID uuid.UUID) error {
	if !actor.Authenticated() {
		return nil
	}
	return s.repo.MarkReadForConsultation(ctx, actor.UserID, consultationID)
}

func (s *Service) UnreadCount(ctx context.Context, actor auth.Actor) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, actor.UserID)
}
