package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

// Capability is a permission-bearing role held by an actor.
type Capability string

const (
	CapPatient     Capability = "patient"
	CapTechnician  Capability = "technician"
	CapNeurologist Capability = "neurologist"
	CapAdmin       Capability = "admin"
)

// ParseCapability maps a role claim onto a Capability. Unknown roles are
// reported as not ok.
func ParseCapability(role string) (Capability, bool) {
	switch Capability(strings.ToLower(strings.TrimSpace(role))) {
	case CapPatient:
		return CapPatient, true
	case CapTechnician:
		return CapTechnician, true
	case CapNeurologist:
		return CapNeurologist, true
	case CapAdmin:
		return CapAdmin, true
	}
	return "", false
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	UserID       uuid.UUID
	Capabilities []Capability
}

// NewActor builds an Actor from a subject and raw role claims, dropping
// roles that do not name a capability.
func NewActor(userID uuid.UUID, roles []string) Actor {
	a := Actor{UserID: userID}
	for _, r := range roles {
		if c, ok := ParseCapability(r); ok && !a.Has(c) {
			a.Capabilities = append(a.Capabilities, c)
		}
	}
	return a
}

func (a Actor) Has(c Capability) bool {
	for _, have := range a.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool { return a.Has(CapAdmin) }

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool { return a.UserID != uuid.Nil }

// Guard is a declarative capability requirement for one operation.
type Guard struct {
	allowed []Capability
}

// AnyOf returns a guard satisfied by an actor holding at least one of caps.
// Admins pass only when CapAdmin is listed.
func AnyOf(caps ...Capability) Guard {
	return Guard{allowed: caps}
}

func (g Guard) Allows(a Actor) bool {
	for _, c := range g.allowed {
		if a.Has(c) {
			return true
		}
	}
	return false
}

// Check returns a PermissionDenied error when the actor does not satisfy g.
func (g Guard) Check(a Actor) error {
	if g.Allows(a) {
		return nil
	}
	names := make([]string, len(g.allowed))
	for i, c := range g.allowed {
		names[i] = string(c)
	}
	return apperr.PermissionDenied("requires role: %s", strings.Join(names, " or "))
}

// ActorKey is the request-context key holding the current Actor.
const ActorKey contextKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// ActorFromContext returns the Actor stored on ctx, or the zero Actor.
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(ActorKey).(Actor)
	return a
}
