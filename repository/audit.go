package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle flag every stored record carries. Deletion is
// logical: rows flip to StatusDeleted and stay in the table.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// UnknownActor is stamped when the context carries no actor identity.
const UnknownActor = "unknown-actor"

// AuditFields is embedded by every model the store manages. The store is the
// only writer of these fields; callers never set them directly.
type AuditFields struct {
	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Status    Status    `bun:"status,notnull" json:"status,omitempty"`
	CreatedBy string    `bun:"created_by,notnull" json:"created_by,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at,omitempty"`
	UpdatedBy string    `bun:"updated_by,notnull" json:"updated_by,omitempty"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at,omitempty"`
}

// Audit exposes the embedded fields to the commit-time interceptor.
func (a *AuditFields) Audit() *AuditFields { return a }

// IsDeleted reports whether the record has been logically deleted.
func (a *AuditFields) IsDeleted() bool { return a.Status == StatusDeleted }

// Audited is the capability interface the store operates on generically.
type Audited interface {
	Audit() *AuditFields
}

type actorKey struct{}

// WithActor records the identity performing subsequent writes on the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext resolves the ambient caller identity, falling back to
// UnknownActor so a missing identity context never fails a commit.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return UnknownActor
	}
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return UnknownActor
}

func stampInsert(a *AuditFields, actor string, now time.Time) {
	a.Status = StatusActive
	a.CreatedBy = actor
	a.CreatedAt = now
	a.UpdatedBy = actor
	a.UpdatedAt = now
}

func stampUpdate(a *AuditFields, actor string, now time.Time) {
	// Ordinary edits re-affirm the non-deleted state.
	a.Status = StatusActive
	a.UpdatedBy = actor
	a.UpdatedAt = now
}

func stampDelete(a *AuditFields, actor string, now time.Time) {
	a.Status = StatusDeleted
	a.UpdatedBy = actor
	a.UpdatedAt = now
}
