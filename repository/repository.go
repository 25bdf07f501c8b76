package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SelectCriteria composes filtering and ordering onto a read query.
type SelectCriteria func(*bun.SelectQuery) *bun.SelectQuery

// Where adds a filter condition.
func Where(cond string, args ...any) SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(cond, args...)
	}
}

// OrderBy sorts ascending by column.
func OrderBy(column string) SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order(column + " ASC")
	}
}

// OrderByDesc sorts descending by column.
func OrderByDesc(column string) SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order(column + " DESC")
	}
}

// Limit caps the number of returned records.
func Limit(n int) SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(n)
	}
}

// ModelHandlers adapts a concrete model type to the generic repository.
type ModelHandlers[T Audited] struct {
	NewRecord func() T
	GetID     func(T) uuid.UUID
	SetID     func(T, uuid.UUID)
}

// Repository is the generic persistence contract over audited models.
// Writes are staged into the shared Store and take effect at SaveChanges;
// every default read path excludes logically deleted records.
type Repository[T Audited] interface {
	Add(entity T) T
	Update(entity T) T
	UpdateGuarded(entity T) T
	Delete(entity T)
	SaveChanges(ctx context.Context) (int, error)

	GetByID(ctx context.Context, id uuid.UUID, criteria ...SelectCriteria) (T, error)
	GetByIDUnscoped(ctx context.Context, id uuid.UUID) (T, error)
	Get(ctx context.Context, criteria ...SelectCriteria) (T, error)
	GetAll(ctx context.Context, criteria ...SelectCriteria) ([]T, error)
	Any(ctx context.Context, criteria ...SelectCriteria) (bool, error)

	Store() *Store
}

type repo[T Audited] struct {
	store    *Store
	handlers ModelHandlers[T]
}

// NewRepository builds a Repository for T bound to the shared store.
func NewRepository[T Audited](store *Store, handlers ModelHandlers[T]) Repository[T] {
	return &repo[T]{store: store, handlers: handlers}
}

func (r *repo[T]) Store() *Store { return r.store }

// Add stages an insertion. Audit fields stay zero until commit; the id is
// assigned immediately so callers can reference the new record in the same
// unit of work.
func (r *repo[T]) Add(entity T) T {
	r.store.StageInsert(entity)
	return entity
}

func (r *repo[T]) Update(entity T) T {
	r.store.StageUpdate(entity, false)
	return entity
}

// UpdateGuarded stages a modification that commits only if the record has
// not changed since it was read; SaveChanges fails with a concurrency
// conflict otherwise.
func (r *repo[T]) UpdateGuarded(entity T) T {
	r.store.StageUpdate(entity, true)
	return entity
}

// Delete stages a logical deletion. The record is marked deleted at commit
// time and never physically removed.
func (r *repo[T]) Delete(entity T) {
	r.store.StageDelete(entity)
}

func (r *repo[T]) SaveChanges(ctx context.Context) (int, error) {
	return r.store.SaveChanges(ctx)
}

func (r *repo[T]) GetByID(ctx context.Context, id uuid.UUID, criteria ...SelectCriteria) (T, error) {
	return r.get(ctx, append(criteria, Where("?TableAlias.id = ?", id)), true)
}

// GetByIDUnscoped fetches by primary key without the soft-delete filter.
// Internal use only: re-activation flows and audit inspection.
func (r *repo[T]) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (T, error) {
	return r.get(ctx, []SelectCriteria{Where("?TableAlias.id = ?", id)}, false)
}

func (r *repo[T]) Get(ctx context.Context, criteria ...SelectCriteria) (T, error) {
	return r.get(ctx, criteria, true)
}

func (r *repo[T]) get(ctx context.Context, criteria []SelectCriteria, scoped bool) (T, error) {
	record := r.handlers.NewRecord()

	q := r.store.DB().NewSelect().Model(record)
	if scoped {
		q = q.Where("?TableAlias.status != ?", StatusDeleted)
	}
	for _, c := range criteria {
		q = q.Apply(c)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, NewRecordNotFound()
		}
		return zero, fmt.Errorf("repository get: %w", err)
	}
	return record, nil
}

func (r *repo[T]) GetAll(ctx context.Context, criteria ...SelectCriteria) ([]T, error) {
	records := make([]T, 0)

	q := r.store.DB().NewSelect().
		Model(&records).
		Where("?TableAlias.status != ?", StatusDeleted)
	for _, c := range criteria {
		q = q.Apply(c)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("repository get all: %w", err)
	}
	return records, nil
}

func (r *repo[T]) Any(ctx context.Context, criteria ...SelectCriteria) (bool, error) {
	record := r.handlers.NewRecord()

	q := r.store.DB().NewSelect().
		Model(record).
		Where("?TableAlias.status != ?", StatusDeleted)
	for _, c := range criteria {
		q = q.Apply(c)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("repository any: %w", err)
	}
	return exists, nil
}
