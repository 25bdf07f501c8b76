package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type changeKind int

const (
	changeInsert changeKind = iota
	changeUpdate
	changeDelete
)

type stagedChange struct {
	kind    changeKind
	model   Audited
	guarded bool
	// guard snapshots the record's updated_at before stamping, so a
	// guarded write matches only the version the caller read.
	guard time.Time
}

// Store is the unit of work shared by every repository. Writes are staged
// and take effect only when SaveChanges commits them in a single
// transaction; that is also the only point where audit stamping happens.
type Store struct {
	db    *bun.DB
	now   func() time.Time
	retry RetryPolicy

	mu      sync.Mutex
	pending []stagedChange
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithClock injects a custom clock, useful for tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(policy RetryPolicy) StoreOption {
	return func(s *Store) {
		s.retry = policy
	}
}

// NewStore wraps a bun database in a unit-of-work store.
func NewStore(db *bun.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:    db,
		now:   time.Now,
		retry: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DB exposes the underlying database for read paths and raw queries.
func (s *Store) DB() *bun.DB { return s.db }

// Pending returns the number of staged, uncommitted changes.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Discard drops all staged changes without committing them.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

func (s *Store) stage(c stagedChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, c)
}

// StageInsert queues an insertion. The record id is assigned here when
// missing; audit fields are left untouched until commit.
func (s *Store) StageInsert(model Audited) {
	audit := model.Audit()
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	s.stage(stagedChange{kind: changeInsert, model: model})
}

// StageUpdate queues a modification.
func (s *Store) StageUpdate(model Audited, guarded bool) {
	s.stage(stagedChange{
		kind:    changeUpdate,
		model:   model,
		guarded: guarded,
		guard:   model.Audit().UpdatedAt,
	})
}

// StageDelete queues a logical deletion. The row is never removed; commit
// converts the intent into an update that marks the record deleted.
func (s *Store) StageDelete(model Audited) {
	s.stage(stagedChange{
		kind:  changeDelete,
		model: model,
		guard: model.Audit().UpdatedAt,
	})
}

// SaveChanges commits every staged change atomically and returns how many
// records were written. On failure nothing is applied and the staged set is
// restored so the caller can retry or discard.
func (s *Store) SaveChanges(ctx context.Context) (int, error) {
	s.mu.Lock()
	staged := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(staged) == 0 {
		return 0, nil
	}

	actor := ActorFromContext(ctx)
	count := 0

	// Stamping mutates the staged models in place; keep the pre-stamp
	// audit state so a rolled-back commit leaves them as the caller
	// staged them.
	snapshots := make([]AuditFields, len(staged))
	for i, c := range staged {
		snapshots[i] = *c.model.Audit()
	}

	err := s.retry.Do(ctx, func() error {
		count = 0
		return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			now := s.now().UTC()
			for _, c := range staged {
				if err := s.apply(ctx, tx, c, actor, now); err != nil {
					return err
				}
				count++
			}
			return nil
		})
	})
	if err != nil {
		for i, c := range staged {
			*c.model.Audit() = snapshots[i]
		}
		s.mu.Lock()
		s.pending = append(staged, s.pending...)
		s.mu.Unlock()
		return 0, err
	}

	return count, nil
}

func (s *Store) apply(ctx context.Context, tx bun.IDB, c stagedChange, actor string, now time.Time) error {
	audit := c.model.Audit()

	switch c.kind {
	case changeInsert:
		if audit.ID == uuid.Nil {
			audit.ID = uuid.New()
		}
		stampInsert(audit, actor, now)
		if _, err := tx.NewInsert().Model(c.model).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert record")
		}
		return nil

	case changeUpdate, changeDelete:
		if c.kind == changeDelete {
			stampDelete(audit, actor, now)
		} else {
			stampUpdate(audit, actor, now)
		}

		q := tx.NewUpdate().Model(c.model).WherePK()
		if c.guarded {
			q = q.Where("updated_at = ?", c.guard)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update record")
		}
		if c.guarded {
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return NewConcurrencyConflict().WithMetadata(map[string]any{
					"id": audit.ID.String(),
				})
			}
		}
		return nil
	}

	return goerrors.New("unknown staged change kind", goerrors.CategoryInternal)
}

// RunInTx exposes a raw transaction boundary for callers that bypass the
// staging path. Rollback on any error is guaranteed by bun.
func (s *Store) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.retry.Do(ctx, func() error {
			return s.db.RunInTx(ctx, opts, f)
		})
	}
}
