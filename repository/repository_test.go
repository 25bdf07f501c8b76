package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateGadgets = `CREATE TABLE gadgets (
    id TEXT NOT NULL PRIMARY KEY,
    status TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_by TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    name TEXT NOT NULL,
    weight INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT uq_gadgets_name UNIQUE (name)
);`

type Gadget struct {
	bun.BaseModel `bun:"table:gadgets,alias:gdg"`
	AuditFields

	Name   string `bun:"name,notnull,unique"`
	Weight int    `bun:"weight"`
}

func gadgetHandlers() ModelHandlers[*Gadget] {
	return ModelHandlers[*Gadget]{
		NewRecord: func() *Gadget { return &Gadget{} },
		GetID: func(g *Gadget) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.ID
		},
		SetID: func(g *Gadget, id uuid.UUID) {
			if g != nil {
				g.ID = id
			}
		},
	}
}

func setupGadgetRepo(t *testing.T, opts ...StoreOption) (Repository[*Gadget], *Store) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateGadgets)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	store := NewStore(bunDB, opts...)
	return NewRepository[*Gadget](store, gadgetHandlers()), store
}

func TestAddStampsBothAuditPairsAtCommit(t *testing.T) {
	frozen := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo, _ := setupGadgetRepo(t, WithClock(func() time.Time { return frozen }))

	ctx := WithActor(context.Background(), "svc-test")

	gadget := repo.Add(&Gadget{Name: "widget"})
	require.NotEqual(t, uuid.Nil, gadget.ID, "id is assigned at staging time")
	assert.True(t, gadget.CreatedAt.IsZero(), "audit fields stay unset until commit")

	count, err := repo.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, StatusActive, gadget.Status)
	assert.Equal(t, "svc-test", gadget.CreatedBy)
	assert.Equal(t, "svc-test", gadget.UpdatedBy)
	assert.Equal(t, frozen, gadget.CreatedAt)
	assert.Equal(t, frozen, gadget.UpdatedAt)
}

func TestActorDefaultsToSentinelWhenMissing(t *testing.T) {
	repo, _ := setupGadgetRepo(t)

	gadget := repo.Add(&Gadget{Name: "anonymous"})
	_, err := repo.SaveChanges(context.Background())
	require.NoError(t, err)

	assert.Equal(t, UnknownActor, gadget.CreatedBy)
	assert.Equal(t, UnknownActor, gadget.UpdatedBy)
}

func TestDeleteIsLogicalAndHidesRecordFromReads(t *testing.T) {
	repo, store := setupGadgetRepo(t)
	ctx := WithActor(context.Background(), "svc-test")

	gadget := repo.Add(&Gadget{Name: "doomed"})
	_, err := repo.SaveChanges(ctx)
	require.NoError(t, err)

	repo.Delete(gadget)
	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, gadget.ID)
	assert.True(t, IsRecordNotFound(err), "default read path must hide deleted records")

	// The row itself survives with status=deleted and its audit history.
	var total int
	err = store.DB().NewSelect().
		ColumnExpr("count(*)").
		Table("gadgets").
		Where("id = ?", gadget.ID).
		Scan(ctx, &total)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	kept, err := repo.GetByIDUnscoped(ctx, gadget.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, kept.Status)
	assert.Equal(t, "svc-test", kept.CreatedBy)
}

func TestUpdateRestampsAndReaffirmsActiveStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo, _ := setupGadgetRepo(t, WithClock(func() time.Time { return now }))
	ctx := WithActor(context.Background(), "creator")

	gadget := repo.Add(&Gadget{Name: "evolving"})
	_, err := repo.SaveChanges(ctx)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	gadget.Weight = 42
	repo.Update(gadget)
	_, err = repo.SaveChanges(WithActor(context.Background(), "editor"))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Weight)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "creator", got.CreatedBy, "creation stamp is immutable")
	assert.Equal(t, "editor", got.UpdatedBy)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestGetAllFiltersOrdersAndExcludesDeleted(t *testing.T) {
	repo, _ := setupGadgetRepo(t)
	ctx := context.Background()

	a := repo.Add(&Gadget{Name: "alpha", Weight: 3})
	repo.Add(&Gadget{Name: "beta", Weight: 1})
	repo.Add(&Gadget{Name: "gamma", Weight: 2})
	_, err := repo.SaveChanges(ctx)
	require.NoError(t, err)

	repo.Delete(a)
	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	all, err := repo.GetAll(ctx, OrderByDesc("weight"))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "gamma", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)

	some, err := repo.GetAll(ctx, Where("weight < ?", 2))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "beta", some[0].Name)

	exists, err := repo.Any(ctx, Where("name = ?", "alpha"))
	require.NoError(t, err)
	assert.False(t, exists, "existence checks skip deleted records")
}

func TestUnitOfWorkCommitsAllOrNothing(t *testing.T) {
	repo, store := setupGadgetRepo(t)
	ctx := context.Background()

	repo.Add(&Gadget{Name: "unique-name"})
	repo.Add(&Gadget{Name: "unique-name"}) // violates the unique constraint

	_, err := repo.SaveChanges(ctx)
	require.Error(t, err)

	var total int
	err = store.DB().NewSelect().
		ColumnExpr("count(*)").
		Table("gadgets").
		Scan(ctx, &total)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "failed commit must leave no partial writes")

	// The staged set is restored so the caller can discard it explicitly.
	assert.Equal(t, 2, store.Pending())
	store.Discard()
	assert.Equal(t, 0, store.Pending())
}

func TestGuardedUpdateDetectsConcurrentWrite(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo, _ := setupGadgetRepo(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	gadget := repo.Add(&Gadget{Name: "contended"})
	_, err := repo.SaveChanges(ctx)
	require.NoError(t, err)

	// Two readers fetch the same version.
	first, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	first.Weight = 1
	repo.UpdateGuarded(first)
	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	second.Weight = 2
	repo.UpdateGuarded(second)
	_, err = repo.SaveChanges(ctx)
	require.Error(t, err)
	assert.True(t, IsConcurrencyConflict(err))

	repo.Store().Discard()

	got, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Weight, "the first committed write wins")
}

func TestUnguardedUpdateIsLastWriteWins(t *testing.T) {
	repo, _ := setupGadgetRepo(t)
	ctx := context.Background()

	gadget := repo.Add(&Gadget{Name: "racy"})
	_, err := repo.SaveChanges(ctx)
	require.NoError(t, err)

	first, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)

	first.Weight = 1
	repo.Update(first)
	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	second.Weight = 2
	repo.Update(second)
	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, gadget.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Weight, "unguarded writes silently overwrite")
}

func TestFailedCommitLeavesStagedModelsUnstamped(t *testing.T) {
	repo, store := setupGadgetRepo(t)
	ctx := WithActor(context.Background(), "svc-test")

	kept := repo.Add(&Gadget{Name: "kept"})
	_, err := repo.SaveChanges(ctx)
	require.NoError(t, err)

	before := *kept.Audit()

	repo.Delete(kept)
	repo.Add(&Gadget{Name: "kept"}) // breaks the commit on the unique name
	_, err = repo.SaveChanges(WithActor(context.Background(), "editor"))
	require.Error(t, err)

	// The rollback must also undo the in-memory stamping, so the struct
	// does not read as deleted while the row is still active.
	assert.Equal(t, before, *kept.Audit())
	assert.Equal(t, StatusActive, kept.Status)
	assert.Equal(t, "svc-test", kept.UpdatedBy)

	store.Discard()

	got, err := repo.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}
