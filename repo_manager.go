package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/repository"
)

// RepositoryManager exposes all repositories bound to one shared unit of
// work. Changes staged through any of them commit together on SaveChanges.
type RepositoryManager interface {
	Users() Users
	Roles() Roles
	Store() *repository.Store
	SaveChanges(ctx context.Context) (int, error)
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Validate() error
	MustValidate()
}

type mngr struct {
	store *repository.Store
	users Users
	roles Roles
}

func NewRepositoryManager(db *bun.DB, opts ...repository.StoreOption) RepositoryManager {
	store := repository.NewStore(db, opts...)
	return &mngr{
		store: store,
		users: NewUsersRepository(store),
		roles: NewRolesRepository(store),
	}
}

func (m mngr) Validate() error {
	if m.store == nil {
		return errors.New("repository store should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) SaveChanges(ctx context.Context) (int, error) {
	return m.store.SaveChanges(ctx)
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return m.store.RunInTx(ctx, opts, f)
}

func (m mngr) Store() *repository.Store {
	return m.store
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}
