package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/repository"
)

// Users is the user collection. Identifier lookups try username first and
// fall back to email, matching the login contract.
type Users interface {
	repository.Repository[*User]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByRefreshToken(ctx context.Context, token string) (*User, error)

	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	RotateSecurityStamp(user *User)
}

type users struct {
	repository.Repository[*User]
	store *repository.Store
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(store *repository.Store) Users {
	repo := repository.NewRepository[*User](store, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		store:      store,
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	trimmed := strings.TrimSpace(identifier)

	columns := []string{"username", "email"}
	for _, column := range columns {
		user, err := a.getByColumnFold(ctx, column, trimmed, criteria...)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}
		return user, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.getByColumnFold(ctx, "username", strings.TrimSpace(username))
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getByColumnFold(ctx, "email", strings.TrimSpace(email))
}

// GetByRefreshToken matches the stored token verbatim. Expiry is checked
// by the caller so an expired token can be reported differently from an
// unknown one if it ever needs to be.
func (a *users) GetByRefreshToken(ctx context.Context, token string) (*User, error) {
	return a.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.refresh_token = ?", token)
	})
}

func (a *users) UsernameExists(ctx context.Context, username string) (bool, error) {
	return a.Any(ctx, whereFold("username", username))
}

func (a *users) EmailExists(ctx context.Context, email string) (bool, error) {
	return a.Any(ctx, whereFold("email", email))
}

// RotateSecurityStamp assigns a fresh stamp and stages the user for
// update. Every outstanding stamp-derived token dies when the unit of
// work commits.
func (a *users) RotateSecurityStamp(user *User) {
	user.SecurityStamp = uuid.NewString()
	a.Update(user)
}

func (a *users) getByColumnFold(ctx context.Context, column, value string, criteria ...repository.SelectCriteria) (*User, error) {
	all := append([]repository.SelectCriteria{whereFold(column, value)}, criteria...)
	return a.Get(ctx, all...)
}

// whereFold compares case-insensitively so "Alice" and "alice" resolve to
// the same account.
func whereFold(column, value string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("LOWER(?TableAlias."+column+") = LOWER(?)", strings.TrimSpace(value))
	}
}
