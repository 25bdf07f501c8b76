package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/repository"
)

// Roles manages the role catalog and the user-role assignments.
type Roles interface {
	repository.Repository[*Role]

	GetByName(ctx context.Context, name string) (*Role, error)
	// GetOrCreate returns the named role, staging a new one when none
	// exists. The caller commits via SaveChanges.
	GetOrCreate(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, name, description string) (*Role, error)
	// DeleteRole stages a logical delete, refusing while assignments
	// still reference the role.
	DeleteRole(ctx context.Context, role *Role) error

	Assign(ctx context.Context, user *User, role *Role) error
	Unassign(ctx context.Context, user *User, role *Role) error
	RolesOf(ctx context.Context, userID uuid.UUID) ([]*Role, error)
	AssignmentCount(ctx context.Context, roleID uuid.UUID) (int, error)
}

type roles struct {
	repository.Repository[*Role]
	assignments repository.Repository[*RoleAssignment]
	store       *repository.Store
}

var (
	_ Roles                        = (*roles)(nil)
	_ repository.Repository[*Role] = (*roles)(nil)
)

func NewRolesRepository(store *repository.Store) Roles {
	repo := repository.NewRepository[*Role](store, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	assignments := repository.NewRepository[*RoleAssignment](store, repository.ModelHandlers[*RoleAssignment]{
		NewRecord: func() *RoleAssignment { return &RoleAssignment{} },
		GetID: func(a *RoleAssignment) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *RoleAssignment, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &roles{
		Repository:  repo,
		assignments: assignments,
		store:       store,
	}
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.Get(ctx, whereFold("name", name))
}

func (r *roles) GetOrCreate(ctx context.Context, name string) (*Role, error) {
	role, err := r.GetByName(ctx, name)
	if err == nil {
		return role, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	role = &Role{Name: name}
	return r.Add(role), nil
}

func (r *roles) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	exists, err := r.Any(ctx, whereFold("name", name))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrRoleNameTaken
	}

	role := &Role{Name: name, Description: description}
	return r.Add(role), nil
}

func (r *roles) DeleteRole(ctx context.Context, role *Role) error {
	count, err := r.AssignmentCount(ctx, role.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRoleInUse
	}

	r.Delete(role)
	return nil
}

// Assign stages a user-role link. Assigning a role the user already holds
// is a no-op.
func (r *roles) Assign(ctx context.Context, user *User, role *Role) error {
	exists, err := r.assignments.Any(ctx, assignmentOf(user.ID, role.ID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	r.assignments.Add(&RoleAssignment{
		UserID: user.ID,
		RoleID: role.ID,
	})
	return nil
}

// Unassign stages a logical delete of the link. Unassigning a role the
// user does not hold is a no-op.
func (r *roles) Unassign(ctx context.Context, user *User, role *Role) error {
	link, err := r.assignments.Get(ctx, assignmentOf(user.ID, role.ID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}

	r.assignments.Delete(link)
	return nil
}

func (r *roles) RolesOf(ctx context.Context, userID uuid.UUID) ([]*Role, error) {
	return r.GetAll(ctx,
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Join("JOIN user_roles AS ur ON ur.role_id = ?TableAlias.id").
				Where("ur.user_id = ?", userID).
				Where("ur.status != ?", repository.StatusDeleted)
		},
		repository.OrderBy("name"),
	)
}

func (r *roles) AssignmentCount(ctx context.Context, roleID uuid.UUID) (int, error) {
	links, err := r.assignments.GetAll(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.role_id = ?", roleID)
	})
	if err != nil {
		return 0, err
	}
	return len(links), nil
}

func assignmentOf(userID, roleID uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.user_id = ?", userID).
			Where("?TableAlias.role_id = ?", roleID)
	}
}
