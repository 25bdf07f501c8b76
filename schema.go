package identity

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateTables provisions the identity schema. Safe to call on every
// startup; existing tables are left alone.
func CreateTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*Role)(nil),
		(*RoleAssignment)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []*bun.CreateIndexQuery{
		db.NewCreateIndex().
			Model((*RoleAssignment)(nil)).
			Index("idx_user_roles_user_id").
			Column("user_id").
			IfNotExists(),
		db.NewCreateIndex().
			Model((*RoleAssignment)(nil)).
			Index("idx_user_roles_role_id").
			Column("role_id").
			IfNotExists(),
		db.NewCreateIndex().
			Model((*User)(nil)).
			Index("idx_users_refresh_token").
			Column("refresh_token").
			IfNotExists(),
	}

	for _, idx := range indexes {
		if _, err := idx.Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
