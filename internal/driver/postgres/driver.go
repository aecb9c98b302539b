package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	userDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/user"
	"github.com/frahmantamala/fleet-expense/internal/driver"
)

const driverColumns = "id, email, name, role, assigned_vehicle_id"

// likeEscaper makes wildcard characters in a search query match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type DriverRepository struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) driver.RepositoryAPI {
	return &DriverRepository{db: db}
}

func (r *DriverRepository) Search(ctx context.Context, query string, limit int) ([]*userDatamodel.User, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	q := r.db.Rebind(`
SELECT ` + driverColumns + `
FROM users
WHERE role = ? AND is_active = TRUE
  AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')
ORDER BY name ASC
LIMIT ?`)

	var users []*userDatamodel.User
	if err := r.db.SelectContext(ctx, &users, q, userDatamodel.RoleDriver, pattern, pattern, limit); err != nil {
		return nil, fmt.Errorf("search drivers: %w", err)
	}
	return users, nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	q := r.db.Rebind(`SELECT ` + driverColumns + ` FROM users WHERE id = ? AND role = ?`)

	var u userDatamodel.User
	if err := r.db.GetContext(ctx, &u, q, id, userDatamodel.RoleDriver); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, driver.ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return &u, nil
}

func (r *DriverRepository) ListByIDs(ctx context.Context, ids []string) ([]*userDatamodel.User, error) {
	q, args, err := sqlx.In(`SELECT `+driverColumns+` FROM users WHERE role = ? AND id IN (?)`, userDatamodel.RoleDriver, ids)
	if err != nil {
		return nil, fmt.Errorf("build driver list query: %w", err)
	}

	var users []*userDatamodel.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return users, nil
}
