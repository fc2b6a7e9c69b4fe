package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at, last_login`

type userRow struct {
	ID           int       `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         r.Role,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int) error {
	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := repo.db.Rebind(`SELECT username, email FROM "user" WHERE (username = ? OR email = ?) AND id <> ?`)
	if err := repo.db.SelectContext(ctx, &taken, q, username, email, excludeID); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, t := range taken {
		if t.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := repo.db.Rebind(`
		INSERT INTO "user" (username, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q,
		usr.Username, usr.Email, usr.PasswordHash, usr.FirstName, usr.LastName, usr.Role, usr.IsActive,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) trapUniqueErr(err error, msg string) error {
	switch constraint, _ := uniqueViolation(err); constraint {
	case "user_username_key":
		return user.ErrUsernameExists
	case "user_email_key":
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var where conditions
	if filter != nil {
		// users with names, username or email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.add("(first_name ILIKE ? OR last_name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val, val)
		}
		if len(filter.Roles) > 0 {
			where.add("role = ANY(?)", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			where.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where.add("created_at <= ?", filter.CreatedTo.UTC())
		}
		if filter.IDs != nil {
			where.add("id = ANY(?)", pq.Array(filter.IDs))
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + where.String() + orderBy(ordering, "id ASC")
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where conditions
	switch {
	case filter.ID != 0:
		where.add("id = ?", filter.ID)
	case filter.Username != "":
		where.add("username = ?", filter.Username)
	case filter.Email != "":
		where.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		where.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + where.String() + ` LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), where.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := repo.db.Rebind(`
		UPDATE "user" SET username = ?, email = ?, password_hash = ?, first_name = ?, last_name = ?, role = ?,
			is_active = ?, updated_at = ?, last_login = ?
		WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q,
		usr.Username, usr.Email, usr.PasswordHash, usr.FirstName, usr.LastName, usr.Role, usr.IsActive,
		usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()), usr.ID,
	)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) CreateSupervision(ctx context.Context, sup user.Supervision) (user.Supervision, error) {
	q := repo.db.Rebind(`INSERT INTO supervision (supervisor_id, subordinate_id, created_at) VALUES (?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q, sup.SupervisorID, sup.SubordinateID, sup.CreatedAt.UTC()).Scan(&sup.ID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return user.Supervision{}, user.ErrSupervisionExists
		}
		return user.Supervision{}, errors.Wrap(err, "inserting supervision")
	}
	return sup, nil
}

func (repo *userRepository) QuerySupervisions(ctx context.Context, filter user.SupervisionFilter) ([]user.Supervision, error) {
	var where conditions
	if filter.ID != 0 {
		where.add("id = ?", filter.ID)
	}
	if filter.SupervisorID != 0 {
		where.add("supervisor_id = ?", filter.SupervisorID)
	}
	if filter.SubordinateID != 0 {
		where.add("subordinate_id = ?", filter.SubordinateID)
	}

	q := `SELECT id, supervisor_id, subordinate_id, created_at FROM supervision` + where.String() + ` ORDER BY id`
	var rows []struct {
		ID            int       `db:"id"`
		SupervisorID  int       `db:"supervisor_id"`
		SubordinateID int       `db:"subordinate_id"`
		CreatedAt     time.Time `db:"created_at"`
	}
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying supervisions")
	}
	sups := make([]user.Supervision, 0, len(rows))
	for _, r := range rows {
		sups = append(sups, user.Supervision{
			ID:            r.ID,
			SupervisorID:  r.SupervisorID,
			SubordinateID: r.SubordinateID,
			CreatedAt:     r.CreatedAt.UTC(),
		})
	}
	return sups, nil
}

func (repo *userRepository) DeleteSupervision(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM supervision WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting supervision")
	}
	return checkAffected(res, user.ErrSupervisionNotFound)
}
