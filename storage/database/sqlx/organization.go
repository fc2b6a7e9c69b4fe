package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/organization"
)

const orgColumns = `id, name, description, about, location, contact_email, contact_phone, website, is_public,
	discussion_privacy, created_by, created_at, updated_at`

type orgRow struct {
	ID                int       `db:"id"`
	Name              string    `db:"name"`
	Description       string    `db:"description"`
	About             string    `db:"about"`
	Location          string    `db:"location"`
	ContactEmail      string    `db:"contact_email"`
	ContactPhone      string    `db:"contact_phone"`
	Website           string    `db:"website"`
	IsPublic          bool      `db:"is_public"`
	DiscussionPrivacy string    `db:"discussion_privacy"`
	CreatedBy         null.Int  `db:"created_by"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r orgRow) organization() organization.Organization {
	return organization.Organization{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		About:             r.About,
		Location:          r.Location,
		ContactEmail:      r.ContactEmail,
		ContactPhone:      r.ContactPhone,
		Website:           r.Website,
		IsPublic:          r.IsPublic,
		DiscussionPrivacy: r.DiscussionPrivacy,
		CreatedBy:         r.CreatedBy.Int,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type membershipRow struct {
	ID             int       `db:"id"`
	OrganizationID int       `db:"organization_id"`
	UserID         int       `db:"user_id"`
	Role           string    `db:"role"`
	JoinedAt       time.Time `db:"joined_at"`
}

func (r membershipRow) membership() organization.Membership {
	return organization.Membership{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		Role:           r.Role,
		JoinedAt:       r.JoinedAt.UTC(),
	}
}

type organizationRepository struct {
	db *sqlx.DB
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(db *sqlx.DB) *organizationRepository {
	return &organizationRepository{db: db}
}

func (repo *organizationRepository) CreateOrganization(
	ctx context.Context,
	org organization.Organization,
	creator organization.Membership,
) (organization.Organization, organization.Membership, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`
			INSERT INTO organization (name, description, about, location, contact_email, contact_phone, website,
				is_public, discussion_privacy, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		err := tx.QueryRowxContext(ctx, q,
			org.Name, org.Description, org.About, org.Location, org.ContactEmail, org.ContactPhone, org.Website,
			org.IsPublic, org.DiscussionPrivacy, nullInt(org.CreatedBy), org.CreatedAt.UTC(), org.UpdatedAt.UTC(),
		).Scan(&org.ID)
		if err != nil {
			return errors.Wrap(err, "inserting organization")
		}

		creator.OrganizationID = org.ID
		creator, _, err = replaceMembership(ctx, tx, creator)
		return err
	})
	if err != nil {
		return organization.Organization{}, organization.Membership{}, err
	}
	return org, creator, nil
}

func (repo *organizationRepository) GetOrganization(ctx context.Context, id int) (organization.Organization, error) {
	var row orgRow
	q := repo.db.Rebind(`SELECT ` + orgColumns + ` FROM organization WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return organization.Organization{}, trapNoRowsErr(err, organization.ErrNotFound, "getting organization")
	}
	return row.organization(), nil
}

func (repo *organizationRepository) QueryOrganizations(ctx context.Context, filter organization.QueryFilter, includeID int) ([]organization.Organization, error) {
	var where conditions
	where.add("(is_public OR id = ?)", includeID)
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where.add("(name ILIKE ? OR location ILIKE ?)", val, val)
	}

	var rows []orgRow
	q := `SELECT ` + orgColumns + ` FROM organization` + where.String() + ` ORDER BY name, id`
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying organizations")
	}
	orgs := make([]organization.Organization, 0, len(rows))
	for _, r := range rows {
		orgs = append(orgs, r.organization())
	}
	return orgs, nil
}

func (repo *organizationRepository) UpdateOrganization(ctx context.Context, org organization.Organization) (organization.Organization, error) {
	q := repo.db.Rebind(`
		UPDATE organization SET name = ?, description = ?, about = ?, location = ?, contact_email = ?,
			contact_phone = ?, website = ?, is_public = ?, discussion_privacy = ?, updated_at = ?
		WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q,
		org.Name, org.Description, org.About, org.Location, org.ContactEmail, org.ContactPhone, org.Website,
		org.IsPublic, org.DiscussionPrivacy, org.UpdatedAt.UTC(), org.ID,
	)
	if err != nil {
		return organization.Organization{}, errors.Wrap(err, "updating organization")
	}
	if err = checkAffected(res, organization.ErrNotFound); err != nil {
		return organization.Organization{}, err
	}
	return org, nil
}

func (repo *organizationRepository) GetMembership(ctx context.Context, userID int) (organization.Membership, error) {
	var row membershipRow
	q := repo.db.Rebind(`SELECT id, organization_id, user_id, role, joined_at FROM membership WHERE user_id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, userID); err != nil {
		return organization.Membership{}, trapNoRowsErr(err, organization.ErrMembershipNotFound, "getting membership")
	}
	return row.membership(), nil
}

func (repo *organizationRepository) ReplaceMembership(ctx context.Context, m organization.Membership) (organization.Membership, *organization.Membership, error) {
	var prev *organization.Membership
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		m, prev, err = replaceMembership(ctx, tx, m)
		return err
	})
	if err != nil {
		return organization.Membership{}, nil, err
	}
	return m, prev, nil
}

// replaceMembership deletes the membership of m.UserID, if any, then inserts `m`.
// The user row stays locked until the transaction ends, so replacements of one user run one after the other.
func replaceMembership(ctx context.Context, tx *sqlx.Tx, m organization.Membership) (organization.Membership, *organization.Membership, error) {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`SELECT id FROM "user" WHERE id = ? FOR UPDATE`), m.UserID); err != nil {
		return organization.Membership{}, nil, errors.Wrap(err, "locking user")
	}

	var prev *organization.Membership
	var rows []membershipRow
	q := tx.Rebind(`DELETE FROM membership WHERE user_id = ? RETURNING id, organization_id, user_id, role, joined_at`)
	if err := tx.SelectContext(ctx, &rows, q, m.UserID); err != nil {
		return organization.Membership{}, nil, errors.Wrap(err, "deleting previous membership")
	}
	if len(rows) > 0 {
		old := rows[0].membership()
		prev = &old
	}

	q = tx.Rebind(`INSERT INTO membership (organization_id, user_id, role, joined_at) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, q, m.OrganizationID, m.UserID, m.Role, m.JoinedAt.UTC()).Scan(&m.ID); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23503" { // foreign_key_violation
			return organization.Membership{}, nil, organization.ErrNotFound
		}
		if _, ok := uniqueViolation(err); ok {
			return organization.Membership{}, nil, organization.ErrMembershipChanged
		}
		return organization.Membership{}, nil, errors.Wrap(err, "inserting membership")
	}
	return m, prev, nil
}

func (repo *organizationRepository) UpdateMembership(ctx context.Context, m organization.Membership) (organization.Membership, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`UPDATE membership SET role = ? WHERE id = ?`), m.Role, m.ID)
	if err != nil {
		return organization.Membership{}, errors.Wrap(err, "updating membership")
	}
	if err = checkAffected(res, organization.ErrMembershipNotFound); err != nil {
		return organization.Membership{}, err
	}
	return m, nil
}

func (repo *organizationRepository) DeleteMembership(ctx context.Context, userID int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM membership WHERE user_id = ?`), userID)
	if err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	return checkAffected(res, organization.ErrMembershipNotFound)
}

func (repo *organizationRepository) QueryMembers(ctx context.Context, orgID int, filter organization.MemberFilter) ([]organization.Member, error) {
	var where conditions
	where.add("m.organization_id = ?", orgID)
	if len(filter.UserRoles) > 0 {
		where.add("u.role = ANY(?)", pq.Array(filter.UserRoles))
	}

	q := `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.joined_at,
			u.username, u.email, u.first_name, u.last_name, u.role AS user_role, u.is_active
		FROM membership m JOIN "user" u ON u.id = m.user_id` + where.String() + ` ORDER BY m.joined_at, m.id`
	var rows []struct {
		membershipRow
		Username  string `db:"username"`
		Email     string `db:"email"`
		FirstName string `db:"first_name"`
		LastName  string `db:"last_name"`
		UserRole  string `db:"user_role"`
		IsActive  bool   `db:"is_active"`
	}
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	members := make([]organization.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, organization.Member{
			Membership: r.membership(),
			Username:   r.Username,
			Email:      r.Email,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			UserRole:   r.UserRole,
			IsActive:   r.IsActive,
		})
	}
	return members, nil
}
