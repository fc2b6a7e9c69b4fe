package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/resource"
)

const resourceColumns = `id, title, description, resource_type, content, external_url, grade_level, subject_id,
	class_id, organization_id, uploaded_by, tags, is_public, created_at, updated_at`

type resourceRow struct {
	ID             int            `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	ResourceType   string         `db:"resource_type"`
	Content        string         `db:"content"`
	ExternalURL    string         `db:"external_url"`
	GradeLevel     null.Int       `db:"grade_level"`
	SubjectID      null.Int       `db:"subject_id"`
	ClassID        null.Int       `db:"class_id"`
	OrganizationID null.Int       `db:"organization_id"`
	UploadedBy     int            `db:"uploaded_by"`
	Tags           pq.StringArray `db:"tags"`
	IsPublic       bool           `db:"is_public"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r resourceRow) resource() resource.Resource {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return resource.Resource{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		ResourceType:   r.ResourceType,
		Content:        r.Content,
		ExternalURL:    r.ExternalURL,
		GradeLevel:     r.GradeLevel.Int,
		SubjectID:      r.SubjectID.Int,
		ClassID:        r.ClassID.Int,
		OrganizationID: r.OrganizationID.Int,
		UploadedBy:     r.UploadedBy,
		Tags:           tags,
		IsPublic:       r.IsPublic,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	q := repo.db.Rebind(`
		INSERT INTO resource (title, description, resource_type, content, external_url, grade_level, subject_id,
			class_id, organization_id, uploaded_by, tags, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q,
		res.Title, res.Description, res.ResourceType, res.Content, res.ExternalURL, nullInt(res.GradeLevel),
		nullInt(res.SubjectID), nullInt(res.ClassID), nullInt(res.OrganizationID), res.UploadedBy,
		pq.Array(res.Tags), res.IsPublic, res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	).Scan(&res.ID)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id int) (resource.Resource, error) {
	var row resourceRow
	q := repo.db.Rebind(`SELECT ` + resourceColumns + ` FROM resource WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return resource.Resource{}, trapNoRowsErr(err, resource.ErrNotFound, "getting resource")
	}
	return row.resource(), nil
}

func (repo *resourceRepository) QueryResources(ctx context.Context, filter resource.QueryFilter) ([]resource.Resource, error) {
	var where conditions
	if filter.OrganizationID != 0 {
		where.add("organization_id = ?", filter.OrganizationID)
	}
	if filter.ClassID != 0 {
		where.add("class_id = ?", filter.ClassID)
	}
	if filter.GradeLevel != 0 {
		where.add("grade_level = ?", filter.GradeLevel)
	}
	if filter.SubjectID != 0 {
		where.add("subject_id = ?", filter.SubjectID)
	}
	if filter.ResourceType != "" {
		where.add("resource_type = ?", filter.ResourceType)
	}

	var rows []resourceRow
	q := `SELECT ` + resourceColumns + ` FROM resource` + where.String() + ` ORDER BY created_at DESC, id DESC`
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	resources := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		resources = append(resources, r.resource())
	}
	return resources, nil
}

func (repo *resourceRepository) UpdateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	q := repo.db.Rebind(`
		UPDATE resource SET title = ?, description = ?, resource_type = ?, content = ?, external_url = ?,
			grade_level = ?, subject_id = ?, tags = ?, is_public = ?, updated_at = ?
		WHERE id = ?`)
	result, err := repo.db.ExecContext(ctx, q,
		res.Title, res.Description, res.ResourceType, res.Content, res.ExternalURL, nullInt(res.GradeLevel),
		nullInt(res.SubjectID), pq.Array(res.Tags), res.IsPublic, res.UpdatedAt.UTC(), res.ID,
	)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "updating resource")
	}
	if err = checkAffected(result, resource.ErrNotFound); err != nil {
		return resource.Resource{}, err
	}
	return res, nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM resource WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return checkAffected(res, resource.ErrNotFound)
}
