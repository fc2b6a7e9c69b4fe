package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/subject"
)

const subjectColumns = `id, name, description, is_custom, created_by, created_at`

type subjectRow struct {
	ID          int       `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsCustom    bool      `db:"is_custom"`
	CreatedBy   null.Int  `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r subjectRow) subject() subject.Subject {
	return subject.Subject{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsCustom:    r.IsCustom,
		CreatedBy:   r.CreatedBy.Int,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context) ([]subject.Subject, error) {
	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+subjectColumns+` FROM subject ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subs := make([]subject.Subject, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.subject())
	}
	return subs, nil
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id int) (subject.Subject, error) {
	var row subjectRow
	q := repo.db.Rebind(`SELECT ` + subjectColumns + ` FROM subject WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return subject.Subject{}, trapNoRowsErr(err, subject.ErrNotFound, "getting subject")
	}
	return row.subject(), nil
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject) (subject.Subject, error) {
	q := repo.db.Rebind(`INSERT INTO subject (name, description, is_custom, created_by, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q, sub.Name, sub.Description, sub.IsCustom, nullInt(sub.CreatedBy), sub.CreatedAt.UTC()).Scan(&sub.ID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return subject.Subject{}, subject.ErrNameExists
		}
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}
