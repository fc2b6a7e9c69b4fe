package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
)

const classSelect = `
	SELECT c.id, c.name, c.description, c.subject_id, s.name AS subject_name, c.grade_level, c.teacher_id,
		TRIM(u.first_name || ' ' || u.last_name) AS teacher_full_name, u.username AS teacher_username,
		c.organization_id, c.created_at,
		(SELECT COUNT(*) FROM enrollment e WHERE e.class_id = c.id) AS student_count
	FROM class c
	JOIN subject s ON s.id = c.subject_id
	JOIN "user" u ON u.id = c.teacher_id`

type classRow struct {
	ID              int       `db:"id"`
	Name            string    `db:"name"`
	Description     string    `db:"description"`
	SubjectID       int       `db:"subject_id"`
	SubjectName     string    `db:"subject_name"`
	GradeLevel      int       `db:"grade_level"`
	TeacherID       int       `db:"teacher_id"`
	TeacherFullName string    `db:"teacher_full_name"`
	TeacherUsername string    `db:"teacher_username"`
	OrganizationID  null.Int  `db:"organization_id"`
	CreatedAt       time.Time `db:"created_at"`
	StudentCount    int       `db:"student_count"`
}

func (r classRow) class() class.Class {
	teacherName := r.TeacherFullName
	if teacherName == "" {
		teacherName = r.TeacherUsername
	}
	return class.Class{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		SubjectID:      r.SubjectID,
		SubjectName:    r.SubjectName,
		GradeLevel:     r.GradeLevel,
		TeacherID:      r.TeacherID,
		TeacherName:    teacherName,
		OrganizationID: r.OrganizationID.Int,
		StudentCount:   r.StudentCount,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) QueryClasses(ctx context.Context, scope access.ClassScope, filter class.QueryFilter) ([]class.Class, error) {
	var where conditions
	switch scope.Kind {
	case access.ScopeTeacher:
		where.add("c.teacher_id = ?", scope.UserID)
	case access.ScopeStudent:
		where.add("c.id IN (SELECT class_id FROM enrollment WHERE student_id = ?)", scope.UserID)
	case access.ScopeOrganization:
		where.add("c.organization_id = ?", scope.OrganizationID)
	default:
		return []class.Class{}, nil
	}
	if filter.SubjectID != 0 {
		where.add("c.subject_id = ?", filter.SubjectID)
	}
	if filter.GradeLevel != 0 {
		where.add("c.grade_level = ?", filter.GradeLevel)
	}

	var rows []classRow
	q := classSelect + where.String() + ` ORDER BY c.grade_level, s.name, c.id`
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id int) (class.Class, error) {
	var row classRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(classSelect+` WHERE c.id = ?`), id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "getting class")
	}
	return row.class(), nil
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	q := repo.db.Rebind(`
		INSERT INTO class (name, description, subject_id, grade_level, teacher_id, organization_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q,
		c.Name, c.Description, c.SubjectID, c.GradeLevel, c.TeacherID, nullInt(c.OrganizationID), c.CreatedAt.UTC(),
	).Scan(&c.ID)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return repo.GetClass(ctx, c.ID)
}

// DeleteClass relies on the `ON DELETE CASCADE` foreign keys of enrollment, resource and schedule_event.
func (repo *classRepository) DeleteClass(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM class WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return checkAffected(res, class.ErrNotFound)
}

func (repo *classRepository) CreateEnrollment(ctx context.Context, e class.Enrollment) (class.Enrollment, error) {
	q := repo.db.Rebind(`INSERT INTO enrollment (class_id, student_id, enrolled_at) VALUES (?, ?, ?) RETURNING id`)
	if err := repo.db.QueryRowxContext(ctx, q, e.ClassID, e.StudentID, e.EnrolledAt.UTC()).Scan(&e.ID); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
		return class.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *classRepository) DeleteEnrollment(ctx context.Context, classID, studentID int) error {
	q := repo.db.Rebind(`DELETE FROM enrollment WHERE class_id = ? AND student_id = ?`)
	res, err := repo.db.ExecContext(ctx, q, classID, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return checkAffected(res, class.ErrEnrollmentNotFound)
}

func (repo *classRepository) IsEnrolled(ctx context.Context, classID, studentID int) (bool, error) {
	var exists bool
	q := repo.db.Rebind(`SELECT EXISTS (SELECT 1 FROM enrollment WHERE class_id = ? AND student_id = ?)`)
	if err := repo.db.GetContext(ctx, &exists, q, classID, studentID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return exists, nil
}

func (repo *classRepository) QueryStudents(ctx context.Context, classID int) ([]class.Student, error) {
	q := repo.db.Rebind(`
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, e.enrolled_at
		FROM enrollment e JOIN "user" u ON u.id = e.student_id
		WHERE e.class_id = ?
		ORDER BY u.username`)
	var rows []struct {
		ID         int       `db:"id"`
		Username   string    `db:"username"`
		Email      string    `db:"email"`
		FirstName  string    `db:"first_name"`
		LastName   string    `db:"last_name"`
		EnrolledAt time.Time `db:"enrolled_at"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]class.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, class.Student{
			ID:         r.ID,
			Username:   r.Username,
			Email:      r.Email,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			EnrolledAt: r.EnrolledAt.UTC(),
		})
	}
	return students, nil
}

func (repo *classRepository) CountStudents(ctx context.Context, classIDs []int) (int, error) {
	var n int
	q := repo.db.Rebind(`SELECT COUNT(DISTINCT student_id) FROM enrollment WHERE class_id = ANY(?)`)
	if err := repo.db.GetContext(ctx, &n, q, pq.Array(classIDs)); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return n, nil
}
