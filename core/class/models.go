package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
)

type Class struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	SubjectID      int       `json:"subject_id"`
	SubjectName    string    `json:"subject_name"`
	GradeLevel     int       `json:"grade_level"`
	TeacherID      int       `json:"teacher_id"`
	TeacherName    string    `json:"teacher_name"`
	OrganizationID int       `json:"organization_id,omitempty"`
	StudentCount   int       `json:"student_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c Class) Ref() access.ClassRef {
	return access.ClassRef{ID: c.ID, TeacherID: c.TeacherID, OrganizationID: c.OrganizationID}
}

type Enrollment struct {
	ID         int       `json:"id"`
	ClassID    int       `json:"class_id"`
	StudentID  int       `json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Student is an enrolled student of a class.
type Student struct {
	ID         int       `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// NewClass contains information needed to create a new Class. The teacher is the caller.
type NewClass struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	SubjectID   int    `json:"subject_id" validate:"required"`
	GradeLevel  int    `json:"grade_level" validate:"required,grade"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewEnrollment struct {
	StudentID int `json:"student_id" validate:"required"`
}

func (ne NewEnrollment) Validate(validate *validator.Validate) error { return validate.Struct(ne) }

type QueryFilter struct {
	SubjectID  int `query:"subject"`
	GradeLevel int `query:"grade"`
}
