package class

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/subject"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("class")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled    = errors.New("this student is already enrolled in the class")
	ErrNotAStudent        = errors.New("only active students can be enrolled")
	ErrStudentNotInOrg    = errors.New("the student is not a member of the class organization")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// QueryClasses returns the classes within `scope`, ordered by grade level then subject name.
		QueryClasses(ctx context.Context, scope access.ClassScope, filter QueryFilter) ([]Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
		CreateClass(ctx context.Context, c Class) (Class, error)
		// DeleteClass also deletes the class enrollments, resources and schedule events.
		DeleteClass(ctx context.Context, id int) error

		// CreateEnrollment returns ErrAlreadyEnrolled when the (class, student) pair exists.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, classID, studentID int) error
		IsEnrolled(ctx context.Context, classID, studentID int) (bool, error)
		QueryStudents(ctx context.Context, classID int) ([]Student, error)
		// CountStudents counts the distinct students enrolled in any of `classIDs`.
		CountStudents(ctx context.Context, classIDs []int) (int, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	SubjectGetter interface {
		Get(ctx context.Context, id int) (subject.Subject, error)
	}

	// OrganizationLookup tells which organization a user belongs to (0: none).
	OrganizationLookup interface {
		OrganizationOf(ctx context.Context, userID int) (int, error)
	}

	Service struct {
		repo      Repository
		users     UserGetter
		subjects  SubjectGetter
		orgs      OrganizationLookup
		publisher core.EventPublisher
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	users UserGetter,
	subjects SubjectGetter,
	orgs OrganizationLookup,
	publisher core.EventPublisher,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(subjects, "subjects"),
		vala.IsNotNil(orgs, "orgs"),
		vala.IsNotNil(publisher, "publisher"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		repo:      repo,
		users:     users,
		subjects:  subjects,
		orgs:      orgs,
		publisher: publisher,
		logger:    logger,
	}
}

// Create creates a class taught by `p`, in their current organization.
func (svc *Service) Create(ctx context.Context, p access.Principal, nc NewClass) (Class, error) {
	if !access.CanCreateClass(p) {
		return Class{}, core.ErrForbidden
	}
	sub, err := svc.subjects.Get(ctx, nc.SubjectID)
	if err != nil {
		if core.IsNotFound(err) {
			return Class{}, core.NewValidationError(subject.ErrNotFound, core.FieldError{Field: "subject_id", Error: subject.ErrNotFound.Error()})
		}
		return Class{}, errors.Wrap(err, "getting subject")
	}

	c, err := svc.repo.CreateClass(ctx, Class{
		Name:           nc.Name,
		Description:    nc.Description,
		SubjectID:      sub.ID,
		SubjectName:    sub.Name,
		GradeLevel:     nc.GradeLevel,
		TeacherID:      p.UserID,
		OrganizationID: p.OrganizationID,
		CreatedAt:      NowFunc().UTC(),
	})
	return c, errors.Wrap(err, "creating class")
}

// List returns the classes `p` may see.
func (svc *Service) List(ctx context.Context, p access.Principal, filter QueryFilter) ([]Class, error) {
	scope := access.ClassScopeFor(p)
	if scope.Kind == access.ScopeNone {
		return []Class{}, nil
	}
	classes, err := svc.repo.QueryClasses(ctx, scope, filter)
	return classes, errors.Wrap(err, "querying classes")
}

// VisibleIDs returns the IDs of the classes `p` may see.
func (svc *Service) VisibleIDs(ctx context.Context, p access.Principal) ([]int, error) {
	classes, err := svc.List(ctx, p, QueryFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Get returns class `id` if `p` can see it. Hidden classes are reported as not found.
func (svc *Service) Get(ctx context.Context, p access.Principal, id int) (Class, error) {
	c, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, errors.Wrap(err, "getting class")
	}
	visible, err := svc.Visible(ctx, p, c)
	if err != nil {
		return Class{}, err
	}
	if !visible {
		return Class{}, ErrNotFound
	}
	return c, nil
}

// GetManaged returns class `id` if `p` may manage it.
func (svc *Service) GetManaged(ctx context.Context, p access.Principal, id int) (Class, error) {
	c, err := svc.Get(ctx, p, id)
	if err != nil {
		return Class{}, err
	}
	if !access.CanManageClass(p, c.Ref()) {
		return Class{}, core.ErrForbidden
	}
	return c, nil
}

// Visible reports whether `p` may see class `c`.
func (svc *Service) Visible(ctx context.Context, p access.Principal, c Class) (bool, error) {
	var enrolled bool
	if p.IsStudent() {
		var err error
		if enrolled, err = svc.repo.IsEnrolled(ctx, c.ID, p.UserID); err != nil {
			return false, errors.Wrap(err, "checking enrollment")
		}
	}
	return access.CanViewClass(p, c.Ref(), enrolled), nil
}

func (svc *Service) Delete(ctx context.Context, p access.Principal, id int) error {
	c, err := svc.GetManaged(ctx, p, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteClass(ctx, c.ID), "deleting class")
}

// Enroll adds student `studentID` to class `classID`.
func (svc *Service) Enroll(ctx context.Context, p access.Principal, classID, studentID int) (Enrollment, error) {
	c, err := svc.GetManaged(ctx, p, classID)
	if err != nil {
		return Enrollment{}, err
	}

	std, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Enrollment{}, core.NewValidationError(user.ErrNotFound, core.FieldError{Field: "student_id", Error: user.ErrNotFound.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "getting student")
	}
	if !std.IsStudent() || !std.IsActive {
		return Enrollment{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}
	if c.OrganizationID != 0 {
		orgID, err := svc.orgs.OrganizationOf(ctx, std.ID)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "getting student organization")
		}
		if orgID != c.OrganizationID {
			return Enrollment{}, core.NewValidationError(ErrStudentNotInOrg, core.FieldError{Field: "student_id", Error: ErrStudentNotInOrg.Error()})
		}
	}

	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{ClassID: c.ID, StudentID: std.ID, EnrolledAt: NowFunc().UTC()})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled)
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	svc.publish(ctx, core.NewEvent(core.EventClassEnrolled, map[string]interface{}{
		"class_id":   c.ID,
		"student_id": std.ID,
	}))
	return e, nil
}

func (svc *Service) Unenroll(ctx context.Context, p access.Principal, classID, studentID int) error {
	c, err := svc.GetManaged(ctx, p, classID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteEnrollment(ctx, c.ID, studentID); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	svc.publish(ctx, core.NewEvent(core.EventClassUnenrolled, map[string]interface{}{
		"class_id":   c.ID,
		"student_id": studentID,
	}))
	return nil
}

// Students lists the students enrolled in class `classID`.
func (svc *Service) Students(ctx context.Context, p access.Principal, classID int) ([]Student, error) {
	c, err := svc.Get(ctx, p, classID)
	if err != nil {
		return nil, err
	}
	students, err := svc.repo.QueryStudents(ctx, c.ID)
	return students, errors.Wrap(err, "querying students")
}

func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID int) (bool, error) {
	ok, err := svc.repo.IsEnrolled(ctx, classID, studentID)
	return ok, errors.Wrap(err, "checking enrollment")
}

// CountStudents counts the distinct students enrolled in any of `classIDs`.
func (svc *Service) CountStudents(ctx context.Context, classIDs []int) (int, error) {
	if len(classIDs) == 0 {
		return 0, nil
	}
	n, err := svc.repo.CountStudents(ctx, classIDs)
	return n, errors.Wrap(err, "counting students")
}

func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", evt.Name, err), err)
	}
}
