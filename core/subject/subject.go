package subject

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("subject")
	ErrNameExists = errors.New("a subject with this name already exists")

	NowFunc = time.Now // mockable
)

type Subject struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsCustom    bool      `json:"is_custom"`
	CreatedBy   int       `json:"created_by,omitempty"` // 0 for the default catalogue
	CreatedAt   time.Time `json:"created_at"`
}

type NewSubject struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

type (
	Repository interface {
		// QuerySubjects returns all subjects sorted by name.
		QuerySubjects(ctx context.Context) ([]Subject, error)
		GetSubject(ctx context.Context, id int) (Subject, error)
		// CreateSubject returns ErrNameExists when the name is taken, ignoring case.
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(vala.IsNotNil(repo, "repo")).CheckAndPanic()
	return &Service{repo: repo}
}

func (svc *Service) List(ctx context.Context) ([]Subject, error) {
	subs, err := svc.repo.QuerySubjects(ctx)
	return subs, errors.Wrap(err, "querying subjects")
}

func (svc *Service) Get(ctx context.Context, id int) (Subject, error) {
	sub, err := svc.repo.GetSubject(ctx, id)
	return sub, errors.Wrap(err, "getting subject")
}

// CreateCustom adds a subject to the catalogue. Teachers and admins only.
func (svc *Service) CreateCustom(ctx context.Context, p access.Principal, ns NewSubject) (Subject, error) {
	if !p.IsTeacher() && !p.IsAdmin() {
		return Subject{}, core.ErrForbidden
	}
	sub, err := svc.repo.CreateSubject(ctx, Subject{
		Name:        ns.Name,
		Description: ns.Description,
		IsCustom:    true,
		CreatedBy:   p.UserID,
		CreatedAt:   NowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrNameExists {
			return Subject{}, core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
		}
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	return sub, nil
}
