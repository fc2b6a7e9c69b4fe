package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	ErrSupervisionNotFound = core.NewNotFoundError("supervision")
	ErrSupervisionExists   = errors.New("this teacher is already supervised by this supervisor")
	ErrSelfSupervision     = errors.New("a teacher cannot supervise themselves")
	ErrNotATeacher         = errors.New("supervisors and subordinates must be teachers")
)

// Supervision links a supervising teacher to a subordinate teacher.
type Supervision struct {
	ID            int       `json:"id"`
	SupervisorID  int       `json:"supervisor_id"`
	SubordinateID int       `json:"subordinate_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type NewSupervision struct {
	SupervisorID  int `json:"supervisor_id" validate:"required,min=1"`
	SubordinateID int `json:"subordinate_id" validate:"required,min=1"`
}

type SupervisionFilter struct {
	ID            int `query:"-"`
	SupervisorID  int `query:"supervisor_id"`
	SubordinateID int `query:"subordinate_id"`
}

// AssignSupervisor makes a teacher the supervisor of another teacher. Admins only.
func (svc *Service) AssignSupervisor(ctx context.Context, actor User, ns NewSupervision) (Supervision, error) {
	if !CanManageUsers(actor) {
		return Supervision{}, core.ErrForbidden
	}
	if ns.SupervisorID == ns.SubordinateID {
		return Supervision{}, core.NewValidationError(ErrSelfSupervision)
	}
	for _, id := range []int{ns.SupervisorID, ns.SubordinateID} {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return Supervision{}, core.NewValidationError(ErrNotATeacher)
			}
			return Supervision{}, errors.Wrap(err, "getting user by ID")
		}
		if !usr.IsTeacher() || !usr.IsActive {
			return Supervision{}, core.NewValidationError(ErrNotATeacher)
		}
	}

	existing, err := svc.repo.QuerySupervisions(ctx, SupervisionFilter{SupervisorID: ns.SupervisorID, SubordinateID: ns.SubordinateID})
	if err != nil {
		return Supervision{}, errors.Wrap(err, "querying supervisions")
	}
	if len(existing) > 0 {
		return Supervision{}, core.NewValidationError(ErrSupervisionExists)
	}

	sup, err := svc.repo.CreateSupervision(ctx, Supervision{
		SupervisorID:  ns.SupervisorID,
		SubordinateID: ns.SubordinateID,
		CreatedAt:     NowFunc().UTC(),
	})
	return sup, errors.Wrap(err, "creating supervision")
}

// QuerySupervisions lists supervisions. Teachers only see the ones they are part of.
func (svc *Service) QuerySupervisions(ctx context.Context, actor User, filter SupervisionFilter) ([]Supervision, error) {
	switch {
	case CanManageUsers(actor):
		sups, err := svc.repo.QuerySupervisions(ctx, filter)
		return sups, errors.Wrap(err, "querying supervisions")
	case actor.IsTeacher():
		sups, err := svc.repo.QuerySupervisions(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying supervisions")
		}
		own := make([]Supervision, 0, len(sups))
		for _, sup := range sups {
			if sup.SupervisorID == actor.ID || sup.SubordinateID == actor.ID {
				own = append(own, sup)
			}
		}
		return own, nil
	}
	return nil, core.ErrForbidden
}

func (svc *Service) RemoveSupervision(ctx context.Context, actor User, id int) error {
	if !CanManageUsers(actor) {
		return core.ErrForbidden
	}
	return errors.Wrap(svc.repo.DeleteSupervision(ctx, id), "deleting supervision")
}
