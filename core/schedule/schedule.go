package schedule

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
)

// Recurrence patterns
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("event")
	ErrEndBeforeStart     = errors.New("the event must end after it starts")
	ErrPatternRequired    = errors.New("a recurrence pattern is required for recurring events")
	ErrPatternNotExpected = errors.New("only recurring events have a recurrence pattern")

	NowFunc = time.Now // mockable
)

type Event struct {
	ID                int       `json:"id"`
	ClassID           int       `json:"class_id"`
	ClassName         string    `json:"class_name"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	IsRecurring       bool      `json:"is_recurring"`
	RecurrencePattern string    `json:"recurrence_pattern,omitempty"`
	CreatedBy         int       `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

type NewEvent struct {
	ClassID           int       `json:"class_id" validate:"required"`
	Title             string    `json:"title" validate:"required,notblank,max=200"`
	Description       string    `json:"description"`
	StartTime         time.Time `json:"start_time" validate:"required"`
	EndTime           time.Time `json:"end_time" validate:"required"`
	IsRecurring       bool      `json:"is_recurring"`
	RecurrencePattern string    `json:"recurrence_pattern" validate:"omitempty,oneof=daily weekly monthly"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.RecurrencePattern = core.CleanString(ne.RecurrencePattern, true /* lower */)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	switch {
	case !ne.EndTime.After(ne.StartTime):
		return core.NewValidationError(ErrEndBeforeStart, core.FieldError{Field: "end_time", Error: ErrEndBeforeStart.Error()})
	case ne.IsRecurring && ne.RecurrencePattern == "":
		return core.NewValidationError(ErrPatternRequired, core.FieldError{Field: "recurrence_pattern", Error: ErrPatternRequired.Error()})
	case !ne.IsRecurring && ne.RecurrencePattern != "":
		return core.NewValidationError(ErrPatternNotExpected, core.FieldError{Field: "recurrence_pattern", Error: ErrPatternNotExpected.Error()})
	}
	return nil
}

// QueryFilter bounds are inclusive on the start time; zero bounds are ignored.
type QueryFilter struct {
	From time.Time `query:"-"` // parsed by the handlers
	To   time.Time `query:"-"`

	ClassIDs []int `query:"-"`
}

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		GetEvent(ctx context.Context, id int) (Event, error)
		// QueryEvents returns the events of filter.ClassIDs within the filter bounds, ordered by start time.
		QueryEvents(ctx context.Context, filter QueryFilter) ([]Event, error)
		DeleteEvent(ctx context.Context, id int) error
	}

	ClassGetter interface {
		Get(ctx context.Context, p access.Principal, id int) (class.Class, error)
		GetManaged(ctx context.Context, p access.Principal, id int) (class.Class, error)
		VisibleIDs(ctx context.Context, p access.Principal) ([]int, error)
	}

	Service struct {
		repo    Repository
		classes ClassGetter
	}
)

func NewService(repo Repository, classes ClassGetter) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(classes, "classes"),
	).CheckAndPanic()

	return &Service{repo: repo, classes: classes}
}

func (svc *Service) Create(ctx context.Context, p access.Principal, ne NewEvent) (Event, error) {
	c, err := svc.classes.GetManaged(ctx, p, ne.ClassID)
	if err != nil {
		return Event{}, err
	}
	evt, err := svc.repo.CreateEvent(ctx, Event{
		ClassID:           c.ID,
		ClassName:         c.Name,
		Title:             ne.Title,
		Description:       ne.Description,
		StartTime:         ne.StartTime.UTC(),
		EndTime:           ne.EndTime.UTC(),
		IsRecurring:       ne.IsRecurring,
		RecurrencePattern: ne.RecurrencePattern,
		CreatedBy:         p.UserID,
		CreatedAt:         NowFunc().UTC(),
	})
	return evt, errors.Wrap(err, "creating event")
}

// ListForPrincipal returns the events of every class `p` may see.
func (svc *Service) ListForPrincipal(ctx context.Context, p access.Principal, filter QueryFilter) ([]Event, error) {
	ids, err := svc.classes.VisibleIDs(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Event{}, nil
	}
	filter.ClassIDs = ids
	events, err := svc.repo.QueryEvents(ctx, filter)
	return events, errors.Wrap(err, "querying events")
}

// Upcoming returns the events of the classes `p` may see, starting within `within` from now.
func (svc *Service) Upcoming(ctx context.Context, p access.Principal, within time.Duration) ([]Event, error) {
	now := NowFunc().UTC()
	return svc.ListForPrincipal(ctx, p, QueryFilter{From: now, To: now.Add(within)})
}

func (svc *Service) ListForClass(ctx context.Context, p access.Principal, classID int, filter QueryFilter) ([]Event, error) {
	c, err := svc.classes.Get(ctx, p, classID)
	if err != nil {
		return nil, err
	}
	filter.ClassIDs = []int{c.ID}
	events, err := svc.repo.QueryEvents(ctx, filter)
	return events, errors.Wrap(err, "querying events")
}

// Delete removes event `id`. Its creator or a manager of its class only.
func (svc *Service) Delete(ctx context.Context, p access.Principal, id int) error {
	evt, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	c, err := svc.classes.Get(ctx, p, evt.ClassID)
	if err != nil {
		if core.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if !access.CanDeleteEvent(p, evt.CreatedBy, c.Ref()) {
		return core.ErrForbidden
	}
	return errors.Wrap(svc.repo.DeleteEvent(ctx, evt.ID), "deleting event")
}
