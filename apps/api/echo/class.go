package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
)

type classApi struct {
	svc       *class.Service
	resources *resource.Service
	schedule  *schedule.Service
	validate  *validator.Validate
}

func registerClassAPI(
	g *echo.Group,
	orgAuthed echo.MiddlewareFunc,
	svc *class.Service,
	resources *resource.Service,
	sched *schedule.Service,
	validate *validator.Validate,
) {
	api := classApi{
		svc:       svc,
		resources: resources,
		schedule:  sched,
		validate:  validate,
	}

	cg := g.Group("/classes", orgAuthed)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.DELETE("/:id", api.destroy)
	cg.GET("/:id/students", api.queryStudents)
	cg.POST("/:id/enroll", api.enroll)
	cg.POST("/:id/unenroll", api.unenroll)
	cg.GET("/:id/resources", api.queryResources)
	cg.GET("/:id/schedule", api.querySchedule)
}

func (api *classApi) query(ctx echo.Context) error {
	var filter class.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	classes, err := api.svc.List(ctx.Request().Context(), p, filter)
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	c, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	c, err := api.svc.Get(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	if err := api.svc.Delete(ctx.Request().Context(), p, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) queryStudents(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	students, err := api.svc.Students(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	if students == nil {
		students = []class.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) bindEnrollment(ctx echo.Context) (int, class.NewEnrollment, error) {
	var data class.NewEnrollment
	id, err := paramID(ctx, "id")
	if err != nil {
		return 0, data, err
	}
	if err := ctx.Bind(&data); err != nil {
		return 0, data, errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return 0, data, err
	}
	return id, data, nil
}

func (api *classApi) enroll(ctx echo.Context) error {
	id, data, err := api.bindEnrollment(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), p, id, data.StudentID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *classApi) unenroll(ctx echo.Context) error {
	id, data, err := api.bindEnrollment(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), p, id, data.StudentID); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) queryResources(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	resources, err := api.resources.ListByClass(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "listing class resources")
	}
	if resources == nil {
		resources = []resource.Resource{}
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *classApi) querySchedule(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	filter, err := bindScheduleFilter(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	events, err := api.schedule.ListForClass(ctx.Request().Context(), p, id, filter)
	if err != nil {
		return errors.Wrap(err, "listing class events")
	}
	if events == nil {
		events = []schedule.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}
