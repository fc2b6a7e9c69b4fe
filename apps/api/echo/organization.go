package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/organization"
)

type orgApi struct {
	svc      *organization.Service
	validate *validator.Validate
}

// CurrentOrganizationResponse is the organization of the context user, with their membership.
type CurrentOrganizationResponse struct {
	Organization organization.Organization `json:"organization"`
	Membership   organization.Membership   `json:"membership"`
}

func registerOrganizationAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *organization.Service, validate *validator.Validate) {
	api := orgApi{svc: svc, validate: validate}

	og := g.Group("/organizations", authed)
	og.GET("", api.query)
	og.POST("", api.create)
	og.GET("/current", api.current)
	og.POST("/leave", api.leave)

	og.GET("/:id", api.retrieve)
	og.PUT("/:id", api.update)
	og.GET("/:id/members", api.queryMembers)
	og.PUT("/:id/members/:userID", api.updateMember)
	og.POST("/:id/join", api.join)
}

func (api *orgApi) query(ctx echo.Context) error {
	var filter organization.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []organization.Organization{})
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	orgs, err := api.svc.List(ctx.Request().Context(), p, filter)
	if err != nil {
		return errors.Wrap(err, "listing organizations")
	}
	if orgs == nil {
		orgs = []organization.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *orgApi) create(ctx echo.Context) error {
	var data organization.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	org, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return ctx.JSON(http.StatusCreated, org)
}

func (api *orgApi) current(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	org, m, err := api.svc.Current(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "getting current organization")
	}
	return ctx.JSON(http.StatusOK, CurrentOrganizationResponse{Organization: org, Membership: m})
}

func (api *orgApi) leave(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	if err := api.svc.Leave(ctx.Request().Context(), p); err != nil {
		return errors.Wrap(err, "leaving organization")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *orgApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	org, err := api.svc.Get(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "getting organization")
	}
	return ctx.JSON(http.StatusOK, org)
}

func (api *orgApi) update(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data organization.UpdateOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOrganization")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	org, err := api.svc.Update(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "updating organization")
	}
	return ctx.JSON(http.StatusOK, org)
}

func (api *orgApi) queryMembers(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var filter organization.MemberFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []organization.Member{})
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	members, err := api.svc.Members(ctx.Request().Context(), p, id, filter)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []organization.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *orgApi) updateMember(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(ctx, "userID")
	if err != nil {
		return err
	}
	var data organization.UpdateMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	m, err := api.svc.SetMemberRole(ctx.Request().Context(), p, id, userID, data)
	if err != nil {
		return errors.Wrap(err, "setting member role")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *orgApi) join(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	res, err := api.svc.Join(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "joining organization")
	}
	return ctx.JSON(http.StatusOK, res)
}

type studentApi struct {
	svc *organization.Service
}

func registerStudentAPI(g *echo.Group, orgAuthed echo.MiddlewareFunc, svc *organization.Service) {
	api := studentApi{svc: svc}
	g.GET("/students", api.query, orgAuthed)
}

func (api *studentApi) query(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	students, err := api.svc.Students(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	if students == nil {
		students = []organization.Member{}
	}
	return ctx.JSON(http.StatusOK, students)
}
