package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/discussion"
)

type discussionApi struct {
	svc      *discussion.Service
	validate *validator.Validate
}

func registerDiscussionAPI(g *echo.Group, orgAuthed echo.MiddlewareFunc, svc *discussion.Service, validate *validator.Validate) {
	api := discussionApi{svc: svc, validate: validate}

	// organization forum
	dg := g.Group("/discussions", orgAuthed)
	dg.GET("", api.query)
	dg.POST("", api.create)
	dg.GET("/:id", api.retrieve)
	dg.DELETE("/:id", api.destroy)
	dg.POST("/:id/replies", api.reply)
	dg.DELETE("/:id/replies/:replyID", api.destroyReply)

	// global forum
	gg := g.Group("/global-discussions", orgAuthed)
	gg.GET("", api.queryGlobal)
	gg.POST("", api.createGlobal)
	gg.GET("/:id", api.retrieveGlobal)
	gg.DELETE("/:id", api.destroy)
	gg.POST("/:id/replies", api.replyGlobal)
	gg.DELETE("/:id/replies/:replyID", api.destroyReply)
	gg.PUT("/:id/pin", api.pin)
}

func (api *discussionApi) query(ctx echo.Context) error {
	var filter discussion.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []discussion.Discussion{})
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	discussions, err := api.svc.ListByOrganization(ctx.Request().Context(), p, p.OrganizationID, filter)
	if err != nil {
		return errors.Wrap(err, "listing discussions")
	}
	if discussions == nil {
		discussions = []discussion.Discussion{}
	}
	return ctx.JSON(http.StatusOK, discussions)
}

func (api *discussionApi) queryGlobal(ctx echo.Context) error {
	var filter discussion.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []discussion.Discussion{})
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	discussions, err := api.svc.ListGlobal(ctx.Request().Context(), p, filter)
	if err != nil {
		return errors.Wrap(err, "listing global discussions")
	}
	if discussions == nil {
		discussions = []discussion.Discussion{}
	}
	return ctx.JSON(http.StatusOK, discussions)
}

func (api *discussionApi) bindNewDiscussion(ctx echo.Context) (discussion.NewDiscussion, error) {
	var data discussion.NewDiscussion
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewDiscussion")
	}
	err := data.Validate(api.validate)
	return data, err
}

func (api *discussionApi) create(ctx echo.Context) error {
	data, err := api.bindNewDiscussion(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	d, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating discussion")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *discussionApi) createGlobal(ctx echo.Context) error {
	data, err := api.bindNewDiscussion(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	d, err := api.svc.CreateGlobal(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating global discussion")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *discussionApi) getThread(ctx echo.Context) (discussion.Thread, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return discussion.Thread{}, err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return discussion.Thread{}, errors.Wrap(err, "getting context principal")
	}
	thread, err := api.svc.Get(ctx.Request().Context(), p, id)
	return thread, errors.Wrap(err, "getting discussion")
}

func (api *discussionApi) retrieve(ctx echo.Context) error {
	thread, err := api.getThread(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, thread)
}

func (api *discussionApi) retrieveGlobal(ctx echo.Context) error {
	thread, err := api.getThread(ctx)
	if err != nil {
		return err
	}
	if !thread.IsGlobal() {
		return discussion.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, thread)
}

func (api *discussionApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	if err := api.svc.Delete(ctx.Request().Context(), p, id); err != nil {
		return errors.Wrap(err, "deleting discussion")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discussionApi) bindNewReply(ctx echo.Context) (int, discussion.NewReply, error) {
	var data discussion.NewReply
	id, err := paramID(ctx, "id")
	if err != nil {
		return 0, data, err
	}
	if err := ctx.Bind(&data); err != nil {
		return 0, data, errors.Wrap(err, "binding to NewReply")
	}
	err = data.Validate(api.validate)
	return id, data, err
}

func (api *discussionApi) reply(ctx echo.Context) error {
	id, data, err := api.bindNewReply(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	r, err := api.svc.Reply(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "replying to discussion")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *discussionApi) replyGlobal(ctx echo.Context) error {
	id, data, err := api.bindNewReply(ctx)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	r, err := api.svc.ReplyGlobal(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "replying to global discussion")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *discussionApi) destroyReply(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	replyID, err := paramID(ctx, "replyID")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	if err := api.svc.DeleteReply(ctx.Request().Context(), p, id, replyID); err != nil {
		return errors.Wrap(err, "deleting reply")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discussionApi) pin(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data discussion.PinRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PinRequest")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	d, err := api.svc.Pin(ctx.Request().Context(), p, id, data.Pinned)
	if err != nil {
		return errors.Wrap(err, "pinning discussion")
	}
	return ctx.JSON(http.StatusOK, d)
}
