package echoapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/school"
)

type schoolApi struct {
	auth     *auth
	svc      *school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, deps ServerDeps) {
	api := schoolApi{
		auth:     a,
		svc:      deps.Schools,
		validate: deps.Validate,
	}

	sg := g.Group("/schools")

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.GET("", api.query, a.requireCapability(identity.CapManageSchools))
	ag.GET("/:id", api.retrieve)
	ag.GET("/by-email/:email", api.retrieveByEmail)
	ag.DELETE("/:id", api.destroy, a.requireCapability(identity.CapManageSchools))

	// un-authed endpoints; registered last so the authed group's catch-all does not shadow it
	sg.POST("", api.submit)

	rg := g.Group("/requests", jwt, a.requireCapability(identity.CapReviewRegistrations))
	rg.GET("", api.queryRequests)
	rg.GET("/:id", api.retrieveRequest)
	rg.PUT("/:id/approve", api.approve)
	rg.PUT("/:id/cancel", api.cancel)
}

// Handlers

func (api *schoolApi) submit(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	_, req, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting school")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *schoolApi) query(ctx echo.Context) error {
	filter := new(school.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.School{})
	}
	filter.Clean()
	ordering, err := bindOrdering(ctx, school.OrderingFields...)
	if err != nil {
		return err
	}

	schools, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

// retrieve is open to admins and to the identities of the school.
func (api *schoolApi) retrieve(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.auth.checkTenant(ctx, id); err != nil {
		return err
	}
	sch, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

// retrieveByEmail is open to admins and to the identities of the school found.
func (api *schoolApi) retrieveByEmail(ctx echo.Context) error {
	email, err := url.PathUnescape(ctx.Param("email"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "email", Error: "malformed email"})
	}
	sch, err := api.svc.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		return errors.Wrap(err, "finding school by email")
	}
	if err = api.auth.checkTenant(ctx, sch.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryRequests(ctx echo.Context) error {
	status := school.Status(strings.ToUpper(core.CleanString(ctx.QueryParam("status"))))
	if status != "" && !status.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "status must be one of PENDING, APPROVED, CANCELLED"})
	}
	reqs, err := api.svc.QueryRequests(ctx.Request().Context(), status)
	if err != nil {
		return errors.Wrap(err, "querying registration requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *schoolApi) retrieveRequest(ctx echo.Context) error {
	req, err := api.svc.GetRequest(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding registration request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *schoolApi) approve(ctx echo.Context) error {
	req, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving registration request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *schoolApi) cancel(ctx echo.Context) error {
	req, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "cancelling registration request")
	}
	return ctx.JSON(http.StatusOK, req)
}
