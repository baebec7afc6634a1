package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

type identityApi struct {
	auth     *auth
	svc      *identity.Service
	validate *validator.Validate
}

func registerIdentityAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, deps ServerDeps) {
	api := identityApi{
		auth:     a,
		svc:      deps.Identities,
		validate: deps.Validate,
	}

	ig := g.Group("/identities")

	// un-authed endpoints
	ig.POST("/login", api.login)

	// authed endpoints
	ag := ig.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PUT("/me/password", api.changePassword)
	ag.GET("", api.query, a.requireCapability(identity.CapManageSchools))
}

// Handlers

func (api *identityApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, err := api.auth.login(ctx, data.Username, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *identityApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *identityApi) me(ctx echo.Context) error {
	idt, err := api.auth.getContextIdentity(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, idt)
}

// changePassword lets an identity replace its provisioned password.
func (api *identityApi) changePassword(ctx echo.Context) error {
	idt, err := api.auth.getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data identity.PasswordChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordChange")
	}
	if err = data.Validate(api.validate, idt); err != nil {
		return err
	}

	if _, err = api.svc.ChangePassword(ctx.Request().Context(), idt, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

func (api *identityApi) query(ctx echo.Context) error {
	filter := new(identity.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []identity.Identity{})
	}
	filter.Clean()
	ordering, err := bindOrdering(ctx, identity.OrderingFields...)
	if err != nil {
		return err
	}

	idts, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying identities")
	}
	if idts == nil {
		idts = []identity.Identity{}
	}
	return ctx.JSON(http.StatusOK, idts)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
