package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/identity"
)

// requireCapability lets through the identities whose role holds c.
func (a *auth) requireCapability(c identity.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			idt, err := a.getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if !idt.Role.Can(c) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// checkTenant restricts school scoped actions to the identity's own school.
func (a *auth) checkTenant(ctx echo.Context, schoolID string) error {
	idt, err := a.getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if !idt.BelongsTo(schoolID) {
		return errHttpForbidden
	}
	return nil
}

// scopeSchool returns the school a listing is restricted to: the requested one for admins
// (empty meaning all schools), the identity's own school for everyone else.
func (a *auth) scopeSchool(ctx echo.Context, requested string) (string, error) {
	idt, err := a.getContextIdentity(ctx)
	if err != nil {
		return "", err
	}
	if idt.Role == identity.RoleAdmin {
		return requested, nil
	}
	if requested != "" && requested != idt.SchoolID {
		return "", errHttpForbidden
	}
	if idt.SchoolID == "" {
		return "", errHttpForbidden
	}
	return idt.SchoolID, nil
}
