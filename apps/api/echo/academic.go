package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
)

type academicApi struct {
	auth     *auth
	svc      *academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, deps ServerDeps) {
	api := academicApi{
		auth:     a,
		svc:      deps.Academics,
		validate: deps.Validate,
	}
	view := a.requireCapability(identity.CapViewRoster)
	manage := a.requireCapability(identity.CapManageAcademics)

	gg := g.Group("/grades", jwt)
	gg.POST("", api.createGrade, manage)
	gg.GET("", api.queryGrades, view)
	gg.GET("/:id", api.retrieveGrade, view)
	gg.Match(updateMethods, "/:id", api.updateGrade, manage)
	gg.DELETE("/:id", api.destroyGrade, manage)

	sg := g.Group("/sections", jwt)
	sg.POST("", api.createSection, manage)
	sg.GET("", api.querySections, view)
	sg.GET("/:id", api.retrieveSection, view)
	sg.Match(updateMethods, "/:id", api.updateSection, manage)
	sg.DELETE("/:id", api.destroySection, manage)

	ug := g.Group("/subjects", jwt)
	ug.POST("", api.createSubject, manage)
	ug.GET("", api.querySubjects, view)
	ug.GET("/:id", api.retrieveSubject, view)
	ug.Match(updateMethods, "/:id", api.updateSubject, manage)
	ug.DELETE("/:id", api.destroySubject, manage)
}

// Handlers

func (api *academicApi) createGrade(ctx echo.Context) error {
	var data academic.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.auth.checkTenant(ctx, data.SchoolID); err != nil {
		return err
	}

	grd, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, grd)
}

func (api *academicApi) queryGrades(ctx echo.Context) error {
	schoolID, err := api.auth.scopeSchool(ctx, ctx.QueryParam("school_id"))
	if err != nil {
		return err
	}
	grades, err := api.svc.QueryGrades(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

// grade loads the grade of the "id" path param, if it belongs to the identity's school.
func (api *academicApi) grade(ctx echo.Context) (academic.Grade, error) {
	grd, err := api.svc.GetGrade(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return academic.Grade{}, errors.Wrap(err, "finding grade")
	}
	if err = api.auth.checkTenant(ctx, grd.SchoolID); err != nil {
		return academic.Grade{}, err
	}
	return grd, nil
}

func (api *academicApi) retrieveGrade(ctx echo.Context) error {
	grd, err := api.grade(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *academicApi) updateGrade(ctx echo.Context) error {
	grd, err := api.grade(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if grd, err = api.svc.UpdateGrade(ctx.Request().Context(), grd.ID, data); err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *academicApi) destroyGrade(ctx echo.Context) error {
	grd, err := api.grade(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteGrades(ctx.Request().Context(), grd.ID); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicApi) createSection(ctx echo.Context) error {
	var data academic.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	grd, err := api.svc.GetGrade(ctx.Request().Context(), data.GradeID)
	if err != nil {
		return errors.Wrap(err, "finding grade")
	}
	if err = api.auth.checkTenant(ctx, grd.SchoolID); err != nil {
		return err
	}

	sec, err := api.svc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return ctx.JSON(http.StatusCreated, sec)
}

// querySections lists the sections of a grade; only admins may list every section.
func (api *academicApi) querySections(ctx echo.Context) error {
	gradeID := core.CleanString(ctx.QueryParam("grade_id"))
	if gradeID == "" {
		idt, err := api.auth.getContextIdentity(ctx)
		if err != nil {
			return err
		}
		if idt.Role != identity.RoleAdmin {
			return core.NewValidationError(nil, core.FieldError{Field: "grade_id", Error: "grade_id is a required field"})
		}
	} else {
		grd, err := api.svc.GetGrade(ctx.Request().Context(), gradeID)
		if err != nil {
			return errors.Wrap(err, "finding grade")
		}
		if err = api.auth.checkTenant(ctx, grd.SchoolID); err != nil {
			return err
		}
	}

	sections, err := api.svc.QuerySections(ctx.Request().Context(), gradeID)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *academicApi) section(ctx echo.Context) (academic.Section, error) {
	sec, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return academic.Section{}, errors.Wrap(err, "finding section")
	}
	if err = api.auth.checkTenant(ctx, sec.SchoolID); err != nil {
		return academic.Section{}, err
	}
	return sec, nil
}

func (api *academicApi) retrieveSection(ctx echo.Context) error {
	sec, err := api.section(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

// updateSection may move the section to another grade, of the same school only.
func (api *academicApi) updateSection(ctx echo.Context) error {
	sec, err := api.section(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateSection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSection")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if sec, err = api.svc.UpdateSection(ctx.Request().Context(), sec.ID, data); err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *academicApi) destroySection(ctx echo.Context) error {
	sec, err := api.section(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSections(ctx.Request().Context(), sec.ID); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.auth.checkTenant(ctx, data.SchoolID); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *academicApi) querySubjects(ctx echo.Context) error {
	schoolID, err := api.auth.scopeSchool(ctx, ctx.QueryParam("school_id"))
	if err != nil {
		return err
	}
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) subject(ctx echo.Context) (academic.Subject, error) {
	sub, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return academic.Subject{}, errors.Wrap(err, "finding subject")
	}
	if err = api.auth.checkTenant(ctx, sub.SchoolID); err != nil {
		return academic.Subject{}, err
	}
	return sub, nil
}

func (api *academicApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.subject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *academicApi) updateSubject(ctx echo.Context) error {
	sub, err := api.subject(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if sub, err = api.svc.UpdateSubject(ctx.Request().Context(), sub.ID, data); err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *academicApi) destroySubject(ctx echo.Context) error {
	sub, err := api.subject(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubjects(ctx.Request().Context(), sub.ID); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}
