package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/importer"
	"github.com/trezcool/shule/core/roster"
)

type rosterApi struct {
	auth      *auth
	conf      *core.Config
	logger    core.Logger
	svc       *roster.Service
	academics *academic.Service
	importer  *importer.Coordinator
	validate  *validator.Validate
}

func registerRosterAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, deps ServerDeps) {
	api := rosterApi{
		auth:      a,
		conf:      deps.Conf,
		logger:    deps.Logger,
		svc:       deps.Roster,
		academics: deps.Academics,
		importer:  deps.Importer,
		validate:  deps.Validate,
	}
	view := a.requireCapability(identity.CapViewRoster)
	manage := a.requireCapability(identity.CapManageRoster)
	upload := a.requireCapability(identity.CapImportRoster)

	tg := g.Group("/teachers", jwt)
	tg.POST("", api.createTeacher, manage)
	tg.POST("/upload", api.upload(importer.KindTeacher), upload)
	tg.GET("", api.queryTeachers, view)
	tg.GET("/:id", api.retrieveTeacher, view)
	tg.Match(updateMethods, "/:id", api.updateTeacher, manage)
	tg.DELETE("/:id", api.destroyTeacher, manage)

	pg := g.Group("/parents", jwt)
	pg.POST("", api.createParent, manage)
	pg.POST("/upload", api.upload(importer.KindParent), upload)
	pg.GET("", api.queryParents, view)
	pg.GET("/:id", api.retrieveParent, view)
	pg.Match(updateMethods, "/:id", api.updateParent, manage)
	pg.DELETE("/:id", api.destroyParent, manage)

	sg := g.Group("/students", jwt)
	sg.POST("", api.createStudent, manage)
	sg.POST("/upload", api.upload(importer.KindStudent), upload)
	sg.GET("", api.queryStudents, view)
	sg.GET("/:id", api.retrieveStudent, view)
	sg.GET("/:id/teachers-subjects", api.studentTeachersSubjects)
	sg.Match(updateMethods, "/:id", api.updateStudent, manage)
	sg.DELETE("/:id", api.destroyStudent, manage)

	manageAcademics := a.requireCapability(identity.CapManageAcademics)
	ag := g.Group("/assignments", jwt)
	ag.POST("", api.assign, manageAcademics)
	ag.GET("", api.queryAssignments, view)
	ag.GET("/:id", api.retrieveAssignment, view)
	ag.Match(updateMethods, "/:id", api.updateAssignment, manageAcademics)
	ag.DELETE("/:id", api.destroyAssignment, manageAcademics)
}

// Teachers

func (api *rosterApi) createTeacher(ctx echo.Context) error {
	var data roster.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.auth.checkTenant(ctx, data.SchoolID); err != nil {
		return err
	}

	tch, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, tch)
}

func (api *rosterApi) queryTeachers(ctx echo.Context) error {
	schoolID, err := api.auth.scopeSchool(ctx, ctx.QueryParam("school_id"))
	if err != nil {
		return err
	}
	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *rosterApi) getTeacher(ctx echo.Context) (roster.Teacher, error) {
	tch, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return roster.Teacher{}, errors.Wrap(err, "finding teacher")
	}
	return tch, api.auth.checkTenant(ctx, tch.SchoolID)
}

func (api *rosterApi) retrieveTeacher(ctx echo.Context) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *rosterApi) updateTeacher(ctx echo.Context) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	var data roster.UpdateTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if tch, err = api.svc.UpdateTeacher(ctx.Request().Context(), tch.ID, data); err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *rosterApi) destroyTeacher(ctx echo.Context) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTeachers(ctx.Request().Context(), tch.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Parents

func (api *rosterApi) createParent(ctx echo.Context) error {
	var data roster.NewParent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.auth.checkTenant(ctx, data.SchoolID); err != nil {
		return err
	}

	prt, err := api.svc.CreateParent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating parent")
	}
	return ctx.JSON(http.StatusCreated, prt)
}

func (api *rosterApi) queryParents(ctx echo.Context) error {
	schoolID, err := api.auth.scopeSchool(ctx, ctx.QueryParam("school_id"))
	if err != nil {
		return err
	}
	parents, err := api.svc.QueryParents(ctx.Request().Context(), roster.ParentFilter{
		SchoolID:  schoolID,
		StudentID: core.CleanString(ctx.QueryParam("student")),
	})
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	return ctx.JSON(http.StatusOK, parents)
}

func (api *rosterApi) getParent(ctx echo.Context) (roster.Parent, error) {
	prt, err := api.svc.GetParent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return roster.Parent{}, errors.Wrap(err, "finding parent")
	}
	return prt, api.auth.checkTenant(ctx, prt.SchoolID)
}

func (api *rosterApi) retrieveParent(ctx echo.Context) error {
	prt, err := api.getParent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prt)
}

func (api *rosterApi) updateParent(ctx echo.Context) error {
	prt, err := api.getParent(ctx)
	if err != nil {
		return err
	}
	var data roster.UpdateParent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateParent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if prt, err = api.svc.UpdateParent(ctx.Request().Context(), prt.ID, data); err != nil {
		return errors.Wrap(err, "updating parent")
	}
	return ctx.JSON(http.StatusOK, prt)
}

func (api *rosterApi) destroyParent(ctx echo.Context) error {
	prt, err := api.getParent(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteParents(ctx.Request().Context(), prt.ID); err != nil {
		return errors.Wrap(err, "deleting parent")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data roster.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.auth.checkTenant(ctx, data.SchoolID); err != nil {
		return err
	}

	std, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *rosterApi) queryStudents(ctx echo.Context) error {
	schoolID, err := api.auth.scopeSchool(ctx, ctx.QueryParam("school_id"))
	if err != nil {
		return err
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), roster.StudentFilter{
		SchoolID:  schoolID,
		SectionID: core.CleanString(ctx.QueryParam("section_id")),
	})
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *rosterApi) getStudent(ctx echo.Context) (roster.Student, error) {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return roster.Student{}, errors.Wrap(err, "finding student")
	}
	return std, api.auth.checkTenant(ctx, std.SchoolID)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	std, err := api.getStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *rosterApi) updateStudent(ctx echo.Context) error {
	std, err := api.getStudent(ctx)
	if err != nil {
		return err
	}
	var data roster.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if std, err = api.svc.UpdateStudent(ctx.Request().Context(), std.ID, data); err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

// studentTeachersSubjects lists who teaches what in the student's section.
// Besides the roster viewers of the school, a parent of the student may see it.
func (api *rosterApi) studentTeachersSubjects(ctx echo.Context) error {
	idt, err := api.auth.getContextIdentity(ctx)
	if err != nil {
		return err
	}
	std, err := api.getStudent(ctx)
	if err != nil {
		return err
	}
	if !idt.Role.Can(identity.CapViewRoster) {
		if err = api.checkParentOf(ctx, idt, std.ID); err != nil {
			return err
		}
	}

	list, err := api.svc.TeachersSubjects(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "listing teachers and subjects")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *rosterApi) checkParentOf(ctx echo.Context, idt identity.Identity, studentID string) error {
	if idt.Role != identity.RoleParent {
		return errHttpForbidden
	}
	parents, err := api.svc.QueryParents(ctx.Request().Context(), roster.ParentFilter{StudentID: studentID})
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	for _, prt := range parents {
		if prt.IdentityID == idt.ID {
			return nil
		}
	}
	return errHttpForbidden
}

func (api *rosterApi) destroyStudent(ctx echo.Context) error {
	std, err := api.getStudent(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudents(ctx.Request().Context(), std.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments

func (api *rosterApi) assign(ctx echo.Context) error {
	var data roster.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.checkTeacherTenant(ctx, data.TeacherID); err != nil {
		return err
	}

	asg, err := api.svc.Assign(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

// queryAssignments lists the assignments of a teacher or of a section.
func (api *rosterApi) queryAssignments(ctx echo.Context) error {
	filter := roster.AssignmentFilter{
		TeacherID: core.CleanString(ctx.QueryParam("teacher_id")),
		SectionID: core.CleanString(ctx.QueryParam("section_id")),
	}

	var schoolID string
	switch {
	case filter.TeacherID != "":
		tch, err := api.svc.GetTeacher(ctx.Request().Context(), filter.TeacherID)
		if err != nil {
			return errors.Wrap(err, "finding teacher")
		}
		schoolID = tch.SchoolID
	case filter.SectionID != "":
		sec, err := api.academics.GetSection(ctx.Request().Context(), filter.SectionID)
		if err != nil {
			return errors.Wrap(err, "finding section")
		}
		schoolID = sec.SchoolID
	default:
		return core.NewValidationError(errors.New("teacher_id or section_id is required"))
	}
	if err := api.auth.checkTenant(ctx, schoolID); err != nil {
		return err
	}

	asgs, err := api.svc.QueryAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

// getAssignment loads the assignment of the "id" path param; its school is its teacher's.
func (api *rosterApi) getAssignment(ctx echo.Context) (roster.Assignment, error) {
	asg, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return roster.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return asg, api.checkTeacherTenant(ctx, asg.TeacherID)
}

func (api *rosterApi) checkTeacherTenant(ctx echo.Context, teacherID string) error {
	tch, err := api.svc.GetTeacher(ctx.Request().Context(), teacherID)
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}
	return api.auth.checkTenant(ctx, tch.SchoolID)
}

func (api *rosterApi) retrieveAssignment(ctx echo.Context) error {
	asg, err := api.getAssignment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *rosterApi) updateAssignment(ctx echo.Context) error {
	asg, err := api.getAssignment(ctx)
	if err != nil {
		return err
	}
	var data roster.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if data.TeacherID != "" && data.TeacherID != asg.TeacherID {
		if err = api.checkTeacherTenant(ctx, data.TeacherID); err != nil {
			return err
		}
	}

	if asg, err = api.svc.UpdateAssignment(ctx.Request().Context(), asg.ID, data); err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *rosterApi) destroyAssignment(ctx echo.Context) error {
	asg, err := api.getAssignment(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssignments(ctx.Request().Context(), asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
