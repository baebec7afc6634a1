// Package importer turns tabular uploads into roster creations, one isolated attempt per row.
package importer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/roster"
	"github.com/trezcool/shule/core/school"
)

// Kind is the kind of actor a batch creates.
type Kind string

const (
	KindTeacher Kind = "teacher"
	KindParent  Kind = "parent"
	KindStudent Kind = "student"
)

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindTeacher, KindParent, KindStudent:
		return k, true
	}
	return "", false
}

type (
	// Row maps normalized column names to cell values.
	Row map[string]string

	// Context is the target every row of a batch is created in.
	Context struct {
		SchoolID  string `json:"school_id"`
		SectionID string `json:"section_id"` // students only
	}

	Failure struct {
		Row    int    `json:"row"` // 1-based position in the batch
		Reason string `json:"reason"`
	}

	Summary struct {
		Created  int       `json:"created"`
		Skipped  int       `json:"skipped"`
		Failures []Failure `json:"failures"`
	}

	RosterCreator interface {
		CreateTeacher(ctx context.Context, nt roster.NewTeacher) (roster.Teacher, error)
		CreateParent(ctx context.Context, np roster.NewParent) (roster.Parent, error)
		CreateStudent(ctx context.Context, ns roster.NewStudent) (roster.Student, error)
	}

	SchoolGetter interface {
		Get(ctx context.Context, id string) (school.School, error)
	}

	SectionGetter interface {
		GetSection(ctx context.Context, id string) (academic.Section, error)
	}

	// Coordinator imports rows with per-row failure isolation: there is no transaction across rows,
	// each row commits or is discarded on its own.
	Coordinator struct {
		roster     RosterCreator
		schools    SchoolGetter
		sections   SectionGetter
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewCoordinator(
	rosterSvc RosterCreator,
	schools SchoolGetter,
	sections SectionGetter,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Coordinator {
	return &Coordinator{
		roster:     rosterSvc,
		schools:    schools,
		sections:   sections,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

// AbortedError reports a batch stopped before Row was processed.
// The rows before it are committed and counted in the summary returned with it.
type AbortedError struct {
	Row int
	Err error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("import aborted at row %d: %v", e.Row, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }

// ImportRows creates one actor of the given kind per row.
// The context is checked before any row is processed. A failing row is skipped and reported.
// Only a cancelled ctx or a lost database connection stops the batch: the error is then an *AbortedError
// returned along with the summary of the rows processed so far.
func (c *Coordinator) ImportRows(ctx context.Context, kind Kind, rows []Row, ictx Context) (Summary, error) {
	summary := Summary{Failures: []Failure{}}
	if err := c.checkContext(ctx, kind, &ictx); err != nil {
		return summary, err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, &AbortedError{Row: i + 1, Err: err}
		}

		err := c.importRow(ctx, kind, row, ictx)
		switch {
		case err == nil:
			summary.Created++
		case ctx.Err() != nil || isConnFailure(err):
			return summary, &AbortedError{Row: i + 1, Err: err}
		default:
			summary.Skipped++
			summary.Failures = append(summary.Failures, Failure{Row: i + 1, Reason: c.reason(err)})
			if isExpected(err) {
				c.logger.Warn(fmt.Sprintf("import %s: row %d skipped", kind, i+1), err)
			} else {
				c.logger.Error(fmt.Sprintf("import %s: row %d failed", kind, i+1), err)
			}
		}
	}

	c.logger.Info(fmt.Sprintf("import %s: %d created, %d skipped", kind, summary.Created, summary.Skipped))
	return summary, nil
}

func (c *Coordinator) checkContext(ctx context.Context, kind Kind, ictx *Context) error {
	ictx.SchoolID = core.CleanString(ictx.SchoolID)
	ictx.SectionID = core.CleanString(ictx.SectionID)

	if _, ok := ParseKind(string(kind)); !ok {
		return core.NewValidationError(errors.Errorf("unknown import kind %q", kind))
	}
	if ictx.SchoolID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "this field is required"})
	}
	if _, err := c.schools.Get(ctx, ictx.SchoolID); err != nil {
		return err
	}

	if kind != KindStudent {
		return nil
	}
	if ictx.SectionID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: "this field is required"})
	}
	sec, err := c.sections.GetSection(ctx, ictx.SectionID)
	if err != nil {
		return err
	}
	if sec.SchoolID != ictx.SchoolID {
		return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: "this section does not belong to the school"})
	}
	return nil
}

func (c *Coordinator) importRow(ctx context.Context, kind Kind, row Row, ictx Context) error {
	switch kind {
	case KindTeacher:
		nt := roster.NewTeacher{
			SchoolID:  ictx.SchoolID,
			FirstName: row["first_name"],
			LastName:  row["last_name"],
			Phone:     row["phone"],
			Email:     row["email"],
		}
		if err := nt.Validate(c.validate); err != nil {
			return core.TranslateValidationErrors(err, c.translator)
		}
		_, err := c.roster.CreateTeacher(ctx, nt)
		return err

	case KindParent:
		np := roster.NewParent{
			SchoolID:   ictx.SchoolID,
			StudentRef: row["student_id"],
			FirstName:  row["first_name"],
			LastName:   row["last_name"],
			Phone:      row["phone"],
			Email:      row["email"],
		}
		if err := np.Validate(c.validate); err != nil {
			return core.TranslateValidationErrors(err, c.translator)
		}
		_, err := c.roster.CreateParent(ctx, np)
		return err

	case KindStudent:
		age, err := parseInt(row["age"])
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "age", Error: "enter a whole number"})
		}
		ns := roster.NewStudent{
			SchoolID:  ictx.SchoolID,
			SectionID: ictx.SectionID,
			StudentID: row["student_id"],
			FirstName: row["first_name"],
			LastName:  row["last_name"],
			Age:       age,
			Gender:    row["gender"],
		}
		if err := ns.Validate(c.validate); err != nil {
			return core.TranslateValidationErrors(err, c.translator)
		}
		_, err = c.roster.CreateStudent(ctx, ns)
		return err
	}
	return errors.Errorf("unknown import kind %q", kind)
}

// reason renders err for the summary, field by field for validation errors.
func (c *Coordinator) reason(err error) string {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(vErr.Fields) > 0 {
		parts := make([]string, 0, len(vErr.Fields))
		for _, f := range vErr.Fields {
			parts = append(parts, f.Field+": "+f.Error)
		}
		return strings.Join(parts, "; ")
	}
	return errors.Cause(err).Error()
}

func isExpected(err error) bool {
	return core.IsValidation(err) || core.IsNotFound(err) || core.IsStateConflict(err) || core.IsDelivery(err)
}

// isConnFailure tells whether err means the database is unreachable, which fails every later row too.
func isConnFailure(err error) bool {
	if core.IsDelivery(err) {
		return false
	}
	switch errors.Cause(err) {
	case driver.ErrBadConn, sql.ErrConnDone:
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// parseInt accepts integers, and whole floats as spreadsheets often store them ("12.0").
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, errors.Errorf("invalid integer %q", s)
	}
	return int(f), nil
}
