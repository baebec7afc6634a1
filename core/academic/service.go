package academic

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrGradeNotFound   = core.NewNotFoundError("grade")
	ErrSectionNotFound = core.NewNotFoundError("section")
	ErrSubjectNotFound = core.NewNotFoundError("subject")
	ErrGradeExists     = errors.New("this grade already exists in the school")
	ErrSectionExists   = errors.New("this section already exists in the grade")
	ErrSubjectExists   = errors.New("this subject already exists in the school")
	errForeignGrade    = "this grade does not belong to the school of the section"
)

type (
	Repository interface {
		CreateGrade(ctx context.Context, grd Grade) (Grade, error)
		GetGrade(ctx context.Context, id string) (Grade, error)
		QueryGrades(ctx context.Context, schoolID string) ([]Grade, error)
		UpdateGrade(ctx context.Context, grd Grade) (Grade, error)
		DeleteGrades(ctx context.Context, ids ...string) error

		CreateSection(ctx context.Context, sec Section) (Section, error)
		GetSection(ctx context.Context, id string) (Section, error)
		QuerySections(ctx context.Context, gradeID string) ([]Section, error)
		UpdateSection(ctx context.Context, sec Section) (Section, error)
		DeleteSections(ctx context.Context, ids ...string) error

		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, schoolID string) ([]Subject, error)
		UpdateSubject(ctx context.Context, sub Subject) (Subject, error)
		DeleteSubjects(ctx context.Context, ids ...string) error
	}

	SchoolGetter interface {
		Get(ctx context.Context, id string) (school.School, error)
	}

	// Service manages the academic structure of schools: grades, their sections and subjects.
	Service struct {
		repo    Repository
		schools SchoolGetter
	}
)

func NewService(repo Repository, schools SchoolGetter) *Service {
	return &Service{repo: repo, schools: schools}
}

func uniquenessErr(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// CreateGrade adds a grade to an existing school. ng must have been validated.
func (svc *Service) CreateGrade(ctx context.Context, ng NewGrade) (Grade, error) {
	if _, err := svc.schools.Get(ctx, ng.SchoolID); err != nil {
		return Grade{}, err
	}
	grd, err := svc.repo.CreateGrade(ctx, Grade{SchoolID: ng.SchoolID, Name: ng.Name, CreatedAt: core.NowFunc()})
	if err != nil {
		if errors.Cause(err) == ErrGradeExists {
			return Grade{}, uniquenessErr(ErrGradeExists, "name")
		}
		return Grade{}, errors.Wrap(err, "creating grade")
	}
	return grd, nil
}

func (svc *Service) GetGrade(ctx context.Context, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, id)
}

func (svc *Service) QueryGrades(ctx context.Context, schoolID string) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, schoolID)
}

// UpdateGrade renames a grade. ug must have been validated.
func (svc *Service) UpdateGrade(ctx context.Context, id string, ug UpdateGrade) (Grade, error) {
	grd, err := svc.repo.GetGrade(ctx, id)
	if err != nil {
		return Grade{}, err
	}
	if ug.Name == "" || ug.Name == grd.Name {
		return grd, nil
	}
	grd.Name = ug.Name
	if grd, err = svc.repo.UpdateGrade(ctx, grd); err != nil {
		if errors.Cause(err) == ErrGradeExists {
			return Grade{}, uniquenessErr(ErrGradeExists, "name")
		}
		return Grade{}, errors.Wrap(err, "updating grade")
	}
	return grd, nil
}

func (svc *Service) DeleteGrades(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteGrades(ctx, ids...)
}

// CreateSection adds a section to an existing grade. ns must have been validated.
func (svc *Service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	grd, err := svc.repo.GetGrade(ctx, ns.GradeID)
	if err != nil {
		return Section{}, err
	}
	sec, err := svc.repo.CreateSection(ctx, Section{GradeID: grd.ID, SchoolID: grd.SchoolID, Name: ns.Name, CreatedAt: core.NowFunc()})
	if err != nil {
		if errors.Cause(err) == ErrSectionExists {
			return Section{}, uniquenessErr(ErrSectionExists, "name")
		}
		return Section{}, errors.Wrap(err, "creating section")
	}
	return sec, nil
}

func (svc *Service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) QuerySections(ctx context.Context, gradeID string) ([]Section, error) {
	return svc.repo.QuerySections(ctx, gradeID)
}

// UpdateSection renames a section or moves it to another grade of its school.
// us must have been validated.
func (svc *Service) UpdateSection(ctx context.Context, id string, us UpdateSection) (Section, error) {
	sec, err := svc.repo.GetSection(ctx, id)
	if err != nil {
		return Section{}, err
	}
	if us.GradeID != "" && us.GradeID != sec.GradeID {
		grd, err := svc.repo.GetGrade(ctx, us.GradeID)
		if err != nil {
			if core.IsNotFound(err) {
				return Section{}, core.NewValidationError(err, core.FieldError{Field: "grade_id", Error: "grade not found"})
			}
			return Section{}, err
		}
		if grd.SchoolID != sec.SchoolID {
			return Section{}, core.NewValidationError(nil, core.FieldError{Field: "grade_id", Error: errForeignGrade})
		}
		sec.GradeID = grd.ID
	}
	if us.Name != "" {
		sec.Name = us.Name
	}
	if sec, err = svc.repo.UpdateSection(ctx, sec); err != nil {
		if errors.Cause(err) == ErrSectionExists {
			return Section{}, uniquenessErr(ErrSectionExists, "name")
		}
		return Section{}, errors.Wrap(err, "updating section")
	}
	return sec, nil
}

func (svc *Service) DeleteSections(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteSections(ctx, ids...)
}

// CreateSubject adds a subject to an existing school. ns must have been validated.
func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if _, err := svc.schools.Get(ctx, ns.SchoolID); err != nil {
		return Subject{}, err
	}
	sub, err := svc.repo.CreateSubject(ctx, Subject{SchoolID: ns.SchoolID, Name: ns.Name, CreatedAt: core.NowFunc()})
	if err != nil {
		if errors.Cause(err) == ErrSubjectExists {
			return Subject{}, uniquenessErr(ErrSubjectExists, "name")
		}
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	return sub, nil
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context, schoolID string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, schoolID)
}

// UpdateSubject renames a subject. us must have been validated.
func (svc *Service) UpdateSubject(ctx context.Context, id string, us UpdateSubject) (Subject, error) {
	sub, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if us.Name == "" || us.Name == sub.Name {
		return sub, nil
	}
	sub.Name = us.Name
	if sub, err = svc.repo.UpdateSubject(ctx, sub); err != nil {
		if errors.Cause(err) == ErrSubjectExists {
			return Subject{}, uniquenessErr(ErrSubjectExists, "name")
		}
		return Subject{}, errors.Wrap(err, "updating subject")
	}
	return sub, nil
}

func (svc *Service) DeleteSubjects(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteSubjects(ctx, ids...)
}
