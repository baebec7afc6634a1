package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
)

const sectionColumns = "sec.id, sec.grade_id, g.school_id, sec.name, sec.created_at"

// unitRow maps grades and subjects, which share their columns.
type unitRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type sectionRow struct {
	ID        string    `db:"id"`
	GradeID   string    `db:"grade_id"`
	SchoolID  string    `db:"school_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r sectionRow) toSection() academic.Section {
	return academic.Section{ID: r.ID, GradeID: r.GradeID, SchoolID: r.SchoolID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()}
}

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

// createUnit inserts a grade or a subject into table.
func (repo *academicRepository) createUnit(ctx context.Context, table string, row unitRow, exists error) (unitRow, error) {
	if !validID(row.SchoolID) {
		return unitRow{}, errors.Errorf("invalid school id %q", row.SchoolID)
	}
	row.ID = uuid.New().String()
	row.CreatedAt = row.CreatedAt.UTC()
	q := `INSERT INTO ` + table + ` (id, school_id, name, created_at) VALUES (:id, :school_id, :name, :created_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		if isUniqueViolation(err) {
			return unitRow{}, exists
		}
		return unitRow{}, errors.Wrapf(err, "inserting into %s", table)
	}
	return row, nil
}

func (repo *academicRepository) getUnit(ctx context.Context, table, id string, notFound error) (unitRow, error) {
	var row unitRow
	q := `SELECT id, school_id, name, created_at FROM ` + table + ` WHERE id = $1`
	err := repo.db.getByID(ctx, &row, q, id, notFound, "finding in "+table)
	row.CreatedAt = row.CreatedAt.UTC()
	return row, err
}

// queryUnits returns the rows of table for schoolID, or all of them when it is empty.
func (repo *academicRepository) queryUnits(ctx context.Context, table, schoolID string) ([]unitRow, error) {
	var (
		conds []string
		args  []interface{}
	)
	if schoolID != "" {
		if !validID(schoolID) {
			return nil, nil
		}
		conds = append(conds, "school_id = $1")
		args = append(args, schoolID)
	}
	var rows []unitRow
	q := `SELECT id, school_id, name, created_at FROM ` + table + where(conds) + ` ORDER BY name`
	if err := sqlxSelect(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	return rows, nil
}

// renameUnit renames a grade or a subject of table.
func (repo *academicRepository) renameUnit(ctx context.Context, table string, row unitRow, notFound, exists error) error {
	if !validID(row.ID) {
		return notFound
	}
	q := `UPDATE ` + table + ` SET name = :name WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return exists
		}
		return errors.Wrapf(err, "updating %s", table)
	}
	return checkAffected(res, notFound)
}

func (repo *academicRepository) CreateGrade(ctx context.Context, grd academic.Grade) (academic.Grade, error) {
	row, err := repo.createUnit(ctx, "grades", unitRow{SchoolID: grd.SchoolID, Name: grd.Name, CreatedAt: grd.CreatedAt}, academic.ErrGradeExists)
	if err != nil {
		return academic.Grade{}, err
	}
	return academic.Grade(row), nil
}

func (repo *academicRepository) GetGrade(ctx context.Context, id string) (academic.Grade, error) {
	row, err := repo.getUnit(ctx, "grades", id, academic.ErrGradeNotFound)
	if err != nil {
		return academic.Grade{}, err
	}
	return academic.Grade(row), nil
}

func (repo *academicRepository) QueryGrades(ctx context.Context, schoolID string) ([]academic.Grade, error) {
	rows, err := repo.queryUnits(ctx, "grades", schoolID)
	if err != nil {
		return nil, err
	}
	grades := make([]academic.Grade, 0, len(rows))
	for _, r := range rows {
		r.CreatedAt = r.CreatedAt.UTC()
		grades = append(grades, academic.Grade(r))
	}
	return grades, nil
}

func (repo *academicRepository) UpdateGrade(ctx context.Context, grd academic.Grade) (academic.Grade, error) {
	if err := repo.renameUnit(ctx, "grades", unitRow(grd), academic.ErrGradeNotFound, academic.ErrGradeExists); err != nil {
		return academic.Grade{}, err
	}
	return grd, nil
}

func (repo *academicRepository) DeleteGrades(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "grades", ids)
}

func (repo *academicRepository) CreateSection(ctx context.Context, sec academic.Section) (academic.Section, error) {
	grd, err := repo.GetGrade(ctx, sec.GradeID)
	if err != nil {
		return academic.Section{}, err
	}
	sec.ID = uuid.New().String()
	sec.SchoolID = grd.SchoolID
	q := `INSERT INTO sections (id, grade_id, name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err = repo.db.getExec(ctx).ExecContext(ctx, q, sec.ID, sec.GradeID, sec.Name, sec.CreatedAt.UTC()); err != nil {
		switch {
		case isUniqueViolation(err):
			return academic.Section{}, academic.ErrSectionExists
		case isForeignKeyViolation(err):
			return academic.Section{}, academic.ErrGradeNotFound
		}
		return academic.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}

func (repo *academicRepository) GetSection(ctx context.Context, id string) (academic.Section, error) {
	var row sectionRow
	q := `SELECT ` + sectionColumns + ` FROM sections sec JOIN grades g ON g.id = sec.grade_id WHERE sec.id = $1`
	if err := repo.db.getByID(ctx, &row, q, id, academic.ErrSectionNotFound, "finding section"); err != nil {
		return academic.Section{}, err
	}
	return row.toSection(), nil
}

func (repo *academicRepository) QuerySections(ctx context.Context, gradeID string) ([]academic.Section, error) {
	var (
		conds []string
		args  []interface{}
	)
	if gradeID != "" {
		if !validID(gradeID) {
			return []academic.Section{}, nil
		}
		conds = append(conds, "sec.grade_id = $1")
		args = append(args, gradeID)
	}
	var rows []sectionRow
	q := `SELECT ` + sectionColumns + ` FROM sections sec JOIN grades g ON g.id = sec.grade_id` + where(conds) + ` ORDER BY sec.name`
	if err := sqlxSelect(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	sections := make([]academic.Section, 0, len(rows))
	for _, r := range rows {
		sections = append(sections, r.toSection())
	}
	return sections, nil
}

func (repo *academicRepository) UpdateSection(ctx context.Context, sec academic.Section) (academic.Section, error) {
	if !validID(sec.ID) {
		return academic.Section{}, academic.ErrSectionNotFound
	}
	q := `UPDATE sections SET grade_id = $2, name = $3 WHERE id = $1`
	res, err := repo.db.getExec(ctx).ExecContext(ctx, q, sec.ID, sec.GradeID, sec.Name)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return academic.Section{}, academic.ErrSectionExists
		case isForeignKeyViolation(err):
			return academic.Section{}, academic.ErrGradeNotFound
		}
		return academic.Section{}, errors.Wrap(err, "updating section")
	}
	if err = checkAffected(res, academic.ErrSectionNotFound); err != nil {
		return academic.Section{}, err
	}
	return repo.GetSection(ctx, sec.ID)
}

func (repo *academicRepository) DeleteSections(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "sections", ids)
}

func (repo *academicRepository) CreateSubject(ctx context.Context, sub academic.Subject) (academic.Subject, error) {
	row, err := repo.createUnit(ctx, "subjects", unitRow{SchoolID: sub.SchoolID, Name: sub.Name, CreatedAt: sub.CreatedAt}, academic.ErrSubjectExists)
	if err != nil {
		return academic.Subject{}, err
	}
	return academic.Subject(row), nil
}

func (repo *academicRepository) GetSubject(ctx context.Context, id string) (academic.Subject, error) {
	row, err := repo.getUnit(ctx, "subjects", id, academic.ErrSubjectNotFound)
	if err != nil {
		return academic.Subject{}, err
	}
	return academic.Subject(row), nil
}

func (repo *academicRepository) QuerySubjects(ctx context.Context, schoolID string) ([]academic.Subject, error) {
	rows, err := repo.queryUnits(ctx, "subjects", schoolID)
	if err != nil {
		return nil, err
	}
	subjects := make([]academic.Subject, 0, len(rows))
	for _, r := range rows {
		r.CreatedAt = r.CreatedAt.UTC()
		subjects = append(subjects, academic.Subject(r))
	}
	return subjects, nil
}

func (repo *academicRepository) UpdateSubject(ctx context.Context, sub academic.Subject) (academic.Subject, error) {
	if err := repo.renameUnit(ctx, "subjects", unitRow(sub), academic.ErrSubjectNotFound, academic.ErrSubjectExists); err != nil {
		return academic.Subject{}, err
	}
	return sub, nil
}

func (repo *academicRepository) DeleteSubjects(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "subjects", ids)
}
