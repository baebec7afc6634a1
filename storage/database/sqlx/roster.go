package sqlxrepos

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/roster"
)

const (
	teacherColumns    = "id, school_id, first_name, last_name, phone, email, identity_id, created_at"
	parentColumns     = "id, school_id, student_id, stu_id, first_name, last_name, phone, email, identity_id, created_at"
	studentColumns    = "id, school_id, section_id, student_id, first_name, last_name, age, gender, created_at"
	assignmentColumns = "id, teacher_id, section_id, subject_id, created_at"
)

type teacherRow struct {
	ID         string      `db:"id"`
	SchoolID   string      `db:"school_id"`
	FirstName  string      `db:"first_name"`
	LastName   string      `db:"last_name"`
	Phone      string      `db:"phone"`
	Email      string      `db:"email"`
	IdentityID null.String `db:"identity_id"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toTeacherRow(tch roster.Teacher) teacherRow {
	return teacherRow{
		ID:         tch.ID,
		SchoolID:   tch.SchoolID,
		FirstName:  tch.FirstName,
		LastName:   tch.LastName,
		Phone:      tch.Phone,
		Email:      tch.Email,
		IdentityID: null.NewString(tch.IdentityID, tch.IdentityID != ""),
		CreatedAt:  tch.CreatedAt.UTC(),
	}
}

func (r teacherRow) toTeacher() roster.Teacher {
	return roster.Teacher{
		ID:         r.ID,
		SchoolID:   r.SchoolID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Phone:      r.Phone,
		Email:      r.Email,
		IdentityID: r.IdentityID.String,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type parentRow struct {
	ID         string      `db:"id"`
	SchoolID   string      `db:"school_id"`
	StudentID  string      `db:"student_id"`
	StudentRef string      `db:"stu_id"`
	FirstName  string      `db:"first_name"`
	LastName   string      `db:"last_name"`
	Phone      string      `db:"phone"`
	Email      string      `db:"email"`
	IdentityID null.String `db:"identity_id"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toParentRow(prt roster.Parent) parentRow {
	return parentRow{
		ID:         prt.ID,
		SchoolID:   prt.SchoolID,
		StudentID:  prt.StudentID,
		StudentRef: prt.StudentRef,
		FirstName:  prt.FirstName,
		LastName:   prt.LastName,
		Phone:      prt.Phone,
		Email:      prt.Email,
		IdentityID: null.NewString(prt.IdentityID, prt.IdentityID != ""),
		CreatedAt:  prt.CreatedAt.UTC(),
	}
}

func (r parentRow) toParent() roster.Parent {
	return roster.Parent{
		ID:         r.ID,
		SchoolID:   r.SchoolID,
		StudentID:  r.StudentID,
		StudentRef: r.StudentRef,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Phone:      r.Phone,
		Email:      r.Email,
		IdentityID: r.IdentityID.String,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type studentRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	SectionID string    `db:"section_id"`
	StudentID string    `db:"student_id"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Age       int       `db:"age"`
	Gender    string    `db:"gender"`
	CreatedAt time.Time `db:"created_at"`
}

func (r studentRow) toStudent() roster.Student {
	std := roster.Student(r)
	std.CreatedAt = std.CreatedAt.UTC()
	return std
}

type assignmentRow struct {
	ID        string    `db:"id"`
	TeacherID string    `db:"teacher_id"`
	SectionID string    `db:"section_id"`
	SubjectID string    `db:"subject_id"`
	CreatedAt time.Time `db:"created_at"`
}

// filterArgs collects "column = $n" conditions for the non empty UUID values.
// ok is false when a value cannot match any row.
type filterArgs struct {
	conds []string
	args  []interface{}
	ok    bool
}

func newFilterArgs() *filterArgs {
	return &filterArgs{ok: true}
}

func (f *filterArgs) eq(column, id string) *filterArgs {
	if id == "" {
		return f
	}
	if !validID(id) {
		f.ok = false
		return f
	}
	f.args = append(f.args, id)
	f.conds = append(f.conds, column+" = $"+strconv.Itoa(len(f.args)))
	return f
}

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateTeacher(ctx context.Context, tch roster.Teacher) (roster.Teacher, error) {
	tch.ID = uuid.New().String()
	q := `INSERT INTO teachers (` + teacherColumns + `)
		VALUES (:id, :school_id, :first_name, :last_name, :phone, :email, :identity_id, :created_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, toTeacherRow(tch)); err != nil {
		if isUniqueViolation(err) {
			return roster.Teacher{}, roster.ErrTeacherExists
		}
		return roster.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return tch, nil
}

func (repo *rosterRepository) GetTeacher(ctx context.Context, id string) (roster.Teacher, error) {
	var row teacherRow
	q := `SELECT ` + teacherColumns + ` FROM teachers WHERE id = $1`
	if err := repo.db.getByID(ctx, &row, q, id, roster.ErrTeacherNotFound, "finding teacher"); err != nil {
		return roster.Teacher{}, err
	}
	return row.toTeacher(), nil
}

func (repo *rosterRepository) QueryTeachers(ctx context.Context, schoolID string) ([]roster.Teacher, error) {
	f := newFilterArgs().eq("school_id", schoolID)
	if !f.ok {
		return []roster.Teacher{}, nil
	}
	var rows []teacherRow
	q := `SELECT ` + teacherColumns + ` FROM teachers` + where(f.conds) + ` ORDER BY email`
	if err := sqlxSelect(ctx, repo.db, &rows, q, f.args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]roster.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.toTeacher())
	}
	return teachers, nil
}

func (repo *rosterRepository) UpdateTeacher(ctx context.Context, tch roster.Teacher) (roster.Teacher, error) {
	if !validID(tch.ID) {
		return roster.Teacher{}, roster.ErrTeacherNotFound
	}
	q := `UPDATE teachers SET
		first_name = :first_name, last_name = :last_name, phone = :phone, email = :email, identity_id = :identity_id
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, toTeacherRow(tch))
	if err != nil {
		if isUniqueViolation(err) {
			return roster.Teacher{}, roster.ErrTeacherExists
		}
		return roster.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if err = checkAffected(res, roster.ErrTeacherNotFound); err != nil {
		return roster.Teacher{}, err
	}
	return tch, nil
}

func (repo *rosterRepository) DeleteTeachers(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "teachers", ids)
}

func (repo *rosterRepository) CreateParent(ctx context.Context, prt roster.Parent) (roster.Parent, error) {
	if !validID(prt.StudentID) {
		return roster.Parent{}, roster.ErrStudentNotFound
	}
	prt.ID = uuid.New().String()
	q := `INSERT INTO parents (` + parentColumns + `)
		VALUES (:id, :school_id, :student_id, :stu_id, :first_name, :last_name, :phone, :email, :identity_id, :created_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, toParentRow(prt)); err != nil {
		switch {
		case isUniqueViolation(err):
			return roster.Parent{}, roster.ErrParentExists
		case isForeignKeyViolation(err):
			return roster.Parent{}, roster.ErrStudentNotFound
		}
		return roster.Parent{}, errors.Wrap(err, "inserting parent")
	}
	return prt, nil
}

func (repo *rosterRepository) GetParent(ctx context.Context, id string) (roster.Parent, error) {
	var row parentRow
	q := `SELECT ` + parentColumns + ` FROM parents WHERE id = $1`
	if err := repo.db.getByID(ctx, &row, q, id, roster.ErrParentNotFound, "finding parent"); err != nil {
		return roster.Parent{}, err
	}
	return row.toParent(), nil
}

func (repo *rosterRepository) QueryParents(ctx context.Context, filter roster.ParentFilter) ([]roster.Parent, error) {
	f := newFilterArgs().eq("school_id", filter.SchoolID).eq("student_id", filter.StudentID)
	if !f.ok {
		return []roster.Parent{}, nil
	}
	var rows []parentRow
	q := `SELECT ` + parentColumns + ` FROM parents` + where(f.conds) + ` ORDER BY email`
	if err := sqlxSelect(ctx, repo.db, &rows, q, f.args...); err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	parents := make([]roster.Parent, 0, len(rows))
	for _, r := range rows {
		parents = append(parents, r.toParent())
	}
	return parents, nil
}

func (repo *rosterRepository) UpdateParent(ctx context.Context, prt roster.Parent) (roster.Parent, error) {
	if !validID(prt.ID) {
		return roster.Parent{}, roster.ErrParentNotFound
	}
	q := `UPDATE parents SET
		student_id = :student_id, stu_id = :stu_id,
		first_name = :first_name, last_name = :last_name, phone = :phone, email = :email, identity_id = :identity_id
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, toParentRow(prt))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return roster.Parent{}, roster.ErrParentExists
		case isForeignKeyViolation(err):
			return roster.Parent{}, roster.ErrStudentNotFound
		}
		return roster.Parent{}, errors.Wrap(err, "updating parent")
	}
	if err = checkAffected(res, roster.ErrParentNotFound); err != nil {
		return roster.Parent{}, err
	}
	return prt, nil
}

func (repo *rosterRepository) DeleteParents(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "parents", ids)
}

func (repo *rosterRepository) CreateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	std.ID = uuid.New().String()
	std.CreatedAt = std.CreatedAt.UTC()
	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :school_id, :section_id, :student_id, :first_name, :last_name, :age, :gender, :created_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, studentRow(std)); err != nil {
		if isUniqueViolation(err) {
			return roster.Student{}, roster.ErrStudentExists
		}
		return roster.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	if err := repo.db.getByID(ctx, &row, q, id, roster.ErrStudentNotFound, "finding student"); err != nil {
		return roster.Student{}, err
	}
	return row.toStudent(), nil
}

func (repo *rosterRepository) GetStudentByRef(ctx context.Context, schoolID, studentRef string) (roster.Student, error) {
	if !validID(schoolID) {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM students WHERE school_id = $1 AND student_id = $2`
	if err := sqlxGet(ctx, repo.db, &row, q, schoolID, studentRef); err != nil {
		return roster.Student{}, trapNoRowsErr(err, roster.ErrStudentNotFound, "finding student")
	}
	return row.toStudent(), nil
}

func (repo *rosterRepository) QueryStudents(ctx context.Context, filter roster.StudentFilter) ([]roster.Student, error) {
	f := newFilterArgs().eq("school_id", filter.SchoolID).eq("section_id", filter.SectionID)
	if !f.ok {
		return []roster.Student{}, nil
	}
	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM students` + where(f.conds) + ` ORDER BY student_id`
	if err := sqlxSelect(ctx, repo.db, &rows, q, f.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]roster.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

// UpdateStudent also carries a new student id over to the student's parents.
func (repo *rosterRepository) UpdateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	if !validID(std.ID) {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	q := `UPDATE students SET
		section_id = :section_id, student_id = :student_id,
		first_name = :first_name, last_name = :last_name, age = :age, gender = :gender
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, studentRow(std))
	if err != nil {
		if isUniqueViolation(err) {
			return roster.Student{}, roster.ErrStudentExists
		}
		return roster.Student{}, errors.Wrap(err, "updating student")
	}
	if err = checkAffected(res, roster.ErrStudentNotFound); err != nil {
		return roster.Student{}, err
	}

	q = `UPDATE parents SET stu_id = $2 WHERE student_id = $1`
	if _, err = repo.db.getExec(ctx).ExecContext(ctx, q, std.ID, std.StudentID); err != nil {
		return roster.Student{}, errors.Wrap(err, "updating parents of student")
	}
	return std, nil
}

func (repo *rosterRepository) DeleteStudents(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "students", ids)
}

func (repo *rosterRepository) CreateAssignment(ctx context.Context, asg roster.Assignment) (roster.Assignment, error) {
	asg.ID = uuid.New().String()
	asg.CreatedAt = asg.CreatedAt.UTC()
	q := `INSERT INTO assignments (` + assignmentColumns + `) VALUES (:id, :teacher_id, :section_id, :subject_id, :created_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, assignmentRow(asg)); err != nil {
		if isUniqueViolation(err) {
			return roster.Assignment{}, roster.ErrAssignmentExists
		}
		return roster.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo *rosterRepository) GetAssignment(ctx context.Context, id string) (roster.Assignment, error) {
	var row assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	if err := repo.db.getByID(ctx, &row, q, id, roster.ErrAssignmentNotFound, "finding assignment"); err != nil {
		return roster.Assignment{}, err
	}
	asg := roster.Assignment(row)
	asg.CreatedAt = asg.CreatedAt.UTC()
	return asg, nil
}

func (repo *rosterRepository) QueryAssignments(ctx context.Context, filter roster.AssignmentFilter) ([]roster.Assignment, error) {
	f := newFilterArgs().eq("teacher_id", filter.TeacherID).eq("section_id", filter.SectionID)
	if !f.ok {
		return []roster.Assignment{}, nil
	}
	var rows []assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments` + where(f.conds) + ` ORDER BY created_at`
	if err := sqlxSelect(ctx, repo.db, &rows, q, f.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]roster.Assignment, 0, len(rows))
	for _, r := range rows {
		asg := roster.Assignment(r)
		asg.CreatedAt = asg.CreatedAt.UTC()
		asgs = append(asgs, asg)
	}
	return asgs, nil
}

func (repo *rosterRepository) UpdateAssignment(ctx context.Context, asg roster.Assignment) (roster.Assignment, error) {
	if !validID(asg.ID) {
		return roster.Assignment{}, roster.ErrAssignmentNotFound
	}
	q := `UPDATE assignments SET teacher_id = :teacher_id, section_id = :section_id, subject_id = :subject_id WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, assignmentRow(asg))
	if err != nil {
		if isUniqueViolation(err) {
			return roster.Assignment{}, roster.ErrAssignmentExists
		}
		return roster.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if err = checkAffected(res, roster.ErrAssignmentNotFound); err != nil {
		return roster.Assignment{}, err
	}
	return asg, nil
}

func (repo *rosterRepository) DeleteAssignments(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "assignments", ids)
}
