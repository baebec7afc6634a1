package roster

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrTeacherNotFound    = core.NewNotFoundError("teacher")
	ErrParentNotFound     = core.NewNotFoundError("parent")
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")
	ErrTeacherExists      = errors.New("a teacher with this email already exists")
	ErrParentExists       = errors.New("a parent with this email already exists")
	ErrStudentExists      = errors.New("a student with this student id already exists in the school")
	ErrAssignmentExists   = errors.New("this assignment already exists")
	errForeignSection     = "this section does not belong to the school"
	errForeignAssignation = "teacher, section and subject must belong to the same school"
	errEmailReadOnly      = "the email of an account cannot be changed"
)

type (
	Repository interface {
		CreateTeacher(ctx context.Context, tch Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id string) (Teacher, error)
		QueryTeachers(ctx context.Context, schoolID string) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, tch Teacher) (Teacher, error)
		DeleteTeachers(ctx context.Context, ids ...string) error

		CreateParent(ctx context.Context, prt Parent) (Parent, error)
		GetParent(ctx context.Context, id string) (Parent, error)
		QueryParents(ctx context.Context, filter ParentFilter) ([]Parent, error)
		UpdateParent(ctx context.Context, prt Parent) (Parent, error)
		DeleteParents(ctx context.Context, ids ...string) error

		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		// GetStudentByRef finds a student by the id its school gave it.
		GetStudentByRef(ctx context.Context, schoolID, studentRef string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, std Student) (Student, error)
		DeleteStudents(ctx context.Context, ids ...string) error

		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignments(ctx context.Context, ids ...string) error
	}

	SchoolGetter interface {
		Get(ctx context.Context, id string) (school.School, error)
	}

	AcademicGetter interface {
		GetSection(ctx context.Context, id string) (academic.Section, error)
		GetSubject(ctx context.Context, id string) (academic.Subject, error)
	}

	// Service manages the people of a school.
	// Teachers and parents are provisioned a login identity on creation; students are not.
	// Every creation is its own transaction.
	Service struct {
		repo        Repository
		txm         core.TxManager
		provisioner *identity.Provisioner
		schools     SchoolGetter
		academics   AcademicGetter
	}
)

func NewService(
	repo Repository,
	txm core.TxManager,
	provisioner *identity.Provisioner,
	schools SchoolGetter,
	academics AcademicGetter,
) *Service {
	return &Service{
		repo:        repo,
		txm:         txm,
		provisioner: provisioner,
		schools:     schools,
		academics:   academics,
	}
}

func fieldErr(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// CreateTeacher persists a teacher and provisions its TEACHER identity. nt must have been validated.
func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	var tch Teacher
	err := svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		sch, err := svc.schools.Get(ctx, nt.SchoolID)
		if err != nil {
			return err
		}

		tch, err = svc.repo.CreateTeacher(ctx, Teacher{
			SchoolID:  sch.ID,
			FirstName: nt.FirstName,
			LastName:  nt.LastName,
			Phone:     nt.Phone,
			Email:     nt.Email,
			CreatedAt: core.NowFunc(),
		})
		if err != nil {
			if errors.Cause(err) == ErrTeacherExists {
				return fieldErr(ErrTeacherExists, "email")
			}
			return errors.Wrap(err, "creating teacher")
		}

		actor := rosterActor{name: tch.FirstName, email: tch.Email, from: sch.MailAddress(), schoolID: sch.ID}
		_, err = svc.provisioner.Provision(ctx, actor, identity.RoleTeacher, func(ctx context.Context, identityID string) error {
			tch.IdentityID = identityID
			tch, err = svc.repo.UpdateTeacher(ctx, tch)
			return err
		})
		return errors.Wrap(err, "provisioning teacher")
	})
	if err != nil {
		return Teacher{}, err
	}
	return tch, nil
}

func (svc *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) QueryTeachers(ctx context.Context, schoolID string) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, schoolID)
}

// UpdateTeacher edits the contact details of a teacher. ut must have been validated.
func (svc *Service) UpdateTeacher(ctx context.Context, id string, ut UpdateTeacher) (Teacher, error) {
	tch, err := svc.repo.GetTeacher(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if ut.Email != "" && ut.Email != tch.Email {
		return Teacher{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: errEmailReadOnly})
	}
	tch.FirstName = core.Coalesce(ut.FirstName, tch.FirstName)
	tch.LastName = core.Coalesce(ut.LastName, tch.LastName)
	tch.Phone = core.Coalesce(ut.Phone, tch.Phone)

	if tch, err = svc.repo.UpdateTeacher(ctx, tch); err != nil {
		return Teacher{}, errors.Wrap(err, "updating teacher")
	}
	return tch, nil
}

func (svc *Service) DeleteTeachers(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteTeachers(ctx, ids...)
}

// CreateParent resolves the student by the id the school gave it, then persists the parent
// and provisions its PARENT identity. np must have been validated.
func (svc *Service) CreateParent(ctx context.Context, np NewParent) (Parent, error) {
	var prt Parent
	err := svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		sch, err := svc.schools.Get(ctx, np.SchoolID)
		if err != nil {
			return err
		}
		std, err := svc.repo.GetStudentByRef(ctx, sch.ID, np.StudentRef)
		if err != nil {
			return err
		}

		prt, err = svc.repo.CreateParent(ctx, Parent{
			SchoolID:   sch.ID,
			StudentID:  std.ID,
			StudentRef: std.StudentID,
			FirstName:  np.FirstName,
			LastName:   np.LastName,
			Phone:      np.Phone,
			Email:      np.Email,
			CreatedAt:  core.NowFunc(),
		})
		if err != nil {
			if errors.Cause(err) == ErrParentExists {
				return fieldErr(ErrParentExists, "email")
			}
			return errors.Wrap(err, "creating parent")
		}

		actor := rosterActor{name: prt.FirstName, email: prt.Email, from: sch.MailAddress(), schoolID: sch.ID}
		_, err = svc.provisioner.Provision(ctx, actor, identity.RoleParent, func(ctx context.Context, identityID string) error {
			prt.IdentityID = identityID
			prt, err = svc.repo.UpdateParent(ctx, prt)
			return err
		})
		return errors.Wrap(err, "provisioning parent")
	})
	if err != nil {
		return Parent{}, err
	}
	return prt, nil
}

func (svc *Service) GetParent(ctx context.Context, id string) (Parent, error) {
	return svc.repo.GetParent(ctx, id)
}

func (svc *Service) QueryParents(ctx context.Context, filter ParentFilter) ([]Parent, error) {
	return svc.repo.QueryParents(ctx, filter)
}

// UpdateParent edits a parent; a new student id links it to that student of the same school.
// up must have been validated.
func (svc *Service) UpdateParent(ctx context.Context, id string, up UpdateParent) (Parent, error) {
	prt, err := svc.repo.GetParent(ctx, id)
	if err != nil {
		return Parent{}, err
	}
	if up.Email != "" && up.Email != prt.Email {
		return Parent{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: errEmailReadOnly})
	}
	if up.StudentRef != "" && up.StudentRef != prt.StudentRef {
		std, err := svc.repo.GetStudentByRef(ctx, prt.SchoolID, up.StudentRef)
		if err != nil {
			if core.IsNotFound(err) {
				return Parent{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: "no student has this id in the school"})
			}
			return Parent{}, err
		}
		prt.StudentID, prt.StudentRef = std.ID, std.StudentID
	}
	prt.FirstName = core.Coalesce(up.FirstName, prt.FirstName)
	prt.LastName = core.Coalesce(up.LastName, prt.LastName)
	prt.Phone = core.Coalesce(up.Phone, prt.Phone)

	if prt, err = svc.repo.UpdateParent(ctx, prt); err != nil {
		return Parent{}, errors.Wrap(err, "updating parent")
	}
	return prt, nil
}

func (svc *Service) DeleteParents(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteParents(ctx, ids...)
}

// CreateStudent persists a student in a section of its school. ns must have been validated.
func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	var std Student
	err := svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		sch, err := svc.schools.Get(ctx, ns.SchoolID)
		if err != nil {
			return err
		}
		sec, err := svc.academics.GetSection(ctx, ns.SectionID)
		if err != nil {
			return err
		}
		if sec.SchoolID != sch.ID {
			return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: errForeignSection})
		}

		std, err = svc.repo.CreateStudent(ctx, Student{
			SchoolID:  sch.ID,
			SectionID: sec.ID,
			StudentID: ns.StudentID,
			FirstName: ns.FirstName,
			LastName:  ns.LastName,
			Age:       ns.Age,
			Gender:    ns.Gender,
			CreatedAt: core.NowFunc(),
		})
		if err != nil {
			if errors.Cause(err) == ErrStudentExists {
				return fieldErr(ErrStudentExists, "student_id")
			}
			return errors.Wrap(err, "creating student")
		}
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return std, nil
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

// UpdateStudent edits a student; a new section must belong to the student's school.
// us must have been validated.
func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	var std Student
	err := svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if std, err = svc.repo.GetStudent(ctx, id); err != nil {
			return err
		}
		if us.SectionID != "" && us.SectionID != std.SectionID {
			sec, err := svc.academics.GetSection(ctx, us.SectionID)
			if err != nil {
				return err
			}
			if sec.SchoolID != std.SchoolID {
				return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: errForeignSection})
			}
			std.SectionID = sec.ID
		}
		std.StudentID = core.Coalesce(us.StudentID, std.StudentID)
		std.FirstName = core.Coalesce(us.FirstName, std.FirstName)
		std.LastName = core.Coalesce(us.LastName, std.LastName)
		std.Gender = core.Coalesce(us.Gender, std.Gender)
		if us.Age != 0 {
			std.Age = us.Age
		}

		if std, err = svc.repo.UpdateStudent(ctx, std); err != nil {
			if errors.Cause(err) == ErrStudentExists {
				return fieldErr(ErrStudentExists, "student_id")
			}
			return errors.Wrap(err, "updating student")
		}
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return std, nil
}

// TeachersSubjects lists the subjects taught in the section of a student, by subject name.
func (svc *Service) TeachersSubjects(ctx context.Context, studentID string) ([]TeacherSubject, error) {
	std, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	asgs, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{SectionID: std.SectionID})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	list := make([]TeacherSubject, 0, len(asgs))
	for _, asg := range asgs {
		tch, err := svc.repo.GetTeacher(ctx, asg.TeacherID)
		if err != nil {
			return nil, errors.Wrap(err, "finding teacher")
		}
		sub, err := svc.academics.GetSubject(ctx, asg.SubjectID)
		if err != nil {
			return nil, errors.Wrap(err, "finding subject")
		}
		list = append(list, TeacherSubject{
			AssignmentID: asg.ID,
			TeacherID:    tch.ID,
			Teacher:      tch.FirstName + " " + tch.LastName,
			SubjectID:    sub.ID,
			Subject:      sub.Name,
		})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Subject < list[j].Subject })
	return list, nil
}

func (svc *Service) DeleteStudents(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudents(ctx, ids...)
}

// Assign binds a teacher to a subject in a section; all three must belong to the same school.
// na must have been validated.
func (svc *Service) Assign(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := svc.checkAssignable(ctx, na.TeacherID, na.SectionID, na.SubjectID); err != nil {
		return Assignment{}, err
	}

	asg, err := svc.repo.CreateAssignment(ctx, Assignment{
		TeacherID: na.TeacherID,
		SectionID: na.SectionID,
		SubjectID: na.SubjectID,
		CreatedAt: core.NowFunc(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAssignmentExists {
			return Assignment{}, core.NewValidationError(ErrAssignmentExists)
		}
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return asg, nil
}

func (svc *Service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

// UpdateAssignment rebinds an assignment; the result must still hold within one school.
// ua must have been validated.
func (svc *Service) UpdateAssignment(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error) {
	asg, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	asg.TeacherID = core.Coalesce(ua.TeacherID, asg.TeacherID)
	asg.SectionID = core.Coalesce(ua.SectionID, asg.SectionID)
	asg.SubjectID = core.Coalesce(ua.SubjectID, asg.SubjectID)
	if err = svc.checkAssignable(ctx, asg.TeacherID, asg.SectionID, asg.SubjectID); err != nil {
		return Assignment{}, err
	}

	if asg, err = svc.repo.UpdateAssignment(ctx, asg); err != nil {
		if errors.Cause(err) == ErrAssignmentExists {
			return Assignment{}, core.NewValidationError(ErrAssignmentExists)
		}
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return asg, nil
}

func (svc *Service) QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *Service) DeleteAssignments(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAssignments(ctx, ids...)
}

// checkAssignable fails unless the teacher, the section and the subject exist in one school.
func (svc *Service) checkAssignable(ctx context.Context, teacherID, sectionID, subjectID string) error {
	tch, err := svc.repo.GetTeacher(ctx, teacherID)
	if err != nil {
		return err
	}
	sec, err := svc.academics.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	sub, err := svc.academics.GetSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if !(tch.SchoolID == sec.SchoolID && tch.SchoolID == sub.SchoolID) {
		return core.NewValidationError(errors.New(errForeignAssignation))
	}
	return nil
}
