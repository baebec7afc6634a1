package roster

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Teacher struct {
	ID         string    `json:"id"`
	SchoolID   string    `json:"school_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	IdentityID string    `json:"identity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type Parent struct {
	ID         string    `json:"id"`
	SchoolID   string    `json:"school_id"`
	StudentID  string    `json:"student"`    // Student.ID
	StudentRef string    `json:"student_id"` // Student.StudentID, given by the school
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	IdentityID string    `json:"identity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// Student never gets a login identity.
type Student struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	SectionID string    `json:"section_id"`
	StudentID string    `json:"student_id"` // given by the school, unique per school
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Assignment binds a teacher to a subject in a section.
type Assignment struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	SectionID string    `json:"section_id"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// rosterActor provisions teachers and parents, credentials being sent from their school's address.
type rosterActor struct {
	name     string
	email    string
	from     mail.Address
	schoolID string
}

func (a rosterActor) ContactName() string         { return a.name }
func (a rosterActor) ContactEmail() string        { return a.email }
func (a rosterActor) SenderAddress() mail.Address { return a.from }
func (a rosterActor) TenantID() string            { return a.schoolID }

type NewTeacher struct {
	SchoolID  string `json:"school_id" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,phone"`
	Email     string `json:"email" validate:"required,email,max=254"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.SchoolID = core.CleanString(nt.SchoolID)
	nt.FirstName = core.CleanString(nt.FirstName)
	nt.LastName = core.CleanString(nt.LastName)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	return validate.Struct(nt)
}

type NewParent struct {
	SchoolID   string `json:"school_id" validate:"required"`
	StudentRef string `json:"student_id" validate:"required,max=50"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,phone"`
	Email      string `json:"email" validate:"required,email,max=254"`
}

func (np *NewParent) Validate(validate *validator.Validate) error {
	np.SchoolID = core.CleanString(np.SchoolID)
	np.StudentRef = core.CleanString(np.StudentRef)
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Phone = core.CleanString(np.Phone)
	np.Email = core.CleanString(np.Email, true /* lower */)
	return validate.Struct(np)
}

type NewStudent struct {
	SchoolID  string `json:"school_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required,max=50"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Age       int    `json:"age" validate:"required,min=1,max=150"`
	Gender    string `json:"gender" validate:"required,max=50"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.SchoolID = core.CleanString(ns.SchoolID)
	ns.SectionID = core.CleanString(ns.SectionID)
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Gender = core.CleanString(ns.Gender)
	return validate.Struct(ns)
}

type NewAssignment struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.TeacherID = core.CleanString(na.TeacherID)
	na.SectionID = core.CleanString(na.SectionID)
	na.SubjectID = core.CleanString(na.SubjectID)
	return validate.Struct(na)
}

// UpdateTeacher edits a teacher; blank fields keep their value.
// The email is the login's contact and cannot change.
type UpdateTeacher struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Email     string `json:"email"`
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	ut.FirstName = core.CleanString(ut.FirstName)
	ut.LastName = core.CleanString(ut.LastName)
	ut.Phone = core.CleanString(ut.Phone)
	ut.Email = core.CleanString(ut.Email, true /* lower */)
	return validate.Struct(ut)
}

// UpdateParent edits a parent, possibly linking it to another student of its school.
// Blank fields keep their value; the email cannot change.
type UpdateParent struct {
	StudentRef string `json:"student_id" validate:"omitempty,max=50"`
	FirstName  string `json:"first_name" validate:"omitempty,max=100"`
	LastName   string `json:"last_name" validate:"omitempty,max=100"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Email      string `json:"email"`
}

func (up *UpdateParent) Validate(validate *validator.Validate) error {
	up.StudentRef = core.CleanString(up.StudentRef)
	up.FirstName = core.CleanString(up.FirstName)
	up.LastName = core.CleanString(up.LastName)
	up.Phone = core.CleanString(up.Phone)
	up.Email = core.CleanString(up.Email, true /* lower */)
	return validate.Struct(up)
}

// UpdateStudent edits a student, possibly moving it to another section of its school.
// Blank fields and a zero age keep their value.
type UpdateStudent struct {
	SectionID string `json:"section_id"`
	StudentID string `json:"student_id" validate:"omitempty,max=50"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Age       int    `json:"age" validate:"omitempty,min=1,max=150"`
	Gender    string `json:"gender" validate:"omitempty,max=50"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.SectionID = core.CleanString(us.SectionID)
	us.StudentID = core.CleanString(us.StudentID)
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	us.Gender = core.CleanString(us.Gender)
	return validate.Struct(us)
}

// UpdateAssignment rebinds an assignment; blank fields keep their value.
type UpdateAssignment struct {
	TeacherID string `json:"teacher_id"`
	SectionID string `json:"section_id"`
	SubjectID string `json:"subject_id"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.TeacherID = core.CleanString(ua.TeacherID)
	ua.SectionID = core.CleanString(ua.SectionID)
	ua.SubjectID = core.CleanString(ua.SubjectID)
	return validate.Struct(ua)
}

// TeacherSubject is a subject taught in a student's section, and who teaches it.
type TeacherSubject struct {
	AssignmentID string `json:"assignment_id"`
	TeacherID    string `json:"teacher_id"`
	Teacher      string `json:"teacher"`
	SubjectID    string `json:"subject_id"`
	Subject      string `json:"subject"`
}

type StudentFilter struct {
	SchoolID  string
	SectionID string
}

type ParentFilter struct {
	SchoolID  string
	StudentID string
}

type AssignmentFilter struct {
	TeacherID string
	SectionID string
}
