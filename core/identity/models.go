package identity

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Role is the closed set of account kinds.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleSchool  Role = "SCHOOL"
	RoleTeacher Role = "TEACHER"
	RoleParent  Role = "PARENT"
	RoleStudent Role = "STUDENT"
)

var AllRoles = []Role{RoleAdmin, RoleSchool, RoleTeacher, RoleParent, RoleStudent}

// ParseRole parses s case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSchool, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// Title returns the human readable account kind, e.g. "School".
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return ""
	}
	return s[:1] + strings.ToLower(s[1:])
}

// Capability is an action gated by role.
type Capability int

const (
	CapReviewRegistrations Capability = iota + 1 // approve / cancel registration requests
	CapManageSchools                             // list & delete any school
	CapManageAcademics                           // grades, sections, subjects, assignments
	CapManageRoster                              // create & delete teachers, parents, students
	CapImportRoster                              // bulk uploads
	CapViewRoster
)

// Can reports whether the role holds the capability.
// School scoped capabilities are further restricted to the identity's own school by the caller.
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleSchool:
		switch c {
		case CapManageAcademics, CapManageRoster, CapImportRoster, CapViewRoster:
			return true
		case CapReviewRegistrations, CapManageSchools:
			return false
		}
	case RoleTeacher:
		return c == CapViewRoster
	case RoleParent, RoleStudent:
		return false
	}
	return false
}

type Identity struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	SchoolID     string    `json:"school_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (i *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.PasswordHash = hash
	return nil
}

func (i *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(i.PasswordHash, []byte(pwd))
}

// BelongsTo reports whether the identity may act on the given school.
func (i *Identity) BelongsTo(schoolID string) bool {
	return i.Role == RoleAdmin || (i.SchoolID != "" && i.SchoolID == schoolID)
}

// NewAdmin contains information needed to create an admin Identity.
type NewAdmin struct {
	Username        string `json:"username" validate:"required,min=4,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	return validate.Struct(na)
}

// PasswordChange is used by an identity to replace its provisioned password.
type PasswordChange struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// attributes the new password is checked against
	username string
	email    string
}

func (pc *PasswordChange) Validate(validate *validator.Validate, idt Identity) error {
	pc.username = idt.Username
	pc.email = idt.Email
	return validate.Struct(pc)
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

// OrderingFields are the fields identities can be listed by.
var OrderingFields = []string{"username", "email", "created_at"}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     Role   `query:"role"`
	SchoolID string `query:"school_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if r, ok := ParseRole(string(qf.Role)); ok {
		qf.Role = r
	} else {
		qf.Role = ""
	}
}
