package school

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Status of a RegistrationRequest. APPROVED and CANCELLED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusCancelled
}

type School struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	IdentityID string    `json:"identity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// MailAddress is the school's address as a mail sender or recipient.
func (s School) MailAddress() mail.Address {
	return mail.Address{Name: s.Name, Address: s.Email}
}

type RegistrationRequest struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	School *School `json:"school,omitempty"`
}

// schoolActor provisions a School, credentials being sent from the system address.
type schoolActor struct {
	school School
	from   mail.Address
}

func (a schoolActor) ContactName() string         { return a.school.Name }
func (a schoolActor) ContactEmail() string        { return a.school.Email }
func (a schoolActor) SenderAddress() mail.Address { return a.from }
func (a schoolActor) TenantID() string            { return a.school.ID }

// NewSchool contains information needed to submit a school registration.
type NewSchool struct {
	Name    string `json:"name" validate:"required,max=255"`
	Address string `json:"address" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"required,phone"`
	Email   string `json:"email" validate:"required,email,max=254"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// OrderingFields are the fields schools can be listed by.
var OrderingFields = []string{"name", "email", "created_at"}

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
