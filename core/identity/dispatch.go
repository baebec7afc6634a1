package identity

import (
	"context"
	"net/mail"

	"github.com/trezcool/shule/core"
)

const credentialsTemplate = "credentials"

// Credentials is what gets delivered to a freshly provisioned actor.
type Credentials struct {
	Role     Role
	Name     string
	Email    string
	From     mail.Address
	Username string
	Password string // plaintext, never stored
}

// Dispatcher sends generated credentials through the mail transport.
type Dispatcher struct {
	mailSvc core.EmailService
}

func NewDispatcher(mailSvc core.EmailService) *Dispatcher {
	return &Dispatcher{mailSvc: mailSvc}
}

// SendCredentials mails the credentials to exactly one recipient.
// Transport failures are returned, never swallowed.
func (d *Dispatcher) SendCredentials(ctx context.Context, cred Credentials) error {
	from := cred.From
	msg := &core.EmailMessage{
		From:         &from,
		To:           []mail.Address{{Name: cred.Name, Address: cred.Email}},
		Subject:      "Your " + cred.Role.Title() + " Account Credentials",
		TemplateName: credentialsTemplate,
		TemplateData: map[string]string{
			"Name":     cred.Name,
			"Kind":     cred.Role.Title(),
			"Username": cred.Username,
			"Password": cred.Password,
		},
	}
	return d.mailSvc.SendMessages(ctx, msg)
}
