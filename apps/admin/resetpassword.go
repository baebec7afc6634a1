package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	if err := cli.identities.ResetPassword(context.Background(), uname, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.writer(), "password of %q has been reset\n", uname)
	return nil
}

// createAdmin creates an active ADMIN identity.
func (cli *commandLine) createAdmin(uname, email, pwd, confirm string) error {
	nadm := identity.NewAdmin{
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
	}
	if err := nadm.Validate(cli.validate); err != nil {
		return core.TranslateValidationErrors(err, cli.translator)
	}
	idt, err := cli.identities.CreateAdmin(context.Background(), nadm)
	if err != nil {
		return errors.Wrap(err, "creating admin")
	}
	fmt.Fprintf(cli.writer(), "admin %q created\n", idt.Username)
	return nil
}
