package identity

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("identity")
	ErrEmailExists          = errors.New("an account with this email already exists")
	ErrUsernameExists       = errors.New("an account with this username already exists")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrEmailInUse           = core.NewValidationError(nil, core.FieldError{Field: "email", Error: "already used by another account"})
	errWrongPassword        = "wrong password"
)

type (
	Repository interface {
		CreateIdentity(ctx context.Context, idt Identity) (Identity, error)
		GetIdentity(ctx context.Context, filter GetFilter) (Identity, error)
		// QueryIdentities applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Identity.Username or Identity.Email.
		QueryIdentities(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Identity, error)
		UpdateIdentity(ctx context.Context, idt Identity) (Identity, error)
		DeleteIdentities(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
		txm  core.TxManager
	}
)

func NewService(repo Repository, txm core.TxManager) *Service {
	return &Service{repo: repo, txm: txm}
}

// checkUniqueness maps repository uniqueness errors to field level validation errors.
func checkUniqueness(err error) error {
	switch errors.Cause(err) {
	case ErrUsernameExists:
		return core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
	case ErrEmailExists:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return err
}

// Authenticate checks the credentials of an active identity and records the login.
func (svc *Service) Authenticate(ctx context.Context, usernameOrEmail, pwd string) (Identity, error) {
	idt, err := svc.repo.GetIdentity(ctx, GetFilter{UsernameOrEmail: core.CleanString(usernameOrEmail, true /* lower */)})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Identity{}, ErrAuthenticationFailed
		}
		return Identity{}, errors.Wrap(err, "finding identity by username or email")
	}
	if err = idt.CheckPassword(pwd); err != nil {
		return Identity{}, ErrAuthenticationFailed
	}
	if !idt.IsActive {
		return Identity{}, ErrAccountDeactivated
	}

	idt.LastLogin = core.NowFunc()
	idt, err = svc.repo.UpdateIdentity(ctx, idt)
	return idt, errors.Wrap(err, "setting last login")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Identity, error) {
	return svc.repo.GetIdentity(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return svc.repo.GetIdentity(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (Identity, error) {
	return svc.repo.GetIdentity(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Identity, error) {
	return svc.repo.QueryIdentities(ctx, filter, ordering)
}

// CreateAdmin creates an active ADMIN identity. nadm must have been validated.
func (svc *Service) CreateAdmin(ctx context.Context, nadm NewAdmin) (Identity, error) {
	now := core.NowFunc()
	idt := Identity{
		Username:  nadm.Username,
		Email:     nadm.Email,
		Role:      RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := idt.SetPassword(nadm.Password); err != nil {
		return Identity{}, errors.Wrap(err, "setting password")
	}
	idt, err := svc.repo.CreateIdentity(ctx, idt)
	if err != nil {
		return Identity{}, checkUniqueness(err)
	}
	return idt, nil
}

// ChangePassword replaces the password of idt. pc must have been validated.
func (svc *Service) ChangePassword(ctx context.Context, idt Identity, pc PasswordChange) (Identity, error) {
	if err := idt.CheckPassword(pc.OldPassword); err != nil {
		return Identity{}, core.NewValidationError(nil, core.FieldError{Field: "old_password", Error: errWrongPassword})
	}
	if err := idt.SetPassword(pc.Password); err != nil {
		return Identity{}, errors.Wrap(err, "setting password")
	}
	idt.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateIdentity(ctx, idt)
}

// ResetPassword sets a new password without any policy check; used by the admin CLI.
func (svc *Service) ResetPassword(ctx context.Context, usernameOrEmail, pwd string) error {
	return svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		idt, err := svc.GetByUsernameOrEmail(ctx, usernameOrEmail)
		if err != nil {
			return err
		}
		if err = idt.SetPassword(pwd); err != nil {
			return errors.Wrap(err, "setting password")
		}
		idt.UpdatedAt = core.NowFunc()
		_, err = svc.repo.UpdateIdentity(ctx, idt)
		return err
	})
}

// DeleteByEmail removes the identity with the given email if there is one; a missing identity is not an error.
func (svc *Service) DeleteByEmail(ctx context.Context, email string) error {
	idt, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding identity by email")
	}
	return svc.repo.DeleteIdentities(ctx, idt.ID)
}
