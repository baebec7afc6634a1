package identity

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const maxUsernameAttempts = 5

type (
	// Actor is any business entity that gets a login identity: a School, a Teacher or a Parent.
	Actor interface {
		// ContactName seeds the username and greets the actor in the credentials email.
		ContactName() string
		ContactEmail() string
		// SenderAddress is the From address of the credentials email.
		SenderAddress() mail.Address
		// TenantID is the id of the owning school.
		TenantID() string
	}

	// ActorSaver persists the actor once its identity exists. It may be nil.
	ActorSaver func(ctx context.Context, identityID string) error

	// Provisioner creates or reuses the identity of an actor, rotates its password and delivers it.
	//
	// Provisioning always runs inside a transaction (joining the caller's one if any), so a delivery
	// failure discards the rotated password along with everything else the transaction wrote.
	// Concurrent provisioning of a brand new email is settled by the unique email constraint:
	// the losing transaction fails and rolls back.
	Provisioner struct {
		repo           Repository
		txm            core.TxManager
		dispatcher     *Dispatcher
		passwordLength int
		logger         core.Logger
	}
)

func NewProvisioner(repo Repository, txm core.TxManager, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Provisioner {
	return &Provisioner{
		repo:           repo,
		txm:            txm,
		dispatcher:     NewDispatcher(mailSvc),
		passwordLength: conf.Provisioning.PasswordLength,
		logger:         logger,
	}
}

// Provision runs the provisioning sequence for actor:
// generate credentials, find or create the identity by email, set and persist the new password,
// mail the credentials and finally save the actor.
// An identity is reused only when it has the same role and school; it keeps its username.
// An email held by an identity of another role or school fails with ErrEmailInUse.
func (p *Provisioner) Provision(ctx context.Context, actor Actor, role Role, save ActorSaver) (Identity, error) {
	if !role.IsValid() {
		return Identity{}, errors.Errorf("invalid role %q", role)
	}

	var idt Identity
	err := p.txm.RunInTx(ctx, func(ctx context.Context) error {
		uname, err := GenerateUsername(actor.ContactName())
		if err != nil {
			return errors.Wrap(err, "generating username")
		}
		pwd, err := GeneratePassword(p.passwordLength)
		if err != nil {
			return errors.Wrap(err, "generating password")
		}

		email := core.CleanString(actor.ContactEmail(), true /* lower */)
		idt, err = p.repo.GetIdentity(ctx, GetFilter{Email: email})
		switch {
		case errors.Cause(err) == ErrNotFound:
			if uname, err = p.uniqueUsername(ctx, uname, actor.ContactName()); err != nil {
				return err
			}
			now := core.NowFunc()
			idt = Identity{
				Username:  uname,
				Email:     email,
				Role:      role,
				SchoolID:  actor.TenantID(),
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err = idt.SetPassword(pwd); err != nil {
				return errors.Wrap(err, "setting password")
			}
			if idt, err = p.repo.CreateIdentity(ctx, idt); err != nil {
				return checkUniqueness(errors.Wrap(err, "creating identity"))
			}
		case err != nil:
			return errors.Wrap(err, "finding identity by email")
		case idt.Role != role || idt.SchoolID != actor.TenantID():
			return ErrEmailInUse
		default:
			if err = idt.SetPassword(pwd); err != nil {
				return errors.Wrap(err, "setting password")
			}
			idt.UpdatedAt = core.NowFunc()
			if idt, err = p.repo.UpdateIdentity(ctx, idt); err != nil {
				return errors.Wrap(err, "updating identity")
			}
		}

		err = p.dispatcher.SendCredentials(ctx, Credentials{
			Role:     role,
			Name:     actor.ContactName(),
			Email:    idt.Email,
			From:     actor.SenderAddress(),
			Username: idt.Username,
			Password: pwd,
		})
		if err != nil {
			return errors.Wrap(err, "sending credentials")
		}

		if save != nil {
			return errors.Wrap(save(ctx, idt.ID), "saving actor")
		}
		return nil
	})
	if err != nil {
		return Identity{}, err
	}

	p.logger.Info(fmt.Sprintf("provisioned %s identity %s", role, idt.Username))
	return idt, nil
}

// uniqueUsername regenerates uname from name until no identity uses it.
func (p *Provisioner) uniqueUsername(ctx context.Context, uname, name string) (string, error) {
	for i := 0; i < maxUsernameAttempts; i++ {
		_, err := p.repo.GetIdentity(ctx, GetFilter{Username: uname})
		if errors.Cause(err) == ErrNotFound {
			return uname, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "finding identity by username")
		}
		if uname, err = GenerateUsername(name); err != nil {
			return "", errors.Wrap(err, "generating username")
		}
	}
	return "", errors.New("could not generate a unique username")
}
