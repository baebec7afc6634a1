package school

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

const (
	cancellationTemplate = "registration_cancelled"
	cancellationSubject  = "Registration Cancelled"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("school")
	ErrRequestNotFound = core.NewNotFoundError("registration request")
	ErrEmailExists     = errors.New("a school with this email already exists")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		GetSchoolByEmail(ctx context.Context, email string) (School, error)
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
		// DeleteSchool removes the school and everything it owns.
		DeleteSchool(ctx context.Context, id string) error

		CreateRequest(ctx context.Context, req RegistrationRequest) (RegistrationRequest, error)
		// GetRequest loads the request with its School.
		// forUpdate claims the request row until the end of the enclosing transaction.
		GetRequest(ctx context.Context, id string, forUpdate bool) (RegistrationRequest, error)
		// QueryRequests returns all requests, or those in status when it is not empty.
		QueryRequests(ctx context.Context, status Status) ([]RegistrationRequest, error)
		UpdateRequest(ctx context.Context, req RegistrationRequest) (RegistrationRequest, error)
		DeleteRequests(ctx context.Context, schoolID string) error
	}

	// IdentityRemover deletes login identities; a missing identity is not an error.
	IdentityRemover interface {
		DeleteByEmail(ctx context.Context, email string) error
	}

	// Service runs the registration workflow of schools:
	// PENDING -> APPROVED (provisions the school identity) or PENDING -> CANCELLED (notifies the school).
	// Each transition is one transaction holding a row claim on the request; mail is sent before commit.
	Service struct {
		repo        Repository
		txm         core.TxManager
		provisioner *identity.Provisioner
		identities  IdentityRemover
		mailSvc     core.EmailService
		from        mail.Address
		logger      core.Logger
	}
)

func NewService(
	repo Repository,
	txm core.TxManager,
	provisioner *identity.Provisioner,
	identities IdentityRemover,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		txm:         txm,
		provisioner: provisioner,
		identities:  identities,
		mailSvc:     mailSvc,
		from:        conf.DefaultFromEmail,
		logger:      logger,
	}
}

// Submit persists a school along with its PENDING registration request. ns must have been validated.
func (svc *Service) Submit(ctx context.Context, ns NewSchool) (School, RegistrationRequest, error) {
	var (
		sch School
		req RegistrationRequest
	)
	err := svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		now := core.NowFunc()
		var err error
		sch, err = svc.repo.CreateSchool(ctx, School{
			Name:      ns.Name,
			Address:   ns.Address,
			Phone:     ns.Phone,
			Email:     ns.Email,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			if errors.Cause(err) == ErrEmailExists {
				return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
			}
			return errors.Wrap(err, "creating school")
		}

		req, err = svc.repo.CreateRequest(ctx, RegistrationRequest{
			SchoolID:  sch.ID,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return errors.Wrap(err, "creating registration request")
	})
	if err != nil {
		return School{}, RegistrationRequest{}, err
	}
	req.School = &sch
	return sch, req, nil
}

// transition claims a PENDING request, moves it to status and runs effect, all in one transaction.
func (svc *Service) transition(ctx context.Context, id string, status Status, effect func(ctx context.Context, req *RegistrationRequest) error) (RegistrationRequest, error) {
	var req RegistrationRequest
	err := svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = svc.repo.GetRequest(ctx, id, true /* forUpdate */)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return core.NewStateConflictError("registration request", string(req.Status))
		}

		sch := req.School
		req.Status = status
		req.UpdatedAt = core.NowFunc()
		if req, err = svc.repo.UpdateRequest(ctx, req); err != nil {
			return errors.Wrap(err, "updating registration request")
		}
		req.School = sch
		return effect(ctx, &req)
	})
	if err != nil {
		return RegistrationRequest{}, err
	}
	return req, nil
}

// Approve moves a PENDING request to APPROVED and provisions the school identity (role SCHOOL).
// Any failure, delivery included, leaves the request PENDING.
func (svc *Service) Approve(ctx context.Context, id string) (RegistrationRequest, error) {
	req, err := svc.transition(ctx, id, StatusApproved, func(ctx context.Context, req *RegistrationRequest) error {
		sch := *req.School
		_, err := svc.provisioner.Provision(ctx, schoolActor{school: sch, from: svc.from}, identity.RoleSchool,
			func(ctx context.Context, identityID string) error {
				sch.IdentityID = identityID
				sch.UpdatedAt = core.NowFunc()
				updated, err := svc.repo.UpdateSchool(ctx, sch)
				if err != nil {
					return errors.Wrap(err, "linking school identity")
				}
				req.School = &updated
				return nil
			})
		return errors.Wrap(err, "provisioning school")
	})
	if err != nil {
		return RegistrationRequest{}, err
	}
	svc.logger.Info(fmt.Sprintf("registration request %s approved", req.ID))
	return req, nil
}

// Cancel moves a PENDING request to CANCELLED and notifies the school. No identity is provisioned.
func (svc *Service) Cancel(ctx context.Context, id string) (RegistrationRequest, error) {
	req, err := svc.transition(ctx, id, StatusCancelled, func(ctx context.Context, req *RegistrationRequest) error {
		from := svc.from
		msg := &core.EmailMessage{
			From:         &from,
			To:           []mail.Address{req.School.MailAddress()},
			Subject:      cancellationSubject,
			TemplateName: cancellationTemplate,
			TemplateData: map[string]string{"Name": req.School.Name},
		}
		return errors.Wrap(svc.mailSvc.SendMessages(ctx, msg), "sending cancellation notice")
	})
	if err != nil {
		return RegistrationRequest{}, err
	}
	svc.logger.Info(fmt.Sprintf("registration request %s cancelled", req.ID))
	return req, nil
}

func (svc *Service) Get(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

// GetByEmail finds a school by its email, compared case-insensitively.
func (svc *Service) GetByEmail(ctx context.Context, email string) (School, error) {
	return svc.repo.GetSchoolByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *Service) GetRequest(ctx context.Context, id string) (RegistrationRequest, error) {
	return svc.repo.GetRequest(ctx, id, false)
}

func (svc *Service) QueryRequests(ctx context.Context, status Status) ([]RegistrationRequest, error) {
	return svc.repo.QueryRequests(ctx, status)
}

// Delete removes a school with its requests and everything it owns.
// The school identity is looked up by email and removed if found.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.txm.RunInTx(ctx, func(ctx context.Context) error {
		sch, err := svc.repo.GetSchool(ctx, id)
		if err != nil {
			return err
		}
		if err = svc.identities.DeleteByEmail(ctx, sch.Email); err != nil {
			return errors.Wrap(err, "deleting school identity")
		}
		if err = svc.repo.DeleteRequests(ctx, sch.ID); err != nil {
			return errors.Wrap(err, "deleting registration requests")
		}
		return errors.Wrap(svc.repo.DeleteSchool(ctx, sch.ID), "deleting school")
	})
}
