// Package testutil wires the services against the in-memory store and the recording mail service.
package testutil

import (
	"context"
	"regexp"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/importer"
	"github.com/trezcool/shule/core/roster"
	"github.com/trezcool/shule/core/school"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

var passwordRegex = regexp.MustCompile(`Password: (\S+)`)

type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Mailer     *emailsvc.ConsoleServiceMock
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	IdentityRepo identity.Repository
	SchoolRepo   school.Repository
	AcademicRepo academic.Repository
	RosterRepo   roster.Repository

	Identities  *identity.Service
	Provisioner *identity.Provisioner
	Schools     *school.Service
	Academics   *academic.Service
	Roster      *roster.Service
	Importer    *importer.Coordinator
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)
	identity.LoadCommonPasswords(logger)
	core.ParseEmailTemplates(logger)

	db := inmemdb.NewDB()
	mailer := emailsvc.NewConsoleServiceMock(conf)

	env := &Env{
		Conf:         conf,
		DB:           db,
		Mailer:       mailer,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		IdentityRepo: inmemdb.NewIdentityRepository(db),
		SchoolRepo:   inmemdb.NewSchoolRepository(db),
		AcademicRepo: inmemdb.NewAcademicRepository(db),
		RosterRepo:   inmemdb.NewRosterRepository(db),
	}
	env.Identities = identity.NewService(env.IdentityRepo, db)
	env.Provisioner = identity.NewProvisioner(env.IdentityRepo, db, mailer, conf, logger)
	env.Schools = school.NewService(env.SchoolRepo, db, env.Provisioner, env.Identities, mailer, conf, logger)
	env.Academics = academic.NewService(env.AcademicRepo, env.Schools)
	env.Roster = roster.NewService(env.RosterRepo, db, env.Provisioner, env.Schools, env.Academics)
	env.Importer = importer.NewCoordinator(env.Roster, env.Schools, env.Academics, validate, translator, logger)
	return env
}

// Reset empties the store and the mailbox.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mailer.Reset()
}

func CreateIdentity(
	t *testing.T,
	repo identity.Repository,
	uname, email, pwd string,
	role identity.Role,
	schoolID string,
	isActive bool,
	createdAt ...time.Time,
) identity.Identity {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	idt := identity.Identity{
		Username:  uname,
		Email:     email,
		Role:      role,
		SchoolID:  schoolID,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := idt.SetPassword(pwd); err != nil {
			t.Fatalf("createIdentity() failed: %v", err)
		}
	}
	idt, err := repo.CreateIdentity(context.Background(), idt)
	if err != nil {
		t.Fatalf("createIdentity() failed: %v", err)
	}
	return idt
}

// SubmitSchool submits a registration and returns its school and PENDING request.
func (env *Env) SubmitSchool(t *testing.T, name, email string) (school.School, school.RegistrationRequest) {
	ns := school.NewSchool{Name: name, Address: "1 Main St", Phone: "+243 810 000 000", Email: email}
	if err := ns.Validate(env.Validate); err != nil {
		t.Fatalf("submitSchool() failed: %v", err)
	}
	sch, req, err := env.Schools.Submit(context.Background(), ns)
	if err != nil {
		t.Fatalf("submitSchool() failed: %v", err)
	}
	return sch, req
}

// ApprovedSchool submits and approves a registration.
func (env *Env) ApprovedSchool(t *testing.T, name, email string) school.School {
	_, req := env.SubmitSchool(t, name, email)
	req, err := env.Schools.Approve(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("approvedSchool() failed: %v", err)
	}
	return *req.School
}

// Section creates a grade and one of its sections in the school.
func (env *Env) Section(t *testing.T, schoolID, grade, section string) academic.Section {
	ctx := context.Background()
	grd, err := env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: schoolID, Name: grade})
	if err != nil {
		t.Fatalf("section() failed: %v", err)
	}
	sec, err := env.Academics.CreateSection(ctx, academic.NewSection{GradeID: grd.ID, Name: section})
	if err != nil {
		t.Fatalf("section() failed: %v", err)
	}
	return sec
}

// SentPassword extracts the plaintext password from a credentials email.
func SentPassword(msg core.EmailMessage) string {
	m := passwordRegex.FindStringSubmatch(msg.TextContent)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
