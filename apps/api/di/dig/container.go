package dig_container

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/importer"
	"github.com/trezcool/shule/core/roster"
	"github.com/trezcool/shule/core/school"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Store is the storage engine picked by the config, with all its repositories.
type Store struct {
	dig.Out

	Closer       io.Closer
	SQLDB        *sql.DB // nil with the in-memory store
	Tx           core.TxManager
	IdentityRepo identity.Repository
	SchoolRepo   school.Repository
	AcademicRepo academic.Repository
	RosterRepo   roster.Repository
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// AppParams are what every entrypoint initializes with Init before serving.
type AppParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
}

// Init registers the validators, then loads the email templates and the common passwords list.
func Init(p AppParams) {
	p.Logger.Info(fmt.Sprintf("%s initializing : version %q, %s store", p.Conf.AppName, p.Conf.Build, p.Conf.Database.Engine))

	core.InitValidators(p.Validate, p.Translator)
	identity.InitValidators(p.Validate, p.Translator)
	core.ParseEmailTemplates(p.Logger)
	identity.LoadCommonPasswords(p.Logger)
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Identities *identity.Service
	Schools    *school.Service
	Academics  *academic.Service
	Roster     *roster.Service
	Importer   *importer.Coordinator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) Store {
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Info("using the in-memory store; data is lost on exit")
		db := inmemdb.NewDB()
		return Store{
			Closer:       nopCloser{},
			Tx:           db,
			IdentityRepo: inmemdb.NewIdentityRepository(db),
			SchoolRepo:   inmemdb.NewSchoolRepository(db),
			AcademicRepo: inmemdb.NewAcademicRepository(db),
			RosterRepo:   inmemdb.NewRosterRepository(db),
		}
	}

	setUp := func() (*sql.DB, *sqlxrepos.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, nil, err
		}
		return db.DB, sqlxrepos.NewDB(db), nil
	}

	sqlDB, db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Store{
		Closer:       sqlDB,
		SQLDB:        sqlDB,
		Tx:           db,
		IdentityRepo: sqlxrepos.NewIdentityRepository(db),
		SchoolRepo:   sqlxrepos.NewSchoolRepository(db),
		AcademicRepo: sqlxrepos.NewAcademicRepository(db),
		RosterRepo:   sqlxrepos.NewRosterRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newSchoolService(
	repo school.Repository,
	txm core.TxManager,
	provisioner *identity.Provisioner,
	identities *identity.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *school.Service {
	return school.NewService(repo, txm, provisioner, identities, mailSvc, conf, logger)
}

func newAcademicService(repo academic.Repository, schools *school.Service) *academic.Service {
	return academic.NewService(repo, schools)
}

func newRosterService(
	repo roster.Repository,
	txm core.TxManager,
	provisioner *identity.Provisioner,
	schools *school.Service,
	academics *academic.Service,
) *roster.Service {
	return roster.NewService(repo, txm, provisioner, schools, academics)
}

func newImporter(
	rosterSvc *roster.Service,
	schools *school.Service,
	academics *academic.Service,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *importer.Coordinator {
	return importer.NewCoordinator(rosterSvc, schools, academics, validate, translator, logger)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Identities: p.Identities,
		Schools:    p.Schools,
		Academics:  p.Academics,
		Roster:     p.Roster,
		Importer:   p.Importer,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(identity.NewService))
	must(c.Provide(identity.NewProvisioner))
	must(c.Provide(newSchoolService))
	must(c.Provide(newAcademicService))
	must(c.Provide(newRosterService))
	must(c.Provide(newImporter))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
