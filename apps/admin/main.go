package main

import (
	"database/sql"
	"io"
	"log"
	"os"

	dig_container "github.com/trezcool/shule/apps/api/di/dig"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/importer"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var runErr error
	c := dig_container.New()
	err := c.Invoke(func(
		app dig_container.AppParams,
		db io.Closer,
		sqlDB *sql.DB,
		identities *identity.Service,
		imp *importer.Coordinator,
	) {
		defer db.Close()
		dig_container.Init(app)

		cli := commandLine{
			db:         sqlDB,
			validate:   app.Validate,
			translator: app.Translator,
			identities: identities,
			importer:   imp,
		}
		runErr = cli.run(os.Args)
	})
	errAndDie(err)

	if runErr != nil {
		if runErr != errHelp {
			logger.Printf("\nerror: %s\n", runErr)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
