package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/shule/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrations need a postgres database")
	}
	return runMigrationsFunc(cli.db, args[0], args[1:]...)
}
