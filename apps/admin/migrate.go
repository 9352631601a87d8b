package main

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/storage/database"
)

// openDBFunc opens the app database for migrations.
type openDBFunc func() (*sql.DB, error)

var runMigrationFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.openDB == nil {
		return errors.New("migrate: storage is not postgres")
	}
	db, err := cli.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return runMigrationFunc(db, args[0], args[1:]...)
}
