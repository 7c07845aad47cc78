package main

import (
	"database/sql"

	"github.com/pressly/goose/v3"

	appfs "github.com/trezcool/begi/fs"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)

	dialect := "postgres"
	if cli.conf.Database.Engine == "sqlite" {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.dbHandle(), "migrations/"+cli.conf.Database.Engine, arguments...)
}

func (cli *commandLine) dbHandle() *sql.DB {
	return cli.db.DB
}
