package main

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/begi/core"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db   *sqlx.DB
	conf *core.Config
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version, ...)")
	fmt.Println("  seed                   - load a demo household into the database")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seed":
		return cli.seed()
	default:
		cli.printUsage()
		return errHelp
	}
}
