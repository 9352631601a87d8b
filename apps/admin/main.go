package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/hoaportal/apps/web/di"
	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/identity"
	"github.com/trezcool/hoaportal/storage/database"
)

func main() {
	logger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags)
	c := di.New()

	var code int
	err := c.Invoke(func(
		conf *core.Config,
		storage di.StorageCloser,
		provider *identity.Provider,
		resolver *auth.RoleResolver,
	) {
		defer func() {
			if err := storage.Close(); err != nil {
				logger.Printf("closing storage: %v", err)
			}
		}()

		cli := commandLine{provider: provider, resolver: resolver, out: os.Stdout}
		if conf.Storage == core.StoragePostgres {
			cli.openDB = func() (*sql.DB, error) {
				db, err := database.Open(conf)
				if err != nil {
					return nil, err
				}
				return db.DB, nil
			}
		}

		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up: %v", err))
	}
	os.Exit(code)
}
