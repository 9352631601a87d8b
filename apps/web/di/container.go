// Package di wires the portal's dependencies with a dig container.
package di

import (
	"context"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoweb "github.com/trezcool/hoaportal/apps/web/echo"
	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/contact"
	"github.com/trezcool/hoaportal/core/document"
	"github.com/trezcool/hoaportal/core/event"
	"github.com/trezcool/hoaportal/core/identity"
	"github.com/trezcool/hoaportal/core/resident"
	emailsvc "github.com/trezcool/hoaportal/services/email"
	logsvc "github.com/trezcool/hoaportal/services/logger"
	"github.com/trezcool/hoaportal/storage/database"
	inmemdb "github.com/trezcool/hoaportal/storage/database/inmem"
	sqlxrepos "github.com/trezcool/hoaportal/storage/database/sqlx"
	redisstore "github.com/trezcool/hoaportal/storage/redis"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Stores are the storage backends selected by the configuration.
	Stores struct {
		dig.Out

		Documents   document.Store
		Credentials identity.CredentialRepository
		SignIns     identity.SignInStore
		StatusCheck func(context.Context) error
		// Close releases the connections of the backends.
		Close func() error `name:"storageClose"`
	}

	ProviderStores struct {
		dig.In
		Credentials identity.CredentialRepository
		SignIns     identity.SignInStore
	}

	// StorageCloser is the param form of Stores.Close.
	StorageCloser struct {
		dig.In
		Close func() error `name:"storageClose"`
	}
)

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "WEB : ", log.LstdFlags), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) (Stores, error) {
	logger := loggerParam.Logger
	var stores Stores
	var closers []func() error

	switch conf.Storage {
	case core.StoragePostgres:
		if conf.Database.AdminUser != "" {
			if err := database.CreateIfNotExist(conf); err != nil {
				return stores, err
			}
		}
		db, err := database.Open(conf)
		if err != nil {
			return stores, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return stores, err
		}
		logger.Info("storage: postgres at " + conf.Database.Address())

		stores.Documents = sqlxrepos.NewDocumentStore(db)
		stores.Credentials = sqlxrepos.NewCredentialRepository(db)
		stores.StatusCheck = func(ctx context.Context) error { return database.StatusCheck(ctx, db) }
		closers = append(closers, db.Close)
	default:
		mem := inmemdb.Open()
		logger.Info("storage: in memory, data is lost on restart")

		stores.Documents = inmemdb.NewDocumentStore(mem)
		stores.Credentials = inmemdb.NewCredentialRepository(mem)
		stores.SignIns = inmemdb.NewSignInStore(mem)
	}

	if conf.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := redisstore.NewClient(ctx, conf)
		cancel()
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return stores, err
		}
		logger.Info("storage: sign-ins in redis at " + conf.Redis.Addr)

		stores.SignIns = redisstore.NewSignInStore(rdb)
		closers = append(closers, rdb.Close)

		dbCheck := stores.StatusCheck
		stores.StatusCheck = func(ctx context.Context) error {
			if dbCheck != nil {
				if err := dbCheck(ctx); err != nil {
					return err
				}
			}
			return errors.Wrap(rdb.Ping(ctx).Err(), "pinging redis")
		}
	} else if stores.SignIns == nil {
		stores.SignIns = inmemdb.NewSignInStore(inmemdb.Open())
	}

	stores.Close = func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return stores, nil
}

func newProvider(stores ProviderStores, conf *core.Config, logger core.Logger) *identity.Provider {
	return identity.NewProvider(stores.Credentials, stores.SignIns, logger, conf.Server.SessionTTL)
}

func newSessions(provider *identity.Provider, resolver *auth.RoleResolver, conf *core.Config, logger core.Logger) *auth.Sessions {
	return auth.NewSessions(provider.Client, resolver, logger, conf.Server.SessionIdleTimeout)
}

func newContactService(store document.Store, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate, translator ut.Translator) *contact.Service {
	return contact.NewService(store, mailSvc, conf.Auth.AdminEmails, validate, translator)
}

// New returns the dig container of the portal. Dependencies are built on first use,
// so commands which never ask for the web server do not build it.
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(auth.NewRoleResolverFromConfig))
	must(c.Provide(newProvider))
	must(c.Provide(newSessions))
	must(c.Provide(identity.NewPasswordResets))
	must(c.Provide(event.NewService))
	must(c.Provide(resident.NewService))
	must(c.Provide(newContactService))
	must(c.Provide(echoweb.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
