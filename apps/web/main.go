package main

import (
	"context"
	"fmt"
	"log"

	"github.com/trezcool/hoaportal/apps/web/di"
	echoweb "github.com/trezcool/hoaportal/apps/web/echo"
	"github.com/trezcool/hoaportal/core"
	appfs "github.com/trezcool/hoaportal/fs"
)

func main() {
	c := di.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		dbLoggerParam di.DBLoggerParam,
		storage di.StorageCloser,
		server *echoweb.Server,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q, env %s", conf.Build, conf.Env))
		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

		defer func() {
			if err := storage.Close(); err != nil {
				dbLoggerParam.Logger.Error(fmt.Sprintf("closing storage: %v", err), err)
			}
		}()
		defer logger.Info("Application stopped")

		// =========================================================================
		// Start Web Service

		go server.Start()
		logger.Info("listening on " + conf.Server.Address)

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			logger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
